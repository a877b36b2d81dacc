package reporting

import (
	"context"
	"testing"
	"time"

	"crm_marketing_backend/internal/marketing/domain"
	"crm_marketing_backend/internal/marketing/repository"
	"crm_marketing_backend/platform/apperr"
	"crm_marketing_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeReportingRepo struct {
	campaigns   []repository.Campaign
	touchpoints []repository.OpportunityTouchpoints
	aggregates  repository.DecisionAggregates

	touchpointCalls int
}

func (f *fakeReportingRepo) ListActiveCampaigns(_ context.Context) ([]repository.Campaign, error) {
	return f.campaigns, nil
}

func (f *fakeReportingRepo) ListAllOpportunityTouchpoints(_ context.Context) ([]repository.OpportunityTouchpoints, error) {
	f.touchpointCalls++
	return f.touchpoints, nil
}

func (f *fakeReportingRepo) AggregateDecisions(_ context.Context, _, _ time.Time) (repository.DecisionAggregates, error) {
	return f.aggregates, nil
}

type memorySummaryCache struct {
	entries map[domain.Model]*AttributionSummary
}

func newMemorySummaryCache() *memorySummaryCache {
	return &memorySummaryCache{entries: make(map[domain.Model]*AttributionSummary)}
}

func (c *memorySummaryCache) GetSummary(_ context.Context, model domain.Model) (*AttributionSummary, bool) {
	s, ok := c.entries[model]
	return s, ok
}

func (c *memorySummaryCache) SetSummary(_ context.Context, model domain.Model, summary *AttributionSummary) {
	c.entries[model] = summary
}

func summaryFixture() (*fakeReportingRepo, uuid.UUID, uuid.UUID) {
	campaignA := uuid.New()
	campaignB := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	repo := &fakeReportingRepo{
		campaigns: []repository.Campaign{
			{ID: campaignA, Name: "alpha", Status: "Active", BudgetActualCents: 50000},
			{ID: campaignB, Name: "beta", Status: "Active", BudgetActualCents: 30000},
		},
		touchpoints: []repository.OpportunityTouchpoints{
			{
				OpportunityID: uuid.New(),
				AmountCents:   120000,
				Touchpoints: []domain.Touchpoint{
					{MembershipID: uuid.New(), CampaignID: campaignA, EntityType: domain.EntityTypeLead, EntityID: uuid.New(), AddedAt: base, CreatedAt: base},
					{MembershipID: uuid.New(), CampaignID: campaignB, EntityType: domain.EntityTypeContact, EntityID: uuid.New(), AddedAt: base.Add(time.Hour), CreatedAt: base.Add(time.Hour)},
				},
			},
		},
	}
	return repo, campaignA, campaignB
}

func rowFor(t *testing.T, summary *AttributionSummary, campaignID uuid.UUID) CampaignSummaryRow {
	t.Helper()
	for _, row := range summary.Campaigns {
		if row.CampaignID == campaignID {
			return row
		}
	}
	t.Fatalf("campaign %s missing from summary", campaignID)
	return CampaignSummaryRow{}
}

func TestSummaryInvalidModel(t *testing.T) {
	repo, _, _ := summaryFixture()
	svc := New(repo, nil, logger.New("development"))

	_, err := svc.Summary(context.Background(), "time_decay")
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("unsupported model should be a validation error, got %v", err)
	}
}

func TestSummaryFirstTouch(t *testing.T) {
	repo, campaignA, campaignB := summaryFixture()
	svc := New(repo, nil, logger.New("development"))

	summary, err := svc.Summary(context.Background(), "first_touch")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}

	a := rowFor(t, summary, campaignA)
	if a.AttributedAmountCents != 120000 || a.InfluencedOpportunities != 1 {
		t.Fatalf("first touch credits the earliest campaign fully: %+v", a)
	}
	b := rowFor(t, summary, campaignB)
	if b.AttributedAmountCents != 0 || b.InfluencedOpportunities != 0 {
		t.Fatalf("later campaigns get zero under first touch but still appear: %+v", b)
	}
}

func TestSummaryLastTouch(t *testing.T) {
	repo, campaignA, campaignB := summaryFixture()
	svc := New(repo, nil, logger.New("development"))

	summary, err := svc.Summary(context.Background(), "last_touch")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}

	if got := rowFor(t, summary, campaignB).AttributedAmountCents; got != 120000 {
		t.Fatalf("last touch credits the latest campaign, got %d", got)
	}
	if got := rowFor(t, summary, campaignA).AttributedAmountCents; got != 0 {
		t.Fatalf("earliest campaign gets zero under last touch, got %d", got)
	}
}

func TestSummaryLinearSplit(t *testing.T) {
	repo, campaignA, campaignB := summaryFixture()
	svc := New(repo, nil, logger.New("development"))

	summary, err := svc.Summary(context.Background(), "linear")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}

	a := rowFor(t, summary, campaignA)
	b := rowFor(t, summary, campaignB)
	if a.AttributedAmountCents != 60000 || b.AttributedAmountCents != 60000 {
		t.Fatalf("linear splits evenly: %d / %d", a.AttributedAmountCents, b.AttributedAmountCents)
	}
	if a.AttributedAmountCents+b.AttributedAmountCents != 120000 {
		t.Fatalf("credited total must equal the opportunity amount")
	}
}

func TestSummaryReadsThroughCache(t *testing.T) {
	repo, _, _ := summaryFixture()
	cache := newMemorySummaryCache()
	svc := New(repo, cache, logger.New("development"))

	if _, err := svc.Summary(context.Background(), "linear"); err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if _, err := svc.Summary(context.Background(), "linear"); err != nil {
		t.Fatalf("cached summary failed: %v", err)
	}
	if repo.touchpointCalls != 1 {
		t.Fatalf("second call should come from cache, repo hit %d times", repo.touchpointCalls)
	}
}

func TestPilotMetrics(t *testing.T) {
	repo := &fakeReportingRepo{
		aggregates: repository.DecisionAggregates{AcceptedCount: 3, DismissedCount: 1, ActionTasksCreated: 3},
	}
	svc := New(repo, nil, logger.New("development"))

	metrics, err := svc.Pilot(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("pilot failed: %v", err)
	}
	if metrics.AcceptedCount != 3 || metrics.DismissedCount != 1 || metrics.ActionTasksCreated != 3 {
		t.Fatalf("unexpected counts: %+v", metrics)
	}
	if metrics.AcceptanceRatePct != 75 {
		t.Fatalf("acceptance rate should be 75, got %v", metrics.AcceptanceRatePct)
	}
	if got := metrics.WindowEnd.Sub(metrics.WindowStart); got != pilotWindowDays*24*time.Hour {
		t.Fatalf("default window should be trailing 30 days, got %v", got)
	}
}

func TestPilotMetricsInvalidWindow(t *testing.T) {
	svc := New(&fakeReportingRepo{}, nil, logger.New("development"))

	end := time.Now()
	_, err := svc.Pilot(context.Background(), end.Add(time.Hour), end)
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("inverted window should be a validation error, got %v", err)
	}
}

func TestPilotMetricsZeroDecisions(t *testing.T) {
	svc := New(&fakeReportingRepo{}, nil, logger.New("development"))

	metrics, err := svc.Pilot(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("pilot failed: %v", err)
	}
	if metrics.AcceptanceRatePct != 0 {
		t.Fatalf("no decisions means zero acceptance rate, got %v", metrics.AcceptanceRatePct)
	}
}
