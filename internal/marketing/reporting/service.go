// Package reporting produces the model-selectable attribution summary and
// the pilot adoption metrics.
package reporting

import (
	"context"
	"sort"
	"time"

	"crm_marketing_backend/internal/marketing/domain"
	"crm_marketing_backend/internal/marketing/repository"
	"crm_marketing_backend/platform/apperr"
	"crm_marketing_backend/platform/logger"

	"github.com/google/uuid"
)

// pilotWindowDays is the default trailing window for pilot metrics.
const pilotWindowDays = 30

// Repository is the data access surface the reporting service needs.
type Repository interface {
	ListActiveCampaigns(ctx context.Context) ([]repository.Campaign, error)
	ListAllOpportunityTouchpoints(ctx context.Context) ([]repository.OpportunityTouchpoints, error)
	AggregateDecisions(ctx context.Context, windowStart, windowEnd time.Time) (repository.DecisionAggregates, error)
}

// SummaryCache is a read-through cache for computed summaries. Implementations
// must treat a miss and a backend failure the same way: (nil, false).
type SummaryCache interface {
	GetSummary(ctx context.Context, model domain.Model) (*AttributionSummary, bool)
	SetSummary(ctx context.Context, model domain.Model, summary *AttributionSummary)
}

// Service computes reports.
type Service struct {
	repo  Repository
	cache SummaryCache
	log   *logger.Logger
	now   func() time.Time
}

// New creates the reporting service. cache may be nil.
func New(repo Repository, cache SummaryCache, log *logger.Logger) *Service {
	return &Service{repo: repo, cache: cache, log: log, now: time.Now}
}

// CampaignSummaryRow is one campaign's credited totals under a model.
type CampaignSummaryRow struct {
	CampaignID              uuid.UUID `json:"campaignId"`
	CampaignName            string    `json:"campaignName"`
	Status                  string    `json:"status"`
	InfluencedOpportunities int       `json:"influencedOpportunities"`
	AttributedAmountCents   int64     `json:"attributedAmountCents"`
	BudgetActualCents       int64     `json:"budgetActualCents"`
}

// AttributionSummary is the cross-campaign attribution report for one model.
type AttributionSummary struct {
	Model      domain.Model         `json:"model"`
	Campaigns  []CampaignSummaryRow `json:"campaigns"`
	ComputedAt time.Time            `json:"computedAt"`
}

// Summary computes the attribution summary under the requested crediting
// model. Credit is recomputed from current touchpoints on every call, never
// read from stored attribution rows, so all three models stay consistent
// with the same fact base. Every active campaign appears, with zeros when
// nothing is credited to it.
func (s *Service) Summary(ctx context.Context, modelName string) (*AttributionSummary, error) {
	model, ok := domain.ParseModel(modelName)
	if !ok {
		return nil, apperr.Validation("model must be first_touch, last_touch, or linear")
	}

	if s.cache != nil {
		if cached, ok := s.cache.GetSummary(ctx, model); ok {
			return cached, nil
		}
	}

	campaigns, err := s.repo.ListActiveCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	facts, err := s.repo.ListAllOpportunityTouchpoints(ctx)
	if err != nil {
		return nil, err
	}

	type totals struct {
		influenced  int
		amountCents int64
	}
	credited := make(map[uuid.UUID]totals)
	for _, opp := range facts {
		assignments := domain.Credit(opp.Touchpoints, opp.AmountCents, model)
		for _, a := range assignments {
			t := credited[a.CampaignID]
			t.influenced++
			t.amountCents += a.AmountCents
			credited[a.CampaignID] = t
		}
	}

	rows := make([]CampaignSummaryRow, 0, len(campaigns))
	for _, c := range campaigns {
		t := credited[c.ID]
		rows = append(rows, CampaignSummaryRow{
			CampaignID:              c.ID,
			CampaignName:            c.Name,
			Status:                  c.Status,
			InfluencedOpportunities: t.influenced,
			AttributedAmountCents:   t.amountCents,
			BudgetActualCents:       c.BudgetActualCents,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].AttributedAmountCents != rows[j].AttributedAmountCents {
			return rows[i].AttributedAmountCents > rows[j].AttributedAmountCents
		}
		return rows[i].CampaignName < rows[j].CampaignName
	})

	summary := &AttributionSummary{
		Model:      model,
		Campaigns:  rows,
		ComputedAt: s.now().UTC(),
	}
	if s.cache != nil {
		s.cache.SetSummary(ctx, model, summary)
	}
	return summary, nil
}

// PilotMetrics reports recommendation adoption over a window.
type PilotMetrics struct {
	WindowStart        time.Time `json:"windowStart"`
	WindowEnd          time.Time `json:"windowEnd"`
	AcceptedCount      int       `json:"acceptedCount"`
	DismissedCount     int       `json:"dismissedCount"`
	AcceptanceRatePct  float64   `json:"acceptanceRatePct"`
	ActionTasksCreated int       `json:"actionTasksCreated"`
}

// Pilot aggregates decision counts inside [windowStart, windowEnd]. Zero
// times default to the trailing 30 days ending now. A start after its end is
// rejected.
func (s *Service) Pilot(ctx context.Context, windowStart, windowEnd time.Time) (PilotMetrics, error) {
	if windowEnd.IsZero() {
		windowEnd = s.now().UTC()
	}
	if windowStart.IsZero() {
		windowStart = windowEnd.Add(-pilotWindowDays * 24 * time.Hour)
	}
	if windowStart.After(windowEnd) {
		return PilotMetrics{}, apperr.Validation("window start must not be after window end")
	}

	agg, err := s.repo.AggregateDecisions(ctx, windowStart, windowEnd)
	if err != nil {
		return PilotMetrics{}, err
	}

	var acceptanceRate float64
	if total := agg.AcceptedCount + agg.DismissedCount; total > 0 {
		acceptanceRate = float64(agg.AcceptedCount) / float64(total) * 100
	}

	return PilotMetrics{
		WindowStart:        windowStart,
		WindowEnd:          windowEnd,
		AcceptedCount:      agg.AcceptedCount,
		DismissedCount:     agg.DismissedCount,
		AcceptanceRatePct:  acceptanceRate,
		ActionTasksCreated: agg.ActionTasksCreated,
	}, nil
}
