package cache

import (
	"context"
	"testing"
	"time"

	"crm_marketing_backend/internal/marketing/domain"
	"crm_marketing_backend/internal/marketing/reporting"
	"crm_marketing_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*SummaryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSummaryCache(client, logger.New("development")), mr
}

func sampleSummary(model domain.Model) *reporting.AttributionSummary {
	return &reporting.AttributionSummary{
		Model: model,
		Campaigns: []reporting.CampaignSummaryRow{{
			CampaignID:              uuid.New(),
			CampaignName:            "alpha",
			Status:                  "Active",
			InfluencedOpportunities: 2,
			AttributedAmountCents:   120000,
			BudgetActualCents:       50000,
		}},
		ComputedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSummaryCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok := c.GetSummary(ctx, domain.ModelLinear); ok {
		t.Fatalf("empty cache should miss")
	}

	want := sampleSummary(domain.ModelLinear)
	c.SetSummary(ctx, domain.ModelLinear, want)

	got, ok := c.GetSummary(ctx, domain.ModelLinear)
	if !ok {
		t.Fatalf("expected cache hit after set")
	}
	if got.Model != want.Model || len(got.Campaigns) != 1 {
		t.Fatalf("unexpected cached summary: %+v", got)
	}
	if got.Campaigns[0].AttributedAmountCents != 120000 {
		t.Fatalf("cached amounts must survive the round trip")
	}

	// models are cached independently
	if _, ok := c.GetSummary(ctx, domain.ModelFirstTouch); ok {
		t.Fatalf("different model must not hit the linear entry")
	}
}

func TestSummaryCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.SetSummary(ctx, domain.ModelFirstTouch, sampleSummary(domain.ModelFirstTouch))
	c.SetSummary(ctx, domain.ModelLinear, sampleSummary(domain.ModelLinear))

	c.InvalidateSummary(ctx)

	if _, ok := c.GetSummary(ctx, domain.ModelFirstTouch); ok {
		t.Fatalf("invalidation must drop all model variants")
	}
	if _, ok := c.GetSummary(ctx, domain.ModelLinear); ok {
		t.Fatalf("invalidation must drop all model variants")
	}
}

func TestSummaryCacheTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.SetSummary(ctx, domain.ModelLastTouch, sampleSummary(domain.ModelLastTouch))
	mr.FastForward(summaryTTL + time.Second)

	if _, ok := c.GetSummary(ctx, domain.ModelLastTouch); ok {
		t.Fatalf("entries must expire after the TTL")
	}
}

func TestSummaryCacheCorruptPayload(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := mr.Set(summaryKeyPrefix+string(domain.ModelLinear), "{not json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, ok := c.GetSummary(ctx, domain.ModelLinear); ok {
		t.Fatalf("corrupt payloads must be treated as a miss")
	}
}
