// Package cache holds the Redis-backed attribution summary cache. The cache
// is strictly optional: every failure degrades to recomputation.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"crm_marketing_backend/internal/marketing/domain"
	"crm_marketing_backend/internal/marketing/reporting"
	"crm_marketing_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

const (
	summaryKeyPrefix = "marketing:attribution_summary:"
	summaryTTL       = 5 * time.Minute
)

// SummaryCache caches computed attribution summaries per crediting model.
// Implements reporting.SummaryCache and the attribution service's
// SummaryInvalidator.
type SummaryCache struct {
	client *redis.Client
	log    *logger.Logger
}

// NewSummaryCache creates the cache around an existing Redis client.
func NewSummaryCache(client *redis.Client, log *logger.Logger) *SummaryCache {
	return &SummaryCache{client: client, log: log}
}

// GetSummary returns a cached summary, or (nil, false) on miss or any Redis
// failure.
func (c *SummaryCache) GetSummary(ctx context.Context, model domain.Model) (*reporting.AttributionSummary, bool) {
	payload, err := c.client.Get(ctx, summaryKeyPrefix+string(model)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("summary cache read failed", "error", err)
		}
		return nil, false
	}

	var summary reporting.AttributionSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		c.log.Warn("summary cache payload invalid", "error", err)
		return nil, false
	}
	return &summary, true
}

// SetSummary stores a computed summary with a short TTL. Write failures are
// logged and swallowed.
func (c *SummaryCache) SetSummary(ctx context.Context, model domain.Model, summary *reporting.AttributionSummary) {
	payload, err := json.Marshal(summary)
	if err != nil {
		c.log.Warn("summary cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, summaryKeyPrefix+string(model), payload, summaryTTL).Err(); err != nil {
		c.log.Warn("summary cache write failed", "error", err)
	}
}

// InvalidateSummary drops every cached model variant. Called after any
// mutation that can change credited amounts.
func (c *SummaryCache) InvalidateSummary(ctx context.Context) {
	keys := []string{
		summaryKeyPrefix + string(domain.ModelFirstTouch),
		summaryKeyPrefix + string(domain.ModelLastTouch),
		summaryKeyPrefix + string(domain.ModelLinear),
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("summary cache invalidation failed", "error", err)
	}
}
