// Package marketing provides the marketing attribution and insights module:
// touchpoint resolution, first-touch attribution, campaign health, and
// recommendation decisioning.
package marketing

import (
	"context"

	"crm_marketing_backend/internal/activities"
	"crm_marketing_backend/internal/events"
	apphttp "crm_marketing_backend/internal/http"
	"crm_marketing_backend/internal/marketing/attribution"
	"crm_marketing_backend/internal/marketing/cache"
	"crm_marketing_backend/internal/marketing/decision"
	"crm_marketing_backend/internal/marketing/handler"
	"crm_marketing_backend/internal/marketing/insights"
	"crm_marketing_backend/internal/marketing/reporting"
	"crm_marketing_backend/internal/marketing/repository"
	"crm_marketing_backend/platform/logger"
	"crm_marketing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module wires the marketing domain: repositories, services, handler, and
// the event subscriptions that keep attribution current.
type Module struct {
	handler        *handler.Handler
	attributionSvc *attribution.Service
	log            *logger.Logger
}

// NewModule creates the marketing module with all dependencies wired.
// redisClient may be nil; the summary cache is then disabled and every
// summary request recomputes.
func NewModule(pool *pgxpool.Pool, eventBus *events.InMemoryBus, redisClient *redis.Client, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)

	var summaryCache *cache.SummaryCache
	if redisClient != nil {
		summaryCache = cache.NewSummaryCache(redisClient, log)
	}

	resolver := attribution.NewResolver(repo)
	var invalidator attribution.SummaryInvalidator
	if summaryCache != nil {
		invalidator = summaryCache
	}
	attributionSvc := attribution.New(repo, resolver, invalidator, log)

	insightsSvc := insights.New(repo, log)
	activitySvc := activities.NewService(pool, log)
	decisionSvc := decision.New(repo, insightsSvc, activitySvc, log)

	var reportingCache reporting.SummaryCache
	if summaryCache != nil {
		reportingCache = summaryCache
	}
	reportingSvc := reporting.New(repo, reportingCache, log)

	m := &Module{
		handler:        handler.New(attributionSvc, insightsSvc, decisionSvc, reportingSvc, val),
		attributionSvc: attributionSvc,
		log:            log,
	}
	m.subscribe(eventBus)
	return m
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "marketing"
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/marketing"))
}

// subscribe wires attribution recomputes to the collaborator events that can
// change touchpoint sets or attributed amounts. Publishers use PublishSync,
// so recomputes complete inside the publishing request.
func (m *Module) subscribe(bus *events.InMemoryBus) {
	bus.Subscribe(events.OpportunityAmountChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		if evt, ok := e.(events.OpportunityAmountChanged); ok {
			return m.attributionSvc.RecomputeForOpportunity(ctx, evt.OpportunityID)
		}
		return nil
	}))

	bus.Subscribe(events.OpportunityLinkChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		if evt, ok := e.(events.OpportunityLinkChanged); ok {
			return m.attributionSvc.RecomputeForOpportunity(ctx, evt.OpportunityID)
		}
		return nil
	}))

	bus.Subscribe(events.CampaignMemberAdded{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		if evt, ok := e.(events.CampaignMemberAdded); ok {
			return m.attributionSvc.RecomputeForEntity(ctx, evt.EntityType, evt.EntityID)
		}
		return nil
	}))

	bus.Subscribe(events.CampaignMemberRemoved{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		if evt, ok := e.(events.CampaignMemberRemoved); ok {
			return m.attributionSvc.RecomputeForEntity(ctx, evt.EntityType, evt.EntityID)
		}
		return nil
	}))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
