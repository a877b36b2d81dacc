// Package insights computes campaign health scores and derives the bounded
// recommendation set, overlaying persisted decision statuses.
package insights

import (
	"context"
	"errors"
	"time"

	"crm_marketing_backend/internal/marketing/domain"
	"crm_marketing_backend/internal/marketing/repository"
	"crm_marketing_backend/platform/apperr"
	"crm_marketing_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository is the data access surface the insights service needs.
type Repository interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (repository.Campaign, error)
	ListActiveCampaigns(ctx context.Context) ([]repository.Campaign, error)
	GetCampaignEngagement(ctx context.Context, campaignID uuid.UUID) (repository.CampaignEngagement, error)
	ListInfluencedOpportunities(ctx context.Context, campaignID uuid.UUID) ([]domain.InfluencedOpportunity, error)

	InsertHealthSnapshot(ctx context.Context, params repository.InsertHealthSnapshotParams) (repository.HealthSnapshot, error)
	GetLatestHealthSnapshot(ctx context.Context, campaignID uuid.UUID) (repository.HealthSnapshot, error)
	LatestDecisionActions(ctx context.Context, recommendationIDs []uuid.UUID) (map[uuid.UUID]string, error)
}

// Service scores campaigns and derives recommendations.
type Service struct {
	repo Repository
	log  *logger.Logger
	now  func() time.Time
}

// New creates the insights service.
func New(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// HealthResult is a freshly computed and persisted health assessment.
type HealthResult struct {
	CampaignID  uuid.UUID
	Score       int
	Trend       string
	WindowDays  int
	ReasonChips []string
	Metrics     domain.HealthMetrics
	ComputedAt  time.Time
}

// Score computes the campaign's current health, appends a snapshot, and
// returns the result. Trend compares against the previous snapshot; the
// first computation for a campaign reports "flat".
func (s *Service) Score(ctx context.Context, campaignID uuid.UUID) (HealthResult, error) {
	facts, err := s.loadCampaignFacts(ctx, campaignID)
	if err != nil {
		return HealthResult{}, err
	}

	health := domain.ScoreHealth(facts, s.now())

	trend := "flat"
	previous, err := s.repo.GetLatestHealthSnapshot(ctx, campaignID)
	switch {
	case err == nil:
		trend = domain.Trend(previous.Score, health.Score)
	case errors.Is(err, repository.ErrNotFound):
		// first snapshot
	default:
		return HealthResult{}, err
	}

	snapshot, err := s.repo.InsertHealthSnapshot(ctx, repository.InsertHealthSnapshotParams{
		CampaignID:  campaignID,
		Score:       health.Score,
		Trend:       trend,
		WindowDays:  domain.HealthWindowDays,
		ReasonChips: health.ReasonChips,
		Metrics:     health.Metrics,
	})
	if err != nil {
		return HealthResult{}, err
	}

	s.log.Info("campaign health computed",
		"campaign_id", campaignID,
		"score", health.Score,
		"trend", trend,
	)
	return HealthResult{
		CampaignID:  campaignID,
		Score:       health.Score,
		Trend:       trend,
		WindowDays:  domain.HealthWindowDays,
		ReasonChips: health.ReasonChips,
		Metrics:     health.Metrics,
		ComputedAt:  snapshot.ComputedAt,
	}, nil
}

// Recommendations derives the current recommendation set for a campaign and
// overlays the latest persisted decision per recommendation id.
func (s *Service) Recommendations(ctx context.Context, campaignID uuid.UUID) ([]domain.Recommendation, error) {
	facts, err := s.loadCampaignFacts(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	recommendations := domain.DeriveRecommendations(facts, s.now())

	ids := make([]uuid.UUID, 0, len(recommendations))
	for _, rec := range recommendations {
		ids = append(ids, rec.ID)
	}
	actions, err := s.repo.LatestDecisionActions(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range recommendations {
		switch actions[recommendations[i].ID] {
		case domain.ActionAccept:
			recommendations[i].Status = domain.StatusAccepted
		case domain.ActionDismiss:
			recommendations[i].Status = domain.StatusDismissed
		}
	}
	return recommendations, nil
}

// ResolveRecommendation maps a recommendation id back to its campaign and
// rule by re-deriving the current sets. Ids are content hashes, so a lookup
// table is unnecessary; the active-campaign scan is cheap at this
// subsystem's scale. An id that no current facts produce is not found —
// recommendations expire when the conditions behind them clear.
func (s *Service) ResolveRecommendation(ctx context.Context, recommendationID uuid.UUID) (domain.Recommendation, domain.CampaignFacts, error) {
	campaigns, err := s.repo.ListActiveCampaigns(ctx)
	if err != nil {
		return domain.Recommendation{}, domain.CampaignFacts{}, err
	}

	now := s.now()
	for _, campaign := range campaigns {
		facts, err := s.loadCampaignFacts(ctx, campaign.ID)
		if err != nil {
			return domain.Recommendation{}, domain.CampaignFacts{}, err
		}
		for _, rec := range domain.DeriveRecommendations(facts, now) {
			if rec.ID == recommendationID {
				return rec, facts, nil
			}
		}
	}
	return domain.Recommendation{}, domain.CampaignFacts{}, apperr.NotFound("recommendation not found")
}

func (s *Service) loadCampaignFacts(ctx context.Context, campaignID uuid.UUID) (domain.CampaignFacts, error) {
	campaign, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.CampaignFacts{}, apperr.NotFound("campaign not found")
		}
		return domain.CampaignFacts{}, err
	}

	engagement, err := s.repo.GetCampaignEngagement(ctx, campaignID)
	if err != nil {
		return domain.CampaignFacts{}, err
	}

	influenced, err := s.repo.ListInfluencedOpportunities(ctx, campaignID)
	if err != nil {
		return domain.CampaignFacts{}, err
	}

	return domain.CampaignFacts{
		CampaignID:         campaign.ID,
		Name:               campaign.Name,
		Status:             campaign.Status,
		OwnerUserID:        campaign.OwnerUserID,
		BudgetPlannedCents: campaign.BudgetPlannedCents,
		BudgetActualCents:  campaign.BudgetActualCents,
		MemberCount:        engagement.MemberCount,
		RespondedCount:     engagement.RespondedCount,
		Opportunities:      influenced,
	}, nil
}
