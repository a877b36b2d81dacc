// Package decision records accept/dismiss decisions on recommendations and
// owns the follow-up task side effect of an accept.
package decision

import (
	"context"
	"fmt"
	"time"

	"crm_marketing_backend/internal/marketing/domain"
	"crm_marketing_backend/internal/marketing/ports"
	"crm_marketing_backend/internal/marketing/repository"
	"crm_marketing_backend/platform/apperr"
	"crm_marketing_backend/platform/logger"

	"github.com/google/uuid"
)

// followUpDueDays is how far out the follow-up task is due.
const followUpDueDays = 3

// Repository is the data access surface the decision service needs.
type Repository interface {
	InsertDecision(ctx context.Context, params repository.InsertDecisionParams) (repository.Decision, error)
	InsertAcceptDecision(ctx context.Context, params repository.InsertDecisionParams) (repository.Decision, bool, error)
	GetAcceptDecision(ctx context.Context, recommendationID uuid.UUID) (repository.Decision, error)
	SetDecisionFollowUpTask(ctx context.Context, decisionID, taskID uuid.UUID) error
}

// Resolver maps a recommendation id to the recommendation and the campaign
// facts it was derived from.
type Resolver interface {
	ResolveRecommendation(ctx context.Context, recommendationID uuid.UUID) (domain.Recommendation, domain.CampaignFacts, error)
}

// Service applies recommendation decisions.
type Service struct {
	repo       Repository
	resolver   Resolver
	activities ports.ActivityService
	log        *logger.Logger
	now        func() time.Time
}

// New creates the decision service.
func New(repo Repository, resolver Resolver, activities ports.ActivityService, log *logger.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, activities: activities, log: log, now: time.Now}
}

// ApplyParams describes a decision request.
type ApplyParams struct {
	RecommendationID uuid.UUID
	Action           string
	Notes            string
	ActorID          uuid.UUID
}

// Result reports the decision outcome.
type Result struct {
	RecommendationID uuid.UUID
	CampaignID       uuid.UUID
	RuleKey          string
	Status           string
	DecidedAt        time.Time
	FollowUpTaskID   *uuid.UUID
	TaskCreated      bool
}

// ApplyDecision records an accept or dismiss. Accept is idempotent: the
// first accept for a recommendation id creates exactly one follow-up task;
// repeated accepts succeed without creating another, reporting the already
// accepted state. A prior accept left without its task (crash between the
// insert and the task creation) is completed on the next accept. Dismiss
// appends a row with no side effect.
func (s *Service) ApplyDecision(ctx context.Context, params ApplyParams) (Result, error) {
	action, ok := domain.ParseAction(params.Action)
	if !ok {
		return Result{}, apperr.Validation("action must be accept or dismiss")
	}

	recommendation, facts, err := s.resolver.ResolveRecommendation(ctx, params.RecommendationID)
	if err != nil {
		return Result{}, err
	}

	insert := repository.InsertDecisionParams{
		RecommendationID: recommendation.ID,
		CampaignID:       recommendation.CampaignID,
		RuleKey:          recommendation.RuleKey,
		Action:           action,
		Notes:            params.Notes,
		DecidedBy:        params.ActorID,
	}

	if action == domain.ActionDismiss {
		row, err := s.repo.InsertDecision(ctx, insert)
		if err != nil {
			return Result{}, err
		}
		s.log.DecisionEvent(recommendation.ID.String(), action, false)
		return Result{
			RecommendationID: recommendation.ID,
			CampaignID:       recommendation.CampaignID,
			RuleKey:          recommendation.RuleKey,
			Status:           domain.StatusDismissed,
			DecidedAt:        row.DecidedAt,
		}, nil
	}

	row, inserted, err := s.repo.InsertAcceptDecision(ctx, insert)
	if err != nil {
		return Result{}, err
	}
	if !inserted {
		// An accept already exists. If its follow_up_task_id is still NULL
		// the winning call crashed between inserting the row and creating
		// the task; finish the side effect now. Otherwise report the
		// original accept unchanged.
		existing, err := s.repo.GetAcceptDecision(ctx, recommendation.ID)
		if err != nil {
			return Result{}, err
		}
		if existing.FollowUpTaskID != nil {
			s.log.DecisionEvent(recommendation.ID.String(), action, false)
			return Result{
				RecommendationID: recommendation.ID,
				CampaignID:       recommendation.CampaignID,
				RuleKey:          recommendation.RuleKey,
				Status:           domain.StatusAccepted,
				DecidedAt:        existing.DecidedAt,
				FollowUpTaskID:   existing.FollowUpTaskID,
			}, nil
		}
		row = existing
	}

	taskID, err := s.createFollowUpTask(ctx, recommendation, facts)
	if err != nil {
		return Result{}, err
	}
	if err := s.repo.SetDecisionFollowUpTask(ctx, row.ID, taskID); err != nil {
		return Result{}, err
	}

	s.log.DecisionEvent(recommendation.ID.String(), action, true)
	return Result{
		RecommendationID: recommendation.ID,
		CampaignID:       recommendation.CampaignID,
		RuleKey:          recommendation.RuleKey,
		Status:           domain.StatusAccepted,
		DecidedAt:        row.DecidedAt,
		FollowUpTaskID:   &taskID,
		TaskCreated:      true,
	}, nil
}

// createFollowUpTask addresses the task to the owner of the most recently
// attributed open influenced opportunity, falling back to the campaign owner
// when none is open.
func (s *Service) createFollowUpTask(ctx context.Context, rec domain.Recommendation, facts domain.CampaignFacts) (uuid.UUID, error) {
	owner := facts.OwnerUserID
	var latest time.Time
	for _, o := range facts.Opportunities {
		if o.IsClosed {
			continue
		}
		if o.AttributedAt.After(latest) {
			latest = o.AttributedAt
			owner = o.OwnerID
		}
	}

	return s.activities.CreateFollowUpTask(ctx, ports.FollowUpTaskParams{
		OwnerID:           owner,
		Subject:           fmt.Sprintf("Campaign action: %s", rec.Title),
		Description:       fmt.Sprintf("%s\n\nCampaign: %s\nRecommendation: %s", rec.Message, facts.Name, rec.RuleKey),
		RelatedEntityType: "Campaign",
		RelatedEntityID:   rec.CampaignID,
		DueAt:             s.now().Add(followUpDueDays * 24 * time.Hour),
		Priority:          "High",
	})
}
