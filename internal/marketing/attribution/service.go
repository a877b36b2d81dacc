// Package attribution owns the persisted primary attribution: touchpoint
// resolution, first-touch recompute, and the membership mutations that
// trigger it.
package attribution

import (
	"context"
	"errors"
	"fmt"

	"crm_marketing_backend/internal/marketing/domain"
	"crm_marketing_backend/internal/marketing/repository"
	"crm_marketing_backend/platform/apperr"
	"crm_marketing_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// recomputeFanOutLimit bounds concurrent recomputes when a membership change
// touches many opportunities. Distinct opportunities never contend on the
// same attribution row.
const recomputeFanOutLimit = 4

// Repository is the data access surface this service needs.
type Repository interface {
	GetOpportunityRef(ctx context.Context, id uuid.UUID) (repository.OpportunityRef, error)
	ListTouchpointsForOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]domain.Touchpoint, error)
	ListOpportunityIDsForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]uuid.UUID, error)

	GetCampaign(ctx context.Context, id uuid.UUID) (repository.Campaign, error)
	GetCampaignNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	EntityExists(ctx context.Context, entityType string, entityID uuid.UUID) (bool, error)

	GetMembership(ctx context.Context, campaignID, membershipID uuid.UUID) (repository.Membership, error)
	UpsertMembership(ctx context.Context, params repository.UpsertMembershipParams) (repository.Membership, error)
	SoftDeleteMembership(ctx context.Context, campaignID, membershipID uuid.UUID) error

	GetActiveAttribution(ctx context.Context, opportunityID uuid.UUID) (repository.Attribution, error)
	UpsertActiveAttribution(ctx context.Context, params repository.UpsertAttributionParams) (repository.Attribution, error)
	SoftDeleteActiveAttribution(ctx context.Context, opportunityID uuid.UUID) error
}

// SummaryInvalidator drops cached attribution summaries after any mutation
// that can change them.
type SummaryInvalidator interface {
	InvalidateSummary(ctx context.Context)
}

// Resolver produces the ordered touchpoint set for an opportunity.
type Resolver struct {
	repo Repository
}

// NewResolver creates a touchpoint resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the opportunity's touchpoints ordered ascending by
// (added_at, created_at). No touchpoints is a normal state, not an error.
func (r *Resolver) Resolve(ctx context.Context, opportunityID uuid.UUID) ([]domain.Touchpoint, error) {
	return r.repo.ListTouchpointsForOpportunity(ctx, opportunityID)
}

// Service is the attribution store manager.
type Service struct {
	repo     Repository
	resolver *Resolver
	cache    SummaryInvalidator
	log      *logger.Logger
}

// New creates the attribution service. cache may be nil when no summary
// cache is configured.
func New(repo Repository, resolver *Resolver, cache SummaryInvalidator, log *logger.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, cache: cache, log: log}
}

// RecomputeForOpportunity re-derives the primary attribution for one
// opportunity. The persisted record always uses the first-touch model.
// Zero touchpoints (or a deleted opportunity) soft-deletes any active
// attribution. Safe under retry: recomputing over unchanged facts upserts
// the same row. Concurrent recomputes for the same opportunity are
// last-write-wins.
func (s *Service) RecomputeForOpportunity(ctx context.Context, opportunityID uuid.UUID) error {
	opp, err := s.repo.GetOpportunityRef(ctx, opportunityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.removeAttribution(ctx, opportunityID)
		}
		return err
	}

	touchpoints, err := s.resolver.Resolve(ctx, opportunityID)
	if err != nil {
		return err
	}

	winner, ok := domain.WinningTouchpoint(touchpoints)
	if !ok {
		return s.removeAttribution(ctx, opportunityID)
	}

	attribution, err := s.repo.UpsertActiveAttribution(ctx, repository.UpsertAttributionParams{
		OpportunityID:         opportunityID,
		CampaignID:            winner.CampaignID,
		AttributedAmountCents: opp.AmountCents,
		SourceEntityType:      winner.EntityType,
		SourceEntityID:        winner.EntityID,
		MemberAddedAt:         winner.AddedAt,
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	s.log.AttributionEvent(opportunityID.String(), attribution.CampaignID.String(), attribution.AttributedAmountCents, "attributed")
	return nil
}

// RecomputeForEntity recomputes every opportunity whose touchpoint set can
// include memberships of the given lead or contact. Unknown entity types are
// ignored, matching the tolerant behavior collaborators expect from a
// trigger path.
func (s *Service) RecomputeForEntity(ctx context.Context, entityType string, entityID uuid.UUID) error {
	if !domain.IsSupportedEntityType(entityType) {
		return nil
	}

	opportunityIDs, err := s.repo.ListOpportunityIDsForEntity(ctx, entityType, entityID)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recomputeFanOutLimit)
	for _, id := range opportunityIDs {
		opportunityID := id
		g.Go(func() error {
			return s.RecomputeForOpportunity(gctx, opportunityID)
		})
	}
	return g.Wait()
}

// AddMemberParams describes a membership add/refresh request.
type AddMemberParams struct {
	EntityType     string
	EntityID       uuid.UUID
	ResponseStatus string
}

// AddMember creates or refreshes a campaign membership and recomputes
// attribution for every affected opportunity.
func (s *Service) AddMember(ctx context.Context, campaignID uuid.UUID, params AddMemberParams) (repository.Membership, error) {
	if !domain.IsSupportedEntityType(params.EntityType) {
		return repository.Membership{}, apperr.Validation("entity type must be Lead or Contact")
	}
	if !domain.IsSupportedResponseStatus(params.ResponseStatus) {
		return repository.Membership{}, apperr.Validation("invalid response status")
	}

	if _, err := s.repo.GetCampaign(ctx, campaignID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Membership{}, apperr.NotFound("campaign not found")
		}
		return repository.Membership{}, err
	}

	exists, err := s.repo.EntityExists(ctx, params.EntityType, params.EntityID)
	if err != nil {
		return repository.Membership{}, err
	}
	if !exists {
		return repository.Membership{}, apperr.NotFound(fmt.Sprintf("%s record not found", params.EntityType))
	}

	membership, err := s.repo.UpsertMembership(ctx, repository.UpsertMembershipParams{
		CampaignID:     campaignID,
		EntityType:     params.EntityType,
		EntityID:       params.EntityID,
		ResponseStatus: params.ResponseStatus,
	})
	if err != nil {
		return repository.Membership{}, err
	}

	if err := s.RecomputeForEntity(ctx, membership.EntityType, membership.EntityID); err != nil {
		return repository.Membership{}, err
	}
	return membership, nil
}

// RemoveMember soft-deletes a membership and recomputes attribution for
// every opportunity that may have depended on it: attribution reassigns to
// the next-earliest remaining touchpoint, or is removed when none remain.
// This is the only path by which removal changes an attribution's campaign.
func (s *Service) RemoveMember(ctx context.Context, campaignID, membershipID uuid.UUID) error {
	membership, err := s.repo.GetMembership(ctx, campaignID, membershipID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("campaign membership not found")
		}
		return err
	}

	if err := s.repo.SoftDeleteMembership(ctx, campaignID, membershipID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("campaign membership not found")
		}
		return err
	}

	return s.RecomputeForEntity(ctx, membership.EntityType, membership.EntityID)
}

// Explanation describes why an opportunity's current attribution was chosen.
type Explanation struct {
	OpportunityID uuid.UUID
	CampaignID    *uuid.UUID
	Model         string
	RuleVersion   string
	AttributedAt  *string
	Evidence      []string
	Candidates    []ExplanationCandidate
}

// ExplanationCandidate is one membership that was evaluated.
type ExplanationCandidate struct {
	EntityType   string
	EntityID     uuid.UUID
	CampaignID   uuid.UUID
	CampaignName string
	AddedAt      string
}

// Explain reports the evaluated candidate memberships and the evidence for
// the current first-touch selection.
func (s *Service) Explain(ctx context.Context, opportunityID uuid.UUID) (Explanation, error) {
	if _, err := s.repo.GetOpportunityRef(ctx, opportunityID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Explanation{}, apperr.NotFound("opportunity not found")
		}
		return Explanation{}, err
	}

	touchpoints, err := s.resolver.Resolve(ctx, opportunityID)
	if err != nil {
		return Explanation{}, err
	}

	campaignIDs := make([]uuid.UUID, 0, len(touchpoints))
	for _, tp := range touchpoints {
		campaignIDs = append(campaignIDs, tp.CampaignID)
	}
	names, err := s.repo.GetCampaignNames(ctx, campaignIDs)
	if err != nil {
		return Explanation{}, err
	}

	candidates := make([]ExplanationCandidate, 0, len(touchpoints))
	for _, tp := range touchpoints {
		candidates = append(candidates, ExplanationCandidate{
			EntityType:   tp.EntityType,
			EntityID:     tp.EntityID,
			CampaignID:   tp.CampaignID,
			CampaignName: names[tp.CampaignID],
			AddedAt:      tp.AddedAt.UTC().Format("2006-01-02 15:04:05Z"),
		})
	}

	explanation := Explanation{
		OpportunityID: opportunityID,
		Model:         string(domain.ModelFirstTouch),
		RuleVersion:   domain.FirstTouchRuleVersion,
		Candidates:    candidates,
	}

	attribution, err := s.repo.GetActiveAttribution(ctx, opportunityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			explanation.Evidence = []string{"no first-touch attribution currently assigned for this opportunity"}
			return explanation, nil
		}
		return Explanation{}, err
	}

	attributedAt := attribution.AttributedAt.UTC().Format("2006-01-02 15:04:05Z")
	explanation.CampaignID = &attribution.CampaignID
	explanation.AttributedAt = &attributedAt
	explanation.Evidence = []string{
		fmt.Sprintf("model: first-touch (%s)", attribution.RuleVersion),
		fmt.Sprintf("earliest membership selected at %s", attribution.MemberAddedAt.UTC().Format("2006-01-02 15:04:05Z")),
		fmt.Sprintf("selected campaign id: %s", attribution.CampaignID),
		fmt.Sprintf("qualified memberships evaluated: %d", len(candidates)),
	}
	return explanation, nil
}

func (s *Service) removeAttribution(ctx context.Context, opportunityID uuid.UUID) error {
	if err := s.repo.SoftDeleteActiveAttribution(ctx, opportunityID); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.AttributionEvent(opportunityID.String(), "", 0, "removed")
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateSummary(ctx)
	}
}
