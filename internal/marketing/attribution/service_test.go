package attribution

import (
	"context"
	"sync"
	"testing"
	"time"

	"crm_marketing_backend/internal/marketing/domain"
	"crm_marketing_backend/internal/marketing/repository"
	"crm_marketing_backend/platform/apperr"
	"crm_marketing_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu sync.Mutex

	campaigns     map[uuid.UUID]repository.Campaign
	opportunities map[uuid.UUID]repository.OpportunityRef
	entities      map[string]bool        // entityKey -> exists
	entityOpps    map[string][]uuid.UUID // entityKey -> linked opportunities
	memberships   map[uuid.UUID]repository.Membership
	attributions  map[uuid.UUID]repository.Attribution // by opportunity id
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		campaigns:     make(map[uuid.UUID]repository.Campaign),
		opportunities: make(map[uuid.UUID]repository.OpportunityRef),
		entities:      make(map[string]bool),
		entityOpps:    make(map[string][]uuid.UUID),
		memberships:   make(map[uuid.UUID]repository.Membership),
		attributions:  make(map[uuid.UUID]repository.Attribution),
	}
}

func entityKey(entityType string, entityID uuid.UUID) string {
	return entityType + ":" + entityID.String()
}

func (f *fakeRepo) GetOpportunityRef(_ context.Context, id uuid.UUID) (repository.OpportunityRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.opportunities[id]; ok {
		return o, nil
	}
	return repository.OpportunityRef{}, repository.ErrNotFound
}

func (f *fakeRepo) ListTouchpointsForOpportunity(_ context.Context, opportunityID uuid.UUID) ([]domain.Touchpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Touchpoint
	for _, m := range f.memberships {
		for _, oppID := range f.entityOpps[entityKey(m.EntityType, m.EntityID)] {
			if oppID == opportunityID {
				out = append(out, domain.Touchpoint{
					MembershipID: m.ID,
					CampaignID:   m.CampaignID,
					EntityType:   m.EntityType,
					EntityID:     m.EntityID,
					AddedAt:      m.AddedAt,
					CreatedAt:    m.CreatedAt,
				})
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ListOpportunityIDsForEntity(_ context.Context, entityType string, entityID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.entityOpps[entityKey(entityType, entityID)]...), nil
}

func (f *fakeRepo) GetCampaign(_ context.Context, id uuid.UUID) (repository.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.campaigns[id]; ok {
		return c, nil
	}
	return repository.Campaign{}, repository.ErrNotFound
}

func (f *fakeRepo) GetCampaignNames(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make(map[uuid.UUID]string)
	for _, id := range ids {
		if c, ok := f.campaigns[id]; ok {
			names[id] = c.Name
		}
	}
	return names, nil
}

func (f *fakeRepo) EntityExists(_ context.Context, entityType string, entityID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entities[entityKey(entityType, entityID)], nil
}

func (f *fakeRepo) GetMembership(_ context.Context, campaignID, membershipID uuid.UUID) (repository.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.memberships[membershipID]; ok && m.CampaignID == campaignID {
		return m, nil
	}
	return repository.Membership{}, repository.ErrNotFound
}

func (f *fakeRepo) UpsertMembership(_ context.Context, params repository.UpsertMembershipParams) (repository.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, m := range f.memberships {
		if m.CampaignID == params.CampaignID && m.EntityType == params.EntityType && m.EntityID == params.EntityID {
			m.ResponseStatus = params.ResponseStatus
			f.memberships[id] = m
			return m, nil
		}
	}
	m := repository.Membership{
		ID:             uuid.New(),
		CampaignID:     params.CampaignID,
		EntityType:     params.EntityType,
		EntityID:       params.EntityID,
		ResponseStatus: params.ResponseStatus,
		AddedAt:        time.Now(),
		CreatedAt:      time.Now(),
	}
	f.memberships[m.ID] = m
	return m, nil
}

func (f *fakeRepo) SoftDeleteMembership(_ context.Context, campaignID, membershipID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.memberships[membershipID]; ok && m.CampaignID == campaignID {
		delete(f.memberships, membershipID)
		return nil
	}
	return repository.ErrNotFound
}

func (f *fakeRepo) GetActiveAttribution(_ context.Context, opportunityID uuid.UUID) (repository.Attribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.attributions[opportunityID]; ok {
		return a, nil
	}
	return repository.Attribution{}, repository.ErrNotFound
}

func (f *fakeRepo) UpsertActiveAttribution(_ context.Context, params repository.UpsertAttributionParams) (repository.Attribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := repository.Attribution{
		ID:                    uuid.New(),
		OpportunityID:         params.OpportunityID,
		CampaignID:            params.CampaignID,
		AttributedAmountCents: params.AttributedAmountCents,
		Model:                 string(domain.ModelFirstTouch),
		RuleVersion:           domain.FirstTouchRuleVersion,
		SourceEntityType:      params.SourceEntityType,
		SourceEntityID:        params.SourceEntityID,
		MemberAddedAt:         params.MemberAddedAt,
		AttributedAt:          time.Now(),
	}
	if existing, ok := f.attributions[params.OpportunityID]; ok {
		a.ID = existing.ID
	}
	f.attributions[params.OpportunityID] = a
	return a, nil
}

func (f *fakeRepo) SoftDeleteActiveAttribution(_ context.Context, opportunityID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.attributions, opportunityID)
	return nil
}

func (f *fakeRepo) addMembershipAt(campaignID uuid.UUID, entityType string, entityID uuid.UUID, addedAt time.Time) repository.Membership {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := repository.Membership{
		ID:             uuid.New(),
		CampaignID:     campaignID,
		EntityType:     entityType,
		EntityID:       entityID,
		ResponseStatus: "Sent",
		AddedAt:        addedAt,
		CreatedAt:      addedAt,
	}
	f.memberships[m.ID] = m
	return m
}

func newTestService(repo *fakeRepo) *Service {
	log := logger.New("development")
	return New(repo, NewResolver(repo), nil, log)
}

func seedOpportunity(repo *fakeRepo, amountCents int64) (uuid.UUID, uuid.UUID) {
	oppID := uuid.New()
	leadID := uuid.New()
	repo.opportunities[oppID] = repository.OpportunityRef{ID: oppID, Name: "deal", AmountCents: amountCents, OwnerID: uuid.New()}
	repo.entities[entityKey(domain.EntityTypeLead, leadID)] = true
	repo.entityOpps[entityKey(domain.EntityTypeLead, leadID)] = []uuid.UUID{oppID}
	return oppID, leadID
}

func TestRecomputeSelectsEarliestTouchpoint(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	oppID, leadID := seedOpportunity(repo, 120000)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	early := uuid.New()
	late := uuid.New()
	repo.addMembershipAt(late, domain.EntityTypeLead, leadID, base.Add(48*time.Hour))
	repo.addMembershipAt(early, domain.EntityTypeLead, leadID, base)

	if err := svc.RecomputeForOpportunity(context.Background(), oppID); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	got := repo.attributions[oppID]
	if got.CampaignID != early {
		t.Fatalf("expected earliest campaign %s, got %s", early, got.CampaignID)
	}
	if got.AttributedAmountCents != 120000 {
		t.Fatalf("expected full amount, got %d", got.AttributedAmountCents)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	oppID, leadID := seedOpportunity(repo, 50000)
	campaignID := uuid.New()
	repo.addMembershipAt(campaignID, domain.EntityTypeLead, leadID, time.Now().Add(-time.Hour))

	if err := svc.RecomputeForOpportunity(context.Background(), oppID); err != nil {
		t.Fatalf("first recompute failed: %v", err)
	}
	first := repo.attributions[oppID]

	if err := svc.RecomputeForOpportunity(context.Background(), oppID); err != nil {
		t.Fatalf("second recompute failed: %v", err)
	}
	second := repo.attributions[oppID]

	if first.ID != second.ID || first.CampaignID != second.CampaignID {
		t.Fatalf("recompute over unchanged facts must not change identity: %v vs %v", first, second)
	}
}

func TestRecomputeRefreshesAmount(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	oppID, leadID := seedOpportunity(repo, 50000)
	repo.addMembershipAt(uuid.New(), domain.EntityTypeLead, leadID, time.Now().Add(-time.Hour))

	if err := svc.RecomputeForOpportunity(context.Background(), oppID); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	opp := repo.opportunities[oppID]
	opp.AmountCents = 99000
	repo.opportunities[oppID] = opp

	if err := svc.RecomputeForOpportunity(context.Background(), oppID); err != nil {
		t.Fatalf("recompute after amount change failed: %v", err)
	}
	if got := repo.attributions[oppID].AttributedAmountCents; got != 99000 {
		t.Fatalf("attributed amount should track the opportunity, got %d", got)
	}
}

func TestRecomputeRemovesAttributionWithoutTouchpoints(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	oppID, _ := seedOpportunity(repo, 50000)
	repo.attributions[oppID] = repository.Attribution{ID: uuid.New(), OpportunityID: oppID, CampaignID: uuid.New()}

	if err := svc.RecomputeForOpportunity(context.Background(), oppID); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if _, ok := repo.attributions[oppID]; ok {
		t.Fatalf("attribution must be removed when no touchpoints remain")
	}
}

func TestRecomputeMissingOpportunityRemovesAttribution(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	oppID := uuid.New()
	repo.attributions[oppID] = repository.Attribution{ID: uuid.New(), OpportunityID: oppID}

	if err := svc.RecomputeForOpportunity(context.Background(), oppID); err != nil {
		t.Fatalf("recompute for deleted opportunity should succeed: %v", err)
	}
	if _, ok := repo.attributions[oppID]; ok {
		t.Fatalf("attribution for deleted opportunity must be removed")
	}
}

func TestAddMemberValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	campaignID := uuid.New()
	repo.campaigns[campaignID] = repository.Campaign{ID: campaignID, Name: "spring"}

	_, err := svc.AddMember(context.Background(), campaignID, AddMemberParams{EntityType: "Account", EntityID: uuid.New(), ResponseStatus: "Sent"})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("unsupported entity type should be a validation error, got %v", err)
	}

	_, err = svc.AddMember(context.Background(), uuid.New(), AddMemberParams{EntityType: domain.EntityTypeLead, EntityID: uuid.New(), ResponseStatus: "Sent"})
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("unknown campaign should be not found, got %v", err)
	}

	_, err = svc.AddMember(context.Background(), campaignID, AddMemberParams{EntityType: domain.EntityTypeLead, EntityID: uuid.New(), ResponseStatus: "Sent"})
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("unknown entity should be not found, got %v", err)
	}
}

func TestAddMemberRecomputesAttribution(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	oppID, leadID := seedOpportunity(repo, 75000)
	campaignID := uuid.New()
	repo.campaigns[campaignID] = repository.Campaign{ID: campaignID, Name: "spring"}

	membership, err := svc.AddMember(context.Background(), campaignID, AddMemberParams{
		EntityType:     domain.EntityTypeLead,
		EntityID:       leadID,
		ResponseStatus: "Responded",
	})
	if err != nil {
		t.Fatalf("add member failed: %v", err)
	}
	if membership.ResponseStatus != "Responded" {
		t.Fatalf("unexpected membership: %+v", membership)
	}

	got, ok := repo.attributions[oppID]
	if !ok {
		t.Fatalf("adding the first touchpoint must create an attribution")
	}
	if got.CampaignID != campaignID || got.AttributedAmountCents != 75000 {
		t.Fatalf("unexpected attribution: %+v", got)
	}
}

func TestAddMemberRefreshKeepsIdentityAndRecomputes(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	oppID, leadID := seedOpportunity(repo, 75000)
	campaignID := uuid.New()
	repo.campaigns[campaignID] = repository.Campaign{ID: campaignID, Name: "spring"}

	first, err := svc.AddMember(context.Background(), campaignID, AddMemberParams{
		EntityType:     domain.EntityTypeLead,
		EntityID:       leadID,
		ResponseStatus: "Sent",
	})
	if err != nil {
		t.Fatalf("add member failed: %v", err)
	}

	// Re-adding the same entity refreshes the response status on the
	// existing row rather than creating a second membership.
	opp := repo.opportunities[oppID]
	opp.AmountCents = 99000
	repo.opportunities[oppID] = opp

	second, err := svc.AddMember(context.Background(), campaignID, AddMemberParams{
		EntityType:     domain.EntityTypeLead,
		EntityID:       leadID,
		ResponseStatus: "Responded",
	})
	if err != nil {
		t.Fatalf("refreshing add member failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("refresh must keep the membership identity, got %s want %s", second.ID, first.ID)
	}
	if !second.AddedAt.Equal(first.AddedAt) {
		t.Fatalf("refresh must keep the original added-at, got %v want %v", second.AddedAt, first.AddedAt)
	}
	if second.ResponseStatus != "Responded" {
		t.Fatalf("refresh must update the response status, got %s", second.ResponseStatus)
	}
	if len(repo.memberships) != 1 {
		t.Fatalf("refresh must not create a second membership, got %d", len(repo.memberships))
	}
	if got := repo.attributions[oppID].AttributedAmountCents; got != 99000 {
		t.Fatalf("refresh must recompute attribution against current facts, got %d", got)
	}
}

func TestRemoveMemberReassignsAttribution(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	oppID, leadID := seedOpportunity(repo, 60000)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := uuid.New()
	second := uuid.New()
	firstMembership := repo.addMembershipAt(first, domain.EntityTypeLead, leadID, base)
	repo.addMembershipAt(second, domain.EntityTypeLead, leadID, base.Add(time.Hour))

	if err := svc.RecomputeForOpportunity(context.Background(), oppID); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if repo.attributions[oppID].CampaignID != first {
		t.Fatalf("expected first campaign to win initially")
	}

	if err := svc.RemoveMember(context.Background(), first, firstMembership.ID); err != nil {
		t.Fatalf("remove member failed: %v", err)
	}
	if got := repo.attributions[oppID].CampaignID; got != second {
		t.Fatalf("attribution should reassign to the next-earliest campaign, got %s", got)
	}
}

func TestRemoveLastMemberRemovesAttribution(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	oppID, leadID := seedOpportunity(repo, 60000)
	campaignID := uuid.New()
	membership := repo.addMembershipAt(campaignID, domain.EntityTypeLead, leadID, time.Now().Add(-time.Hour))

	if err := svc.RecomputeForOpportunity(context.Background(), oppID); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	if err := svc.RemoveMember(context.Background(), campaignID, membership.ID); err != nil {
		t.Fatalf("remove member failed: %v", err)
	}
	if _, ok := repo.attributions[oppID]; ok {
		t.Fatalf("removing the last touchpoint must remove the attribution")
	}
}

func TestRemoveMemberNotFound(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	err := svc.RemoveMember(context.Background(), uuid.New(), uuid.New())
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("removing an unknown membership should be not found, got %v", err)
	}
}

func TestExplain(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	oppID, leadID := seedOpportunity(repo, 80000)
	campaignID := uuid.New()
	repo.campaigns[campaignID] = repository.Campaign{ID: campaignID, Name: "spring push"}
	repo.addMembershipAt(campaignID, domain.EntityTypeLead, leadID, time.Now().Add(-time.Hour))

	if err := svc.RecomputeForOpportunity(context.Background(), oppID); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	got, err := svc.Explain(context.Background(), oppID)
	if err != nil {
		t.Fatalf("explain failed: %v", err)
	}
	if got.CampaignID == nil || *got.CampaignID != campaignID {
		t.Fatalf("explanation should name the attributed campaign")
	}
	if got.RuleVersion != domain.FirstTouchRuleVersion {
		t.Fatalf("unexpected rule version %s", got.RuleVersion)
	}
	if len(got.Evidence) == 0 || len(got.Candidates) != 1 {
		t.Fatalf("explanation must list evidence and candidates: %+v", got)
	}
	if got.Candidates[0].CampaignName != "spring push" {
		t.Fatalf("candidate should carry the campaign name")
	}
}

func TestExplainUnknownOpportunity(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	_, err := svc.Explain(context.Background(), uuid.New())
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("unknown opportunity should be not found, got %v", err)
	}
}

func TestRecomputeForEntityIgnoresUnknownType(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	if err := svc.RecomputeForEntity(context.Background(), "Account", uuid.New()); err != nil {
		t.Fatalf("unknown entity types are ignored, got %v", err)
	}
}
