package repository

import (
	"context"
	"time"

	"crm_marketing_backend/internal/marketing/domain"

	"github.com/google/uuid"
)

// Membership is one campaign membership (a touchpoint). Immutable once
// created except for response status refresh and soft deletion.
type Membership struct {
	ID             uuid.UUID
	CampaignID     uuid.UUID
	EntityType     string
	EntityID       uuid.UUID
	ResponseStatus string
	AddedAt        time.Time
	CreatedAt      time.Time
}

// GetMembership fetches an active membership scoped to its campaign.
func (r *Repository) GetMembership(ctx context.Context, campaignID, membershipID uuid.UUID) (Membership, error) {
	var m Membership
	err := r.pool.QueryRow(ctx, `
		SELECT id, campaign_id, entity_type, entity_id, response_status, added_at, created_at
		FROM campaign_members
		WHERE id = $1 AND campaign_id = $2 AND deleted_at IS NULL
	`, membershipID, campaignID).Scan(
		&m.ID,
		&m.CampaignID,
		&m.EntityType,
		&m.EntityID,
		&m.ResponseStatus,
		&m.AddedAt,
		&m.CreatedAt,
	)
	return m, mapNoRows(err)
}

// UpsertMembershipParams describes a membership add/refresh.
type UpsertMembershipParams struct {
	CampaignID     uuid.UUID
	EntityType     string
	EntityID       uuid.UUID
	ResponseStatus string
}

// UpsertMembership creates a membership, or refreshes the response status of
// an existing active one for the same (campaign, entity). The original
// added_at is preserved on refresh so attribution ordering never shifts.
func (r *Repository) UpsertMembership(ctx context.Context, params UpsertMembershipParams) (Membership, error) {
	var m Membership
	err := r.pool.QueryRow(ctx, `
		INSERT INTO campaign_members (campaign_id, entity_type, entity_id, response_status, added_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (campaign_id, entity_type, entity_id) WHERE deleted_at IS NULL
		DO UPDATE SET response_status = EXCLUDED.response_status
		RETURNING id, campaign_id, entity_type, entity_id, response_status, added_at, created_at
	`, params.CampaignID, params.EntityType, params.EntityID, params.ResponseStatus).Scan(
		&m.ID,
		&m.CampaignID,
		&m.EntityType,
		&m.EntityID,
		&m.ResponseStatus,
		&m.AddedAt,
		&m.CreatedAt,
	)
	return m, err
}

// SoftDeleteMembership marks a membership deleted. Returns ErrNotFound when
// no active membership matches.
func (r *Repository) SoftDeleteMembership(ctx context.Context, campaignID, membershipID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaign_members
		SET deleted_at = now()
		WHERE id = $1 AND campaign_id = $2 AND deleted_at IS NULL
	`, membershipID, campaignID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EntityExists reports whether the membership subject (lead or contact)
// exists and is not deleted.
func (r *Repository) EntityExists(ctx context.Context, entityType string, entityID uuid.UUID) (bool, error) {
	var query string
	switch entityType {
	case domain.EntityTypeLead:
		query = `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1 AND deleted_at IS NULL)`
	case domain.EntityTypeContact:
		query = `SELECT EXISTS (SELECT 1 FROM contacts WHERE id = $1 AND deleted_at IS NULL)`
	default:
		return false, nil
	}

	var exists bool
	err := r.pool.QueryRow(ctx, query, entityID).Scan(&exists)
	return exists, err
}

// touchpointJoin matches active memberships belonging to an opportunity's
// converting leads, its primary contact, or contacts linked from those leads.
const touchpointJoin = `
	m.deleted_at IS NULL AND (
		(m.entity_type = 'Lead' AND m.entity_id IN (
			SELECT l.id FROM leads l
			WHERE l.converted_opportunity_id = o.id AND l.deleted_at IS NULL
		))
		OR (m.entity_type = 'Contact' AND (
			m.entity_id = o.primary_contact_id
			OR m.entity_id IN (
				SELECT l.contact_id FROM leads l
				WHERE l.converted_opportunity_id = o.id
				  AND l.contact_id IS NOT NULL
				  AND l.deleted_at IS NULL
			)
		))
	)`

// ListTouchpointsForOpportunity returns the opportunity's qualifying
// touchpoints ordered ascending by (added_at, created_at). An opportunity
// with no qualifying memberships yields an empty slice.
func (r *Repository) ListTouchpointsForOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]domain.Touchpoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.campaign_id, m.entity_type, m.entity_id, m.added_at, m.created_at
		FROM opportunities o
		JOIN campaign_members m ON `+touchpointJoin+`
		WHERE o.id = $1 AND o.deleted_at IS NULL
		ORDER BY m.added_at ASC, m.created_at ASC
	`, opportunityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	touchpoints := make([]domain.Touchpoint, 0)
	for rows.Next() {
		var tp domain.Touchpoint
		if err := rows.Scan(
			&tp.MembershipID,
			&tp.CampaignID,
			&tp.EntityType,
			&tp.EntityID,
			&tp.AddedAt,
			&tp.CreatedAt,
		); err != nil {
			return nil, err
		}
		touchpoints = append(touchpoints, tp)
	}
	return touchpoints, rows.Err()
}

// ListOpportunityIDsForEntity returns every opportunity whose touchpoint set
// can include memberships of the given lead or contact: for a lead, the
// opportunity it converted into; for a contact, opportunities naming it as
// primary contact plus opportunities converted from leads linked to it.
func (r *Repository) ListOpportunityIDsForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]uuid.UUID, error) {
	var query string
	switch entityType {
	case domain.EntityTypeLead:
		query = `
			SELECT l.converted_opportunity_id
			FROM leads l
			WHERE l.id = $1 AND l.converted_opportunity_id IS NOT NULL AND l.deleted_at IS NULL
		`
	case domain.EntityTypeContact:
		query = `
			SELECT o.id
			FROM opportunities o
			WHERE o.primary_contact_id = $1 AND o.deleted_at IS NULL
			UNION
			SELECT l.converted_opportunity_id
			FROM leads l
			WHERE l.contact_id = $1 AND l.converted_opportunity_id IS NOT NULL AND l.deleted_at IS NULL
		`
	default:
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
