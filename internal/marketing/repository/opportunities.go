package repository

import (
	"context"

	"crm_marketing_backend/internal/marketing/domain"

	"github.com/google/uuid"
)

// OpportunityRef is the read-only opportunity slice this core consumes.
type OpportunityRef struct {
	ID               uuid.UUID
	Name             string
	AmountCents      int64
	Currency         string
	OwnerID          uuid.UUID
	AccountID        *uuid.UUID
	PrimaryContactID *uuid.UUID
	IsClosed         bool
	IsWon            bool
}

// GetOpportunityRef fetches a non-deleted opportunity reference.
func (r *Repository) GetOpportunityRef(ctx context.Context, id uuid.UUID) (OpportunityRef, error) {
	var o OpportunityRef
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, amount_cents, currency, owner_id, account_id, primary_contact_id, is_closed, is_won
		FROM opportunities
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(
		&o.ID,
		&o.Name,
		&o.AmountCents,
		&o.Currency,
		&o.OwnerID,
		&o.AccountID,
		&o.PrimaryContactID,
		&o.IsClosed,
		&o.IsWon,
	)
	return o, mapNoRows(err)
}

// OpportunityTouchpoints pairs an opportunity's amount with its full ordered
// touchpoint set. This is the reporting fact base: the summary recomputes
// crediting from it instead of reading stored attribution rows.
type OpportunityTouchpoints struct {
	OpportunityID uuid.UUID
	AmountCents   int64
	Touchpoints   []domain.Touchpoint
}

// ListAllOpportunityTouchpoints loads every non-deleted opportunity that has
// at least one qualifying touchpoint, with touchpoints ordered ascending by
// (added_at, created_at) within each opportunity.
func (r *Repository) ListAllOpportunityTouchpoints(ctx context.Context) ([]OpportunityTouchpoints, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.amount_cents, m.id, m.campaign_id, m.entity_type, m.entity_id, m.added_at, m.created_at
		FROM opportunities o
		JOIN campaign_members m ON `+touchpointJoin+`
		WHERE o.deleted_at IS NULL
		ORDER BY o.id, m.added_at ASC, m.created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byOpportunity := make(map[uuid.UUID]int)
	out := make([]OpportunityTouchpoints, 0)
	for rows.Next() {
		var (
			oppID       uuid.UUID
			amountCents int64
			tp          domain.Touchpoint
		)
		if err := rows.Scan(
			&oppID,
			&amountCents,
			&tp.MembershipID,
			&tp.CampaignID,
			&tp.EntityType,
			&tp.EntityID,
			&tp.AddedAt,
			&tp.CreatedAt,
		); err != nil {
			return nil, err
		}

		idx, ok := byOpportunity[oppID]
		if !ok {
			idx = len(out)
			byOpportunity[oppID] = idx
			out = append(out, OpportunityTouchpoints{OpportunityID: oppID, AmountCents: amountCents})
		}
		out[idx].Touchpoints = append(out[idx].Touchpoints, tp)
	}
	return out, rows.Err()
}
