package repository

import (
	"context"
	"time"

	"crm_marketing_backend/internal/marketing/domain"

	"github.com/google/uuid"
)

// Attribution is the persisted primary (first-touch) attribution row.
// The partial unique index on (opportunity_id) WHERE deleted_at IS NULL
// guarantees at most one active row per opportunity.
type Attribution struct {
	ID                    uuid.UUID
	OpportunityID         uuid.UUID
	CampaignID            uuid.UUID
	AttributedAmountCents int64
	Model                 string
	RuleVersion           string
	SourceEntityType      string
	SourceEntityID        uuid.UUID
	MemberAddedAt         time.Time
	AttributedAt          time.Time
}

// GetActiveAttribution fetches the active attribution for an opportunity.
func (r *Repository) GetActiveAttribution(ctx context.Context, opportunityID uuid.UUID) (Attribution, error) {
	var a Attribution
	err := r.pool.QueryRow(ctx, `
		SELECT id, opportunity_id, campaign_id, attributed_amount_cents, model, rule_version,
		       source_entity_type, source_entity_id, member_added_at, attributed_at
		FROM campaign_attributions
		WHERE opportunity_id = $1 AND deleted_at IS NULL
	`, opportunityID).Scan(
		&a.ID,
		&a.OpportunityID,
		&a.CampaignID,
		&a.AttributedAmountCents,
		&a.Model,
		&a.RuleVersion,
		&a.SourceEntityType,
		&a.SourceEntityID,
		&a.MemberAddedAt,
		&a.AttributedAt,
	)
	return a, mapNoRows(err)
}

// UpsertAttributionParams describes a recompute result to persist.
type UpsertAttributionParams struct {
	OpportunityID         uuid.UUID
	CampaignID            uuid.UUID
	AttributedAmountCents int64
	SourceEntityType      string
	SourceEntityID        uuid.UUID
	MemberAddedAt         time.Time
}

// UpsertActiveAttribution creates or reassigns the active attribution row in
// a single atomic statement against the partial unique index. Racing
// recomputes for the same opportunity resolve last-write-wins and can never
// produce duplicate active rows.
func (r *Repository) UpsertActiveAttribution(ctx context.Context, params UpsertAttributionParams) (Attribution, error) {
	var a Attribution
	err := r.pool.QueryRow(ctx, `
		INSERT INTO campaign_attributions
			(opportunity_id, campaign_id, attributed_amount_cents, model, rule_version,
			 source_entity_type, source_entity_id, member_added_at, attributed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (opportunity_id) WHERE deleted_at IS NULL
		DO UPDATE SET
			campaign_id = EXCLUDED.campaign_id,
			attributed_amount_cents = EXCLUDED.attributed_amount_cents,
			rule_version = EXCLUDED.rule_version,
			source_entity_type = EXCLUDED.source_entity_type,
			source_entity_id = EXCLUDED.source_entity_id,
			member_added_at = EXCLUDED.member_added_at,
			attributed_at = now()
		RETURNING id, opportunity_id, campaign_id, attributed_amount_cents, model, rule_version,
		          source_entity_type, source_entity_id, member_added_at, attributed_at
	`, params.OpportunityID, params.CampaignID, params.AttributedAmountCents,
		string(domain.ModelFirstTouch), domain.FirstTouchRuleVersion,
		params.SourceEntityType, params.SourceEntityID, params.MemberAddedAt).Scan(
		&a.ID,
		&a.OpportunityID,
		&a.CampaignID,
		&a.AttributedAmountCents,
		&a.Model,
		&a.RuleVersion,
		&a.SourceEntityType,
		&a.SourceEntityID,
		&a.MemberAddedAt,
		&a.AttributedAt,
	)
	return a, err
}

// SoftDeleteActiveAttribution removes the active attribution for an
// opportunity. Deleting an absent row is not an error; recompute treats
// "nothing to remove" as success.
func (r *Repository) SoftDeleteActiveAttribution(ctx context.Context, opportunityID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_attributions
		SET deleted_at = now()
		WHERE opportunity_id = $1 AND deleted_at IS NULL
	`, opportunityID)
	return err
}

// ListInfluencedOpportunities returns the opportunities actively attributed
// to a campaign, joined with their current state. Feeds CampaignFacts.
func (r *Repository) ListInfluencedOpportunities(ctx context.Context, campaignID uuid.UUID) ([]domain.InfluencedOpportunity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.name, o.owner_id, a.attributed_amount_cents, o.is_closed, o.is_won,
		       a.attributed_at, GREATEST(o.updated_at, o.created_at)
		FROM campaign_attributions a
		JOIN opportunities o ON o.id = a.opportunity_id AND o.deleted_at IS NULL
		WHERE a.campaign_id = $1 AND a.deleted_at IS NULL
		ORDER BY a.attributed_at DESC
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	opportunities := make([]domain.InfluencedOpportunity, 0)
	for rows.Next() {
		var o domain.InfluencedOpportunity
		if err := rows.Scan(
			&o.OpportunityID,
			&o.Name,
			&o.OwnerID,
			&o.AmountCents,
			&o.IsClosed,
			&o.IsWon,
			&o.AttributedAt,
			&o.LastActivityAt,
		); err != nil {
			return nil, err
		}
		opportunities = append(opportunities, o)
	}
	return opportunities, rows.Err()
}
