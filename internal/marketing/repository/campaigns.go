package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Campaign is the read-only campaign reference this core consumes. Campaign
// CRUD belongs to the campaign-management collaborator.
type Campaign struct {
	ID                 uuid.UUID
	Name               string
	Type               string
	Channel            string
	Status             string
	OwnerUserID        uuid.UUID
	BudgetPlannedCents int64
	BudgetActualCents  int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const campaignColumns = `id, name, type, channel, status, owner_user_id,
	budget_planned_cents, budget_actual_cents, created_at, updated_at`

// GetCampaign fetches a single non-deleted campaign.
func (r *Repository) GetCampaign(ctx context.Context, id uuid.UUID) (Campaign, error) {
	var c Campaign
	err := r.pool.QueryRow(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(
		&c.ID,
		&c.Name,
		&c.Type,
		&c.Channel,
		&c.Status,
		&c.OwnerUserID,
		&c.BudgetPlannedCents,
		&c.BudgetActualCents,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, mapNoRows(err)
}

// ListActiveCampaigns returns all non-deleted campaigns, newest first.
func (r *Repository) ListActiveCampaigns(ctx context.Context) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := make([]Campaign, 0)
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Type,
			&c.Channel,
			&c.Status,
			&c.OwnerUserID,
			&c.BudgetPlannedCents,
			&c.BudgetActualCents,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// GetCampaignNames resolves display names for a set of campaigns.
func (r *Repository) GetCampaignNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name
		FROM campaigns
		WHERE id = ANY($1) AND deleted_at IS NULL
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[uuid.UUID]string, len(ids))
	for rows.Next() {
		var (
			id   uuid.UUID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// CampaignEngagement is the membership-derived engagement signal for a campaign.
type CampaignEngagement struct {
	MemberCount    int
	RespondedCount int
}

// GetCampaignEngagement counts active members and how many of them responded
// or qualified.
func (r *Repository) GetCampaignEngagement(ctx context.Context, campaignID uuid.UUID) (CampaignEngagement, error) {
	var e CampaignEngagement
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE response_status IN ('Responded', 'Qualified'))
		FROM campaign_members
		WHERE campaign_id = $1 AND deleted_at IS NULL
	`, campaignID).Scan(&e.MemberCount, &e.RespondedCount)
	return e, err
}
