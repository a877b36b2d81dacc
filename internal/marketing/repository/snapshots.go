package repository

import (
	"context"
	"encoding/json"
	"time"

	"crm_marketing_backend/internal/marketing/domain"

	"github.com/google/uuid"
)

// HealthSnapshot is one append-only health computation record.
type HealthSnapshot struct {
	ID          uuid.UUID
	CampaignID  uuid.UUID
	Score       int
	Trend       string
	WindowDays  int
	ReasonChips []string
	Metrics     domain.HealthMetrics
	ComputedAt  time.Time
}

// InsertHealthSnapshotParams describes a snapshot to append.
type InsertHealthSnapshotParams struct {
	CampaignID  uuid.UUID
	Score       int
	Trend       string
	WindowDays  int
	ReasonChips []string
	Metrics     domain.HealthMetrics
}

// InsertHealthSnapshot appends a snapshot row. Snapshots are never updated
// or deleted by normal operation.
func (r *Repository) InsertHealthSnapshot(ctx context.Context, params InsertHealthSnapshotParams) (HealthSnapshot, error) {
	chipsJSON, err := json.Marshal(params.ReasonChips)
	if err != nil {
		return HealthSnapshot{}, err
	}
	metricsJSON, err := json.Marshal(params.Metrics)
	if err != nil {
		return HealthSnapshot{}, err
	}

	snapshot := HealthSnapshot{
		CampaignID:  params.CampaignID,
		Score:       params.Score,
		Trend:       params.Trend,
		WindowDays:  params.WindowDays,
		ReasonChips: params.ReasonChips,
		Metrics:     params.Metrics,
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO campaign_health_snapshots
			(campaign_id, score, trend, window_days, reason_chips, metrics, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, computed_at
	`, params.CampaignID, params.Score, params.Trend, params.WindowDays, chipsJSON, metricsJSON).Scan(
		&snapshot.ID,
		&snapshot.ComputedAt,
	)
	return snapshot, err
}

// GetLatestHealthSnapshot returns the most recent snapshot for a campaign.
func (r *Repository) GetLatestHealthSnapshot(ctx context.Context, campaignID uuid.UUID) (HealthSnapshot, error) {
	var (
		snapshot    HealthSnapshot
		chipsJSON   []byte
		metricsJSON []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, campaign_id, score, trend, window_days, reason_chips, metrics, computed_at
		FROM campaign_health_snapshots
		WHERE campaign_id = $1
		ORDER BY computed_at DESC
		LIMIT 1
	`, campaignID).Scan(
		&snapshot.ID,
		&snapshot.CampaignID,
		&snapshot.Score,
		&snapshot.Trend,
		&snapshot.WindowDays,
		&chipsJSON,
		&metricsJSON,
		&snapshot.ComputedAt,
	)
	if err != nil {
		return HealthSnapshot{}, mapNoRows(err)
	}

	if err := json.Unmarshal(chipsJSON, &snapshot.ReasonChips); err != nil {
		return HealthSnapshot{}, err
	}
	if err := json.Unmarshal(metricsJSON, &snapshot.Metrics); err != nil {
		return HealthSnapshot{}, err
	}
	return snapshot, nil
}
