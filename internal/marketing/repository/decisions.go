package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Decision is one persisted recommendation decision row. Multiple rows may
// exist per recommendation over time (corrections), but the partial unique
// index on (recommendation_id) WHERE action = 'accept' admits at most one
// accept ever — that row gates the follow-up side effect. A NULL
// follow_up_task_id on the accept row means the side effect has not
// completed yet.
type Decision struct {
	ID               uuid.UUID
	RecommendationID uuid.UUID
	CampaignID       uuid.UUID
	RuleKey          string
	Action           string
	Notes            string
	DecidedBy        uuid.UUID
	DecidedAt        time.Time
	FollowUpTaskID   *uuid.UUID
}

// InsertDecisionParams describes a decision row to persist.
type InsertDecisionParams struct {
	RecommendationID uuid.UUID
	CampaignID       uuid.UUID
	RuleKey          string
	Action           string
	Notes            string
	DecidedBy        uuid.UUID
}

const decisionReturning = `id, recommendation_id, campaign_id, rule_key, action, notes,
	decided_by, decided_at, follow_up_task_id`

// InsertDecision persists a decision row unconditionally (dismiss path and
// historical corrections).
func (r *Repository) InsertDecision(ctx context.Context, params InsertDecisionParams) (Decision, error) {
	var d Decision
	err := r.pool.QueryRow(ctx, `
		INSERT INTO campaign_recommendation_decisions
			(recommendation_id, campaign_id, rule_key, action, notes, decided_by, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING `+decisionReturning+`
	`, params.RecommendationID, params.CampaignID, params.RuleKey, params.Action, params.Notes, params.DecidedBy).Scan(
		&d.ID,
		&d.RecommendationID,
		&d.CampaignID,
		&d.RuleKey,
		&d.Action,
		&d.Notes,
		&d.DecidedBy,
		&d.DecidedAt,
		&d.FollowUpTaskID,
	)
	return d, err
}

// InsertAcceptDecision persists an accept decision through the accept-once
// partial unique index. The boolean reports whether this call actually
// inserted the row; false means an accept already existed, so the caller
// must not trigger the side effect again. This is the transactional
// check-then-act the decision manager relies on — never replace it with a
// read followed by an insert.
func (r *Repository) InsertAcceptDecision(ctx context.Context, params InsertDecisionParams) (Decision, bool, error) {
	var d Decision
	err := r.pool.QueryRow(ctx, `
		INSERT INTO campaign_recommendation_decisions
			(recommendation_id, campaign_id, rule_key, action, notes, decided_by, decided_at)
		VALUES ($1, $2, $3, 'accept', $4, $5, now())
		ON CONFLICT (recommendation_id) WHERE action = 'accept'
		DO NOTHING
		RETURNING `+decisionReturning+`
	`, params.RecommendationID, params.CampaignID, params.RuleKey, params.Notes, params.DecidedBy).Scan(
		&d.ID,
		&d.RecommendationID,
		&d.CampaignID,
		&d.RuleKey,
		&d.Action,
		&d.Notes,
		&d.DecidedBy,
		&d.DecidedAt,
		&d.FollowUpTaskID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Decision{}, false, nil
	}
	if err != nil {
		return Decision{}, false, err
	}
	return d, true, nil
}

// GetAcceptDecision returns the accept row for a recommendation, or
// ErrNotFound when no accept has been recorded yet. The accept-once index
// guarantees at most one such row.
func (r *Repository) GetAcceptDecision(ctx context.Context, recommendationID uuid.UUID) (Decision, error) {
	var d Decision
	err := r.pool.QueryRow(ctx, `
		SELECT `+decisionReturning+`
		FROM campaign_recommendation_decisions
		WHERE recommendation_id = $1 AND action = 'accept'
	`, recommendationID).Scan(
		&d.ID,
		&d.RecommendationID,
		&d.CampaignID,
		&d.RuleKey,
		&d.Action,
		&d.Notes,
		&d.DecidedBy,
		&d.DecidedAt,
		&d.FollowUpTaskID,
	)
	return d, mapNoRows(err)
}

// SetDecisionFollowUpTask stamps the created follow-up task on the decision
// row that triggered it.
func (r *Repository) SetDecisionFollowUpTask(ctx context.Context, decisionID, taskID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_recommendation_decisions
		SET follow_up_task_id = $2
		WHERE id = $1
	`, decisionID, taskID)
	return err
}

// LatestDecisionActions returns the most recent effective (non-deleted)
// decision action per recommendation id, for deriving statuses.
func (r *Repository) LatestDecisionActions(ctx context.Context, recommendationIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(recommendationIDs) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (recommendation_id) recommendation_id, action
		FROM campaign_recommendation_decisions
		WHERE recommendation_id = ANY($1) AND deleted_at IS NULL
		ORDER BY recommendation_id, decided_at DESC
	`, recommendationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actions := make(map[uuid.UUID]string, len(recommendationIDs))
	for rows.Next() {
		var (
			id     uuid.UUID
			action string
		)
		if err := rows.Scan(&id, &action); err != nil {
			return nil, err
		}
		actions[id] = action
	}
	return actions, rows.Err()
}

// DecisionAggregates are the pilot metric counts over a window.
type DecisionAggregates struct {
	AcceptedCount      int
	DismissedCount     int
	ActionTasksCreated int
}

// AggregateDecisions counts effective decisions and their created follow-up
// tasks inside [windowStart, windowEnd].
func (r *Repository) AggregateDecisions(ctx context.Context, windowStart, windowEnd time.Time) (DecisionAggregates, error) {
	var agg DecisionAggregates
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE action = 'accept'),
			COUNT(*) FILTER (WHERE action = 'dismiss'),
			COUNT(*) FILTER (WHERE action = 'accept' AND follow_up_task_id IS NOT NULL)
		FROM campaign_recommendation_decisions
		WHERE deleted_at IS NULL AND decided_at >= $1 AND decided_at <= $2
	`, windowStart, windowEnd).Scan(
		&agg.AcceptedCount,
		&agg.DismissedCount,
		&agg.ActionTasksCreated,
	)
	return agg, err
}
