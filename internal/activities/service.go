// Package activities is the in-process adapter for the activity/task
// collaborator. Only task creation crosses this boundary; all other activity
// behavior lives outside this core.
package activities

import (
	"context"

	"crm_marketing_backend/internal/marketing/ports"
	"crm_marketing_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service creates activity tasks. Implements ports.ActivityService.
type Service struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewService creates the activity adapter.
func NewService(pool *pgxpool.Pool, log *logger.Logger) *Service {
	return &Service{pool: pool, log: log}
}

// CreateFollowUpTask inserts a task row addressed to the given owner.
func (s *Service) CreateFollowUpTask(ctx context.Context, params ports.FollowUpTaskParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO activities
			(subject, description, type, related_entity_type, related_entity_id, owner_id, due_at, priority)
		VALUES ($1, $2, 'Task', $3, $4, $5, $6, $7)
		RETURNING id
	`, params.Subject, params.Description, params.RelatedEntityType, params.RelatedEntityID,
		params.OwnerID, params.DueAt, params.Priority).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}

	s.log.Info("follow-up task created",
		"task_id", id,
		"owner_id", params.OwnerID,
		"related_entity", params.RelatedEntityType,
	)
	return id, nil
}
