// Package ports defines the interfaces the marketing module consumes from
// other bounded contexts. Consumer-driven: only what marketing needs.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FollowUpTaskParams describes the task created when a recommendation is
// accepted.
type FollowUpTaskParams struct {
	OwnerID           uuid.UUID
	Subject           string
	Description       string
	RelatedEntityType string
	RelatedEntityID   uuid.UUID
	DueAt             time.Time
	Priority          string
}

// ActivityService creates follow-up tasks in the activity collaborator.
// The decision manager calls it at most once per accepted recommendation.
type ActivityService interface {
	CreateFollowUpTask(ctx context.Context, params FollowUpTaskParams) (uuid.UUID, error)
}
