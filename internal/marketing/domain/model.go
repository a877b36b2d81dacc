// Package domain contains the pure marketing attribution and insight logic:
// crediting models, campaign health scoring, and recommendation derivation.
// Nothing in this package touches persistence; services feed it facts and
// store what it returns.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Model identifies a crediting model.
type Model string

const (
	// ModelFirstTouch credits the earliest touched campaign with the full amount.
	// This is the only model used for the persisted primary attribution.
	ModelFirstTouch Model = "first_touch"
	// ModelLastTouch credits the latest touched campaign with the full amount.
	ModelLastTouch Model = "last_touch"
	// ModelLinear splits the amount evenly across distinct touched campaigns.
	ModelLinear Model = "linear"
)

// FirstTouchRuleVersion tags persisted attributions with the rule revision
// that produced them, for explainability.
const FirstTouchRuleVersion = "first_touch:v1"

// ParseModel validates a model name from an external caller.
func ParseModel(s string) (Model, bool) {
	switch Model(s) {
	case ModelFirstTouch, ModelLastTouch, ModelLinear:
		return Model(s), true
	}
	return "", false
}

// Entity types a campaign membership may reference.
const (
	EntityTypeLead    = "Lead"
	EntityTypeContact = "Contact"
)

// IsSupportedEntityType reports whether a membership subject type is known.
func IsSupportedEntityType(entityType string) bool {
	return entityType == EntityTypeLead || entityType == EntityTypeContact
}

// Response statuses a membership may carry.
var supportedResponseStatuses = map[string]bool{
	"Sent":         true,
	"Responded":    true,
	"Qualified":    true,
	"Unsubscribed": true,
}

// IsSupportedResponseStatus reports whether a membership response status is known.
func IsSupportedResponseStatus(status string) bool {
	return supportedResponseStatuses[status]
}

// Touchpoint is one qualifying campaign membership for an opportunity.
// AddedAt is the attribution ordering key; CreatedAt breaks ties.
type Touchpoint struct {
	MembershipID uuid.UUID
	CampaignID   uuid.UUID
	EntityType   string
	EntityID     uuid.UUID
	AddedAt      time.Time
	CreatedAt    time.Time
}

// Assignment is one campaign's credited share of an opportunity amount.
type Assignment struct {
	CampaignID  uuid.UUID
	AmountCents int64
}

// Decision actions and derived recommendation statuses.
const (
	ActionAccept  = "accept"
	ActionDismiss = "dismiss"

	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusDismissed = "dismissed"
)

// ParseAction validates a decision action from an external caller.
func ParseAction(s string) (string, bool) {
	switch s {
	case ActionAccept, ActionDismiss:
		return s, true
	}
	return "", false
}
