// Package transport defines the marketing module's request and response
// shapes.
package transport

import (
	"time"

	"crm_marketing_backend/internal/marketing/domain"

	"github.com/google/uuid"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// AddMemberRequest is the request body for adding a campaign member.
type AddMemberRequest struct {
	EntityType     string    `json:"entityType" validate:"required,oneof=Lead Contact"`
	EntityID       uuid.UUID `json:"entityId" validate:"required"`
	ResponseStatus string    `json:"responseStatus" validate:"omitempty,oneof=Sent Responded Qualified Unsubscribed"`
}

// DecisionRequest is the request body for deciding on a recommendation.
type DecisionRequest struct {
	Action  string    `json:"action" validate:"required,oneof=accept dismiss"`
	Notes   string    `json:"notes" validate:"max=2000"`
	ActorID uuid.UUID `json:"actorId" validate:"required"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// MembershipResponse is the membership shape returned on add.
type MembershipResponse struct {
	ID             uuid.UUID `json:"id"`
	CampaignID     uuid.UUID `json:"campaignId"`
	EntityType     string    `json:"entityType"`
	EntityID       uuid.UUID `json:"entityId"`
	ResponseStatus string    `json:"responseStatus"`
	AddedAt        time.Time `json:"addedAt"`
}

// ExplanationCandidateResponse is one evaluated touchpoint.
type ExplanationCandidateResponse struct {
	EntityType   string    `json:"entityType"`
	EntityID     uuid.UUID `json:"entityId"`
	CampaignID   uuid.UUID `json:"campaignId"`
	CampaignName string    `json:"campaignName"`
	AddedAt      string    `json:"addedAt"`
}

// ExplanationResponse explains the current first-touch attribution.
type ExplanationResponse struct {
	OpportunityID uuid.UUID                      `json:"opportunityId"`
	CampaignID    *uuid.UUID                     `json:"campaignId,omitempty"`
	Model         string                         `json:"model"`
	RuleVersion   string                         `json:"ruleVersion"`
	AttributedAt  *string                        `json:"attributedAt,omitempty"`
	Evidence      []string                       `json:"evidence"`
	Candidates    []ExplanationCandidateResponse `json:"candidates"`
}

// HealthResponse is one computed health assessment.
type HealthResponse struct {
	CampaignID  uuid.UUID            `json:"campaignId"`
	Score       int                  `json:"score"`
	Trend       string               `json:"trend"`
	WindowDays  int                  `json:"windowDays"`
	ReasonChips []string             `json:"reasonChips"`
	Metrics     domain.HealthMetrics `json:"metrics"`
	ComputedAt  time.Time            `json:"computedAt"`
}

// RecommendationResponse is one derived recommendation with its decision
// status overlaid.
type RecommendationResponse struct {
	ID          uuid.UUID `json:"id"`
	CampaignID  uuid.UUID `json:"campaignId"`
	RuleKey     string    `json:"ruleKey"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	ImpactCents int64     `json:"impactCents"`
	Confidence  float64   `json:"confidence"`
	Evidence    []string  `json:"evidence"`
	Status      string    `json:"status"`
}

// DecisionResponse reports a decision outcome.
type DecisionResponse struct {
	RecommendationID uuid.UUID  `json:"recommendationId"`
	CampaignID       uuid.UUID  `json:"campaignId"`
	RuleKey          string     `json:"ruleKey"`
	Status           string     `json:"status"`
	DecidedAt        time.Time  `json:"decidedAt"`
	FollowUpTaskID   *uuid.UUID `json:"followUpTaskId,omitempty"`
	TaskCreated      bool       `json:"taskCreated"`
}
