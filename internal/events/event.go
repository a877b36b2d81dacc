// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"crm_marketing_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Opportunity Collaborator Events
// =============================================================================
// These are emitted by the (external) opportunity core whenever a mutation
// may change attribution. Delivery is synchronous (PublishSync) so the
// attribution recompute happens inside the caller's request boundary.

// OpportunityAmountChanged is published when an opportunity's amount changes.
type OpportunityAmountChanged struct {
	BaseEvent
	OpportunityID uuid.UUID `json:"opportunityId"`
}

func (e OpportunityAmountChanged) EventName() string { return "crm.opportunity.amount_changed" }

// OpportunityLinkChanged is published when an opportunity is newly linked to
// a lead or primary contact.
type OpportunityLinkChanged struct {
	BaseEvent
	OpportunityID uuid.UUID `json:"opportunityId"`
}

func (e OpportunityLinkChanged) EventName() string { return "crm.opportunity.link_changed" }

// =============================================================================
// Campaign Membership Collaborator Events
// =============================================================================

// CampaignMemberAdded is published after a campaign membership is created or
// its response status refreshed.
type CampaignMemberAdded struct {
	BaseEvent
	CampaignID   uuid.UUID `json:"campaignId"`
	MembershipID uuid.UUID `json:"membershipId"`
	EntityType   string    `json:"entityType"`
	EntityID     uuid.UUID `json:"entityId"`
}

func (e CampaignMemberAdded) EventName() string { return "crm.campaign.member_added" }

// CampaignMemberRemoved is published after a campaign membership is removed.
type CampaignMemberRemoved struct {
	BaseEvent
	CampaignID   uuid.UUID `json:"campaignId"`
	MembershipID uuid.UUID `json:"membershipId"`
	EntityType   string    `json:"entityType"`
	EntityID     uuid.UUID `json:"entityId"`
}

func (e CampaignMemberRemoved) EventName() string { return "crm.campaign.member_removed" }
