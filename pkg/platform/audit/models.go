package audit

import (
	"context"
	"time"

	"gumball/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose, enabling
// different retention and routing per category.
type EventCategory string

const (
	// CategoryIssuance covers events that change supply accounting or
	// eligibility: these are the record of who received what and why.
	CategoryIssuance EventCategory = "issuance"

	// CategoryAdmin covers owner-side lifecycle actions: initialization,
	// allow-list growth, status changes, reclaim.
	CategoryAdmin EventCategory = "admin"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	ConfigAddr domain.Identity
	// Actor is the identity performing the action: the owner for admin
	// events, the requester for issuance events.
	Actor     domain.Identity
	Action    string
	Gate      string // gate mode for issuance events
	Reason    string // denial reason or transition detail
	RequestID string // correlation ID from HTTP request context
}

// Audit actions.
const (
	EventMachineInitialized = "machine_initialized"
	EventCollectionCreated  = "collection_created"
	EventAllowListAdded     = "allowlist_entry_added"
	EventStatusChanged      = "status_changed"
	EventMintSucceeded      = "mint_succeeded"
	EventMintDenied         = "mint_denied"
	EventMachineReclaimed   = "machine_reclaimed"
	// EventBurnInconsistency flags a pass-token burn that failed after the
	// external mint already succeeded; requires operator follow-up.
	EventBurnInconsistency = "burn_inconsistency"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByConfig(ctx context.Context, addr domain.Identity) ([]Event, error)
}
