package core

import (
	"time"

	"github.com/google/uuid"
)

// Workflow states for an email. Transitions are explicit user actions; the
// scoring pipeline never moves an email between states.
const (
	StateProcessed = "processed"
	StateFlagged   = "flagged"
	StateEscalated = "escalated"
	StateCleared   = "cleared"
)

// StateEventKind distinguishes the audit event paired with each non-initial
// workflow state
type StateEventKind string

const (
	EventFlagged   StateEventKind = "flagged"
	EventEscalated StateEventKind = "escalated"
	EventCleared   StateEventKind = "cleared"
)

// EmailState is the manual review position of one email. PreviousState is
// kept so a move back to processed can be audited and undone.
type EmailState struct {
	ID            uuid.UUID `json:"id"`
	EmailID       uuid.UUID `json:"email_id"`
	CurrentState  string    `json:"current_state"`
	PreviousState string    `json:"previous_state,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	MovedBy       string    `json:"moved_by"`
	MovedAt       time.Time `json:"moved_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StateEvent is the audit record created whenever an email enters the
// flagged, escalated or cleared state. Moving the email back to processed
// resolves the open event for its previous state.
type StateEvent struct {
	ID         uuid.UUID      `json:"id"`
	EmailID    uuid.UUID      `json:"email_id"`
	Kind       StateEventKind `json:"kind"`
	Reason     string         `json:"reason,omitempty"`
	Severity   string         `json:"severity"`
	Actor      string         `json:"actor"`
	Resolved   bool           `json:"resolved"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy string         `json:"resolved_by,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
