package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/core"
)

// Manager applies manual workflow transitions to emails. All moves come
// from human review; nothing here is called by the scoring pipeline.
type Manager struct {
	storage core.Storage
	logger  *zap.Logger
}

// NewManager creates a workflow manager
func NewManager(storage core.Storage, logger *zap.Logger) *Manager {
	return &Manager{storage: storage, logger: logger}
}

// Move is one requested transition
type Move struct {
	EmailID  uuid.UUID
	To       string
	Actor    string
	Reason   string
	Severity string
	Notes    string
}

var eventKinds = map[string]core.StateEventKind{
	core.StateFlagged:   core.EventFlagged,
	core.StateEscalated: core.EventEscalated,
	core.StateCleared:   core.EventCleared,
}

// Apply performs one manual transition. Entering flagged, escalated or
// cleared opens an audit event of the matching kind; moving back to
// processed resolves the open event for the state being left.
func (m *Manager) Apply(ctx context.Context, move Move) (*core.EmailState, error) {
	if _, ok := eventKinds[move.To]; !ok && move.To != core.StateProcessed {
		return nil, fmt.Errorf("unknown workflow state %q", move.To)
	}

	state, err := m.storage.GetEmailState(ctx, move.EmailID)
	if err != nil {
		return nil, fmt.Errorf("loading email state: %w", err)
	}

	now := time.Now().UTC()
	if state == nil {
		state = &core.EmailState{
			EmailID:      move.EmailID,
			CurrentState: core.StateProcessed,
			CreatedAt:    now,
		}
	}

	if state.CurrentState == move.To {
		return state, nil
	}

	from := state.CurrentState
	state.PreviousState = from
	state.CurrentState = move.To
	state.Notes = move.Notes
	state.MovedBy = move.Actor
	state.MovedAt = now
	state.UpdatedAt = now

	if move.To == core.StateProcessed {
		if err := m.resolveOpenEvent(ctx, move, from); err != nil {
			return nil, err
		}
	} else {
		event := &core.StateEvent{
			EmailID:   move.EmailID,
			Kind:      eventKinds[move.To],
			Reason:    move.Reason,
			Severity:  move.Severity,
			Actor:     move.Actor,
			CreatedAt: now,
		}
		if err := m.storage.SaveStateEvent(ctx, event); err != nil {
			return nil, fmt.Errorf("recording state event: %w", err)
		}
	}

	if err := m.storage.SaveEmailState(ctx, state); err != nil {
		return nil, fmt.Errorf("saving email state: %w", err)
	}

	m.logger.Info("Email moved",
		zap.String("email_id", move.EmailID.String()),
		zap.String("from", from),
		zap.String("to", move.To),
		zap.String("actor", move.Actor))

	return state, nil
}

// resolveOpenEvent closes the unresolved audit event for the state the
// email is leaving. A missing event is tolerated so a replayed move stays
// idempotent.
func (m *Manager) resolveOpenEvent(ctx context.Context, move Move, from string) error {
	kind, ok := eventKinds[from]
	if !ok {
		return nil
	}

	event, err := m.storage.OpenStateEvent(ctx, move.EmailID, kind)
	if err != nil {
		return fmt.Errorf("looking up open state event: %w", err)
	}
	if event == nil {
		return nil
	}

	if err := m.storage.ResolveStateEvent(ctx, event.ID, move.Actor); err != nil {
		return fmt.Errorf("resolving state event: %w", err)
	}
	return nil
}

// State returns the review position of an email, defaulting to processed
// when it has never been moved
func (m *Manager) State(ctx context.Context, emailID uuid.UUID) (*core.EmailState, error) {
	state, err := m.storage.GetEmailState(ctx, emailID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &core.EmailState{
			EmailID:      emailID,
			CurrentState: core.StateProcessed,
		}
	}
	return state, nil
}
