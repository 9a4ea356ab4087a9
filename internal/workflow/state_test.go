package workflow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/adapters/storage"
	"github.com/mikey/email-guardian/internal/core"
)

func TestFlagOpensAuditEvent(t *testing.T) {
	store := storage.NewMemoryStorage()
	mgr := NewManager(store, zap.NewNop())
	emailID := uuid.New()

	state, err := mgr.Apply(context.Background(), Move{
		EmailID:  emailID,
		To:       core.StateFlagged,
		Actor:    "analyst@corp.com",
		Reason:   "suspicious attachment",
		Severity: core.SeverityHigh,
	})
	require.NoError(t, err)

	assert.Equal(t, core.StateFlagged, state.CurrentState)
	assert.Equal(t, core.StateProcessed, state.PreviousState)
	assert.Equal(t, "analyst@corp.com", state.MovedBy)

	event, err := store.OpenStateEvent(context.Background(), emailID, core.EventFlagged)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "suspicious attachment", event.Reason)
	assert.False(t, event.Resolved)
}

func TestReturnToProcessedResolvesEvent(t *testing.T) {
	store := storage.NewMemoryStorage()
	mgr := NewManager(store, zap.NewNop())
	emailID := uuid.New()
	ctx := context.Background()

	_, err := mgr.Apply(ctx, Move{EmailID: emailID, To: core.StateFlagged, Actor: "analyst@corp.com"})
	require.NoError(t, err)

	state, err := mgr.Apply(ctx, Move{EmailID: emailID, To: core.StateProcessed, Actor: "lead@corp.com"})
	require.NoError(t, err)

	assert.Equal(t, core.StateProcessed, state.CurrentState)
	assert.Equal(t, core.StateFlagged, state.PreviousState)

	open, err := store.OpenStateEvent(ctx, emailID, core.EventFlagged)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestEscalationChain(t *testing.T) {
	store := storage.NewMemoryStorage()
	mgr := NewManager(store, zap.NewNop())
	emailID := uuid.New()
	ctx := context.Background()

	_, err := mgr.Apply(ctx, Move{EmailID: emailID, To: core.StateFlagged, Actor: "analyst@corp.com"})
	require.NoError(t, err)
	state, err := mgr.Apply(ctx, Move{EmailID: emailID, To: core.StateEscalated, Actor: "lead@corp.com"})
	require.NoError(t, err)

	assert.Equal(t, core.StateEscalated, state.CurrentState)
	assert.Equal(t, core.StateFlagged, state.PreviousState)

	// The flagged event stays open; only a return to processed resolves it
	flagged, err := store.OpenStateEvent(ctx, emailID, core.EventFlagged)
	require.NoError(t, err)
	assert.NotNil(t, flagged)

	escalated, err := store.OpenStateEvent(ctx, emailID, core.EventEscalated)
	require.NoError(t, err)
	assert.NotNil(t, escalated)
}

func TestRepeatedMoveIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStorage()
	mgr := NewManager(store, zap.NewNop())
	emailID := uuid.New()
	ctx := context.Background()

	_, err := mgr.Apply(ctx, Move{EmailID: emailID, To: core.StateCleared, Actor: "analyst@corp.com"})
	require.NoError(t, err)
	state, err := mgr.Apply(ctx, Move{EmailID: emailID, To: core.StateCleared, Actor: "analyst@corp.com"})
	require.NoError(t, err)

	assert.Equal(t, core.StateCleared, state.CurrentState)
	assert.Equal(t, core.StateProcessed, state.PreviousState)
}

func TestUnknownStateRejected(t *testing.T) {
	mgr := NewManager(storage.NewMemoryStorage(), zap.NewNop())

	_, err := mgr.Apply(context.Background(), Move{EmailID: uuid.New(), To: "quarantined"})
	assert.Error(t, err)
}

func TestStateDefaultsToProcessed(t *testing.T) {
	mgr := NewManager(storage.NewMemoryStorage(), zap.NewNop())

	state, err := mgr.State(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, core.StateProcessed, state.CurrentState)
}
