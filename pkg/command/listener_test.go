package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/parley/pkg/conversation"
	"github.com/odvcencio/parley/pkg/observability"
	"github.com/odvcencio/parley/pkg/statestore"
)

type fakeSink struct {
	history     *conversation.History
	submitCalls int
	stopCalls   int
	submitErr   error
}

func newFakeSink() *fakeSink {
	return &fakeSink{history: conversation.NewHistory()}
}

func (s *fakeSink) History() *conversation.History { return s.history }

func (s *fakeSink) SubmitCurrent(ctx context.Context) error {
	s.submitCalls++
	return s.submitErr
}

func (s *fakeSink) Stop() { s.stopCalls++ }

func newTestListener() (*Listener, *statestore.MemoryStore, *fakeSink) {
	store := statestore.NewMemoryStore()
	sink := newFakeSink()
	return NewListener(store, sink, observability.Discard()), store, sink
}

func TestListener_SubmitCommand(t *testing.T) {
	l, store, sink := newTestListener()

	require.NoError(t, store.Set(VarCommand, Command{
		Action: ActionSubmit,
		Messages: []conversation.Turn{
			conversation.TextTurn(conversation.RoleUser, "run the report"),
		},
	}))
	require.NoError(t, l.Observe(context.Background()))

	assert.Equal(t, 1, sink.submitCalls)
	turns := sink.history.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "run the report", turns[0].Text)

	// Handled commands are cleared back to an empty object.
	v, ok := store.Get(VarCommand)
	require.True(t, ok)
	assert.Equal(t, map[string]any{}, v)
}

func TestListener_SubmitWithoutUserTurnDoesNotInvoke(t *testing.T) {
	l, store, sink := newTestListener()

	require.NoError(t, store.Set(VarCommand, Command{
		Action: ActionSubmit,
		Messages: []conversation.Turn{
			conversation.TextTurn(conversation.RoleAssistant, "note to self"),
		},
	}))
	require.NoError(t, l.Observe(context.Background()))

	assert.Zero(t, sink.submitCalls)
	assert.Equal(t, 1, sink.history.Len())
}

func TestListener_IdenticalValueFiresOnce(t *testing.T) {
	l, store, sink := newTestListener()

	cmd := Command{
		Action:   ActionSubmit,
		Messages: []conversation.Turn{conversation.TextTurn(conversation.RoleUser, "hi")},
	}
	require.NoError(t, store.Set(VarCommand, cmd))
	require.NoError(t, l.Observe(context.Background()))

	// The host redundantly rewrites the same value.
	require.NoError(t, store.Set(VarCommand, cmd))
	require.NoError(t, l.Observe(context.Background()))

	assert.Equal(t, 1, sink.submitCalls)
	assert.Equal(t, 1, sink.history.Len())
}

func TestListener_ReissuedCommandAfterClearFiresAgain(t *testing.T) {
	l, store, sink := newTestListener()

	cmd := Command{Action: ActionStop}
	require.NoError(t, store.Set(VarCommand, cmd))
	require.NoError(t, l.Observe(context.Background()))
	assert.Equal(t, 1, sink.stopCalls)

	// The watch loop sees the cleared channel before the host writes again.
	require.NoError(t, l.Observe(context.Background()))

	// Re-issuing the identical command is a fresh one-shot signal.
	require.NoError(t, store.Set(VarCommand, cmd))
	require.NoError(t, l.Observe(context.Background()))
	assert.Equal(t, 2, sink.stopCalls)
}

func TestListener_StopCommand(t *testing.T) {
	l, store, sink := newTestListener()

	require.NoError(t, store.Set(VarCommand, Command{Action: ActionStop}))
	require.NoError(t, l.Observe(context.Background()))
	assert.Equal(t, 1, sink.stopCalls)
}

func TestListener_InjectForcesHidden(t *testing.T) {
	l, store, sink := newTestListener()

	require.NoError(t, store.Set(VarCommand, Command{
		Action: ActionInject,
		Messages: []conversation.Turn{
			conversation.TextTurn(conversation.RoleUser, "background context"),
		},
	}))
	require.NoError(t, l.Observe(context.Background()))

	assert.Zero(t, sink.submitCalls)
	turns := sink.history.Turns()
	require.Len(t, turns, 1)
	assert.True(t, turns[0].Hidden)
}

func TestListener_RestoreReplacesHistory(t *testing.T) {
	l, store, sink := newTestListener()
	sink.history.Append(
		conversation.TextTurn(conversation.RoleUser, "old"),
		conversation.TextTurn(conversation.RoleAssistant, "stale"),
	)

	require.NoError(t, store.Set(VarCommand, Command{
		Action: ActionRestore,
		Messages: []conversation.Turn{
			conversation.TextTurn(conversation.RoleUser, "restored"),
		},
	}))
	require.NoError(t, l.Observe(context.Background()))

	turns := sink.history.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "restored", turns[0].Text)
	assert.Zero(t, sink.submitCalls)
}

func TestListener_UnknownActionObservedAndIgnored(t *testing.T) {
	l, store, sink := newTestListener()

	require.NoError(t, store.Set(VarCommand, Command{Action: "self-destruct"}))
	require.NoError(t, l.Observe(context.Background()))
	assert.Zero(t, sink.submitCalls)
	assert.Zero(t, sink.stopCalls)

	// Still cleared and marked observed, so it does not loop.
	v, _ := store.Get(VarCommand)
	assert.Equal(t, map[string]any{}, v)
	require.NoError(t, store.Set(VarCommand, Command{Action: "self-destruct"}))
	require.NoError(t, l.Observe(context.Background()))
	assert.Zero(t, sink.stopCalls)
}

func TestListener_MapValueDecoded(t *testing.T) {
	l, store, sink := newTestListener()

	require.NoError(t, store.Set(VarCommand, map[string]any{
		"action": "submit",
		"messages": []any{
			map[string]any{"role": "user", "content": "from the host"},
		},
	}))
	require.NoError(t, l.Observe(context.Background()))

	assert.Equal(t, 1, sink.submitCalls)
	turns := sink.history.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "from the host", turns[0].Text)
}

func TestListener_EmptyAndMissingValuesIgnored(t *testing.T) {
	l, store, sink := newTestListener()

	require.NoError(t, l.Observe(context.Background()))

	require.NoError(t, store.Set(VarCommand, map[string]any{}))
	require.NoError(t, l.Observe(context.Background()))

	assert.Zero(t, sink.submitCalls)
	assert.Zero(t, sink.stopCalls)
}
