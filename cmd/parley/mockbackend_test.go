package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/parley/pkg/agentapi"
	"github.com/odvcencio/parley/pkg/observability"
)

func newMockClient(t *testing.T, pause bool) *agentapi.Client {
	t.Helper()
	srv := newMockServer(pause, observability.Discard())
	r := chi.NewRouter()
	r.Post("/api/agent", srv.handle)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	client, err := agentapi.NewClient(agentapi.ClientOptions{BaseURL: ts.URL})
	require.NoError(t, err)
	return client
}

func TestMockBackend_RunLifecycle(t *testing.T) {
	client := newMockClient(t, false)
	ctx := context.Background()

	snap, err := client.Invoke(ctx, "a1", []agentapi.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, agentapi.StatusPending, snap.Status)
	run, ok := snap.Run()
	require.True(t, ok)

	// Pending for the first polls, then completed.
	var cursor string
	var last *agentapi.Snapshot
	for i := 0; i < 5; i++ {
		last, err = client.GetLogs(ctx, run, cursor)
		require.NoError(t, err)
		cursor = last.Cursor()
		require.NotEmpty(t, cursor)
		if last.Status == agentapi.StatusCompleted {
			break
		}
		assert.Equal(t, agentapi.StatusPending, last.Status)
	}
	require.Equal(t, agentapi.StatusCompleted, last.Status)
	assert.Contains(t, last.Content, "echo: hi")
}

func TestMockBackend_ApprovalPause(t *testing.T) {
	client := newMockClient(t, true)
	ctx := context.Background()

	snap, err := client.Invoke(ctx, "a1", []agentapi.Message{{Role: "user", Content: "look this up"}})
	require.NoError(t, err)
	run, _ := snap.Run()

	var tool *agentapi.ToolData
	for i := 0; i < 5; i++ {
		snap, err = client.GetLogs(ctx, run, "")
		require.NoError(t, err)
		if tool = snap.ApprovalRequest(); tool != nil {
			break
		}
	}
	require.NotNil(t, tool)
	assert.Equal(t, "search", tool.ToolName)

	snap, err = client.SubmitToolApproval(ctx, run, []agentapi.ToolDecision{{
		ToolExecutionID: tool.ToolExecutionID,
		ToolID:          tool.ToolID,
		Decision:        agentapi.DecisionReject,
	}})
	require.NoError(t, err)
	assert.True(t, snap.Success)
	assert.Equal(t, agentapi.StatusPending, snap.Status)

	for i := 0; i < 5; i++ {
		snap, err = client.GetLogs(ctx, run, "")
		require.NoError(t, err)
		if snap.Status == agentapi.StatusCompleted {
			break
		}
	}
	require.Equal(t, agentapi.StatusCompleted, snap.Status)
	assert.Contains(t, snap.Content, "skipping")
}

func TestMockBackend_UnknownRun(t *testing.T) {
	client := newMockClient(t, false)
	_, err := client.GetLogs(context.Background(), agentapi.RunIdentity{AgentID: "a1", AgentRunID: "nope"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown run")
}

func TestDispatchSubcommand(t *testing.T) {
	handled, code := dispatchSubcommand(nil)
	assert.False(t, handled)
	assert.Zero(t, code)

	handled, code = dispatchSubcommand([]string{"version"})
	assert.True(t, handled)
	assert.Zero(t, code)

	handled, code = dispatchSubcommand([]string{"frobnicate"})
	assert.True(t, handled)
	assert.Equal(t, 1, code)
}
