package run

import (
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"

	"github.com/odvcencio/parley/pkg/agentapi"
	"github.com/odvcencio/parley/pkg/conversation"
)

// ActionKind enumerates what the orchestrator should do with a snapshot.
type ActionKind int

const (
	// ActionNone means the snapshot is stale or irrelevant.
	ActionNone ActionKind = iota

	// ActionFatal surfaces an error and stops polling.
	ActionFatal

	// ActionStartPolling begins a fresh polling loop: cursor and seen-set
	// are reset.
	ActionStartPolling

	// ActionResumePolling continues the retained run after an approval
	// decision: cursor and seen-set are preserved.
	ActionResumePolling

	// ActionApprovalRequested stops polling (keeping the run identity) and
	// surfaces the tool call for a human decision.
	ActionApprovalRequested

	// ActionComplete stops polling and appends the assistant turn.
	ActionComplete
)

// Action is the interpreter's verdict on one snapshot.
type Action struct {
	Kind         ActionKind
	ErrorMessage string                     // ActionFatal
	Run          agentapi.RunIdentity       // ActionStartPolling / ActionResumePolling
	Tool         *agentapi.ToolData         // ActionApprovalRequested
	Content      conversation.WidgetContent // ActionComplete
}

// State is the slice of orchestrator state the interpreter reads.
type State struct {
	// Loading reports whether a run is currently being polled or awaiting
	// an approval decision.
	Loading bool

	// Retained is the last run identity, kept across stops so the run can
	// be resumed or retried.
	Retained agentapi.RunIdentity

	// SeenApproval reports whether a checkpoint id has already been
	// surfaced during this run.
	SeenApproval func(toolExecutionID string) bool
}

// Interpret decides the next orchestrator action for a snapshot. It is a
// pure function: it mutates nothing, the caller applies the action. The
// clauses are ordered; the first match wins.
func Interpret(snap *agentapi.Snapshot, state State) Action {
	if snap == nil {
		return Action{Kind: ActionNone}
	}

	// Backend failure, reported either as a status or an error field.
	if snap.Failed() {
		return Action{Kind: ActionFatal, ErrorMessage: snap.ErrorMessage()}
	}

	// The backend accepted an approval decision and the run is pending
	// again: resume the retained run without resetting cursor or seen-set.
	// Checked before the fresh-run clause because the decision ack may
	// also carry the run identity.
	if snap.Success && snap.Status == agentapi.StatusPending && !state.Loading && state.Retained.Valid() {
		return Action{Kind: ActionResumePolling, Run: state.Retained}
	}

	// A fresh run acknowledged by the backend: start polling it.
	if snap.Status == agentapi.StatusPending && !state.Loading {
		if runID, ok := snap.Run(); ok {
			return Action{Kind: ActionStartPolling, Run: runID}
		}
	}

	// The run paused for a human decision. The polling cadence may
	// re-deliver the same log window, so an already-surfaced checkpoint is
	// ignored instead of prompting twice.
	if snap.Status == agentapi.StatusPausedForApproval && state.Loading {
		tool := snap.ApprovalRequest()
		if tool == nil {
			return Action{Kind: ActionNone}
		}
		if state.SeenApproval != nil && state.SeenApproval(tool.ToolExecutionID) {
			return Action{Kind: ActionNone}
		}
		return Action{Kind: ActionApprovalRequested, Tool: tool}
	}

	if snap.Status == agentapi.StatusCompleted && state.Loading {
		return Action{Kind: ActionComplete, Content: parseCompletion(snap)}
	}

	return Action{Kind: ActionNone}
}

// parseCompletion turns the completion payload into widget content. The
// model is instructed to reply with {"type": ..., "source": ...}; replies
// that are not valid JSON get one repair pass, then fall back to plain text
// so the user always sees something.
func parseCompletion(snap *agentapi.Snapshot) conversation.WidgetContent {
	raw := snap.Content
	if raw == "" {
		raw = snap.ResultText
	}

	if content, ok := decodeWidgetJSON(raw); ok {
		return content
	}
	if repaired, err := jsonrepair.JSONRepair(raw); err == nil {
		if content, ok := decodeWidgetJSON(repaired); ok {
			return content
		}
	}
	return conversation.WidgetContent{Type: "text", Source: raw}
}

func decodeWidgetJSON(raw string) (conversation.WidgetContent, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return conversation.WidgetContent{}, false
	}
	typ, ok := obj["type"].(string)
	if !ok || typ == "" {
		return conversation.WidgetContent{}, false
	}
	content := conversation.WidgetContent{Type: typ, Source: obj["source"]}
	delete(obj, "type")
	delete(obj, "source")
	if len(obj) > 0 {
		content.Extra = obj
	}
	return content, true
}
