// Package agentapi defines the wire contract with the remote agent backend:
// run identities, status snapshots, the message shape the backend consumes,
// and an HTTP client implementation of the Backend interface.
package agentapi

// RunStatus is the coarse lifecycle state reported by a status snapshot.
type RunStatus string

const (
	StatusPending           RunStatus = "PENDING"
	StatusCompleted         RunStatus = "COMPLETED"
	StatusError             RunStatus = "ERROR"
	StatusPausedForApproval RunStatus = "PAUSED_WAITING_FOR_APPROVAL"
)

// SpanToolWaitingForApproval marks the trace span carrying the tool call
// that paused the run.
const SpanToolWaitingForApproval = "TOOL_WAITING_FOR_APPROVAL"

// Message is one flattened conversation entry sent to the backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RunIdentity is the backend's handle for one in-flight run.
type RunIdentity struct {
	AgentID    string `json:"agentId"`
	AgentRunID string `json:"agentRunId"`
}

// Valid reports whether the identity refers to a concrete run.
func (r RunIdentity) Valid() bool {
	return r.AgentRunID != ""
}

// Pagination carries the incremental-fetch cursor for log polling.
type Pagination struct {
	LastLogUUID string `json:"lastLogUUID"`
}

// ToolData describes the tool call a paused run is waiting on.
type ToolData struct {
	ToolExecutionID  string         `json:"toolExecutionId"`
	ToolID           string         `json:"toolId"`
	ToolName         string         `json:"toolName"`
	ToolDescription  string         `json:"toolDescription,omitempty"`
	Parameters       map[string]any `json:"parameters,omitempty"`
	Reasoning        string         `json:"reasoning,omitempty"`
	ReasoningSummary string         `json:"reasoningSummary,omitempty"`
}

// TraceSpan is one entry of a snapshot's execution trace.
type TraceSpan struct {
	SpanType string    `json:"spanType"`
	ToolData *ToolData `json:"toolData,omitempty"`
}

// Decision is a human verdict on a paused tool call.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ToolDecision pairs a tool call with the human verdict.
type ToolDecision struct {
	ToolExecutionID string   `json:"toolExecutionId"`
	ToolID          string   `json:"toolId"`
	Decision        Decision `json:"decision"`
}
