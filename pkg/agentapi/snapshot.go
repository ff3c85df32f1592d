package agentapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Snapshot is one polled status payload describing a run's current state.
type Snapshot struct {
	Status     RunStatus       `json:"status,omitempty"`
	Error      json.RawMessage `json:"error,omitempty"`
	Message    string          `json:"message,omitempty"`
	AgentID    string          `json:"agentId,omitempty"`
	AgentRunID string          `json:"agentRunId,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Content    string          `json:"content,omitempty"`
	ResultText string          `json:"resultText,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`
	Trace      []TraceSpan     `json:"trace,omitempty"`
}

// Run extracts the run identity carried by the snapshot, if any.
func (s *Snapshot) Run() (RunIdentity, bool) {
	if s == nil || s.AgentRunID == "" {
		return RunIdentity{}, false
	}
	return RunIdentity{AgentID: s.AgentID, AgentRunID: s.AgentRunID}, true
}

// Cursor returns the incremental-fetch cursor, empty when absent.
func (s *Snapshot) Cursor() string {
	if s == nil || s.Pagination == nil {
		return ""
	}
	return s.Pagination.LastLogUUID
}

// Failed reports whether the snapshot describes a backend failure.
func (s *Snapshot) Failed() bool {
	if s == nil {
		return false
	}
	return len(s.Error) > 0 || s.Status == StatusError
}

// ApprovalRequest returns the tool call the run paused on, or nil when the
// trace carries no approval span.
func (s *Snapshot) ApprovalRequest() *ToolData {
	if s == nil {
		return nil
	}
	for _, span := range s.Trace {
		if span.SpanType == SpanToolWaitingForApproval && span.ToolData != nil {
			return span.ToolData
		}
	}
	return nil
}

const genericErrorMessage = "agent run failed"

// ErrorMessage extracts a human-readable message from the snapshot's error
// field. The backend is inconsistent about the shape: it may be a bare
// string, an object with a message field, or an object wrapping a payload
// map. Unparseable shapes fall back to a generic message.
func (s *Snapshot) ErrorMessage() string {
	if s == nil {
		return genericErrorMessage
	}
	if msg := decodeErrorPayload(s.Error); msg != "" {
		return msg
	}
	if strings.TrimSpace(s.Message) != "" {
		return strings.TrimSpace(s.Message)
	}
	return genericErrorMessage
}

func decodeErrorPayload(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str)
	}
	var obj struct {
		Message string         `json:"message"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(obj.Message); msg != "" {
		return msg
	}
	if len(obj.Payload) > 0 {
		keys := make([]string, 0, len(obj.Payload))
		for k := range obj.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, obj.Payload[k]))
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
