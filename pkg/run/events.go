package run

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/parley/pkg/agentapi"
)

// Bus subjects for orchestrator lifecycle events.
const (
	SubjectApprovalRequested = "parley.run.approval_requested"
	SubjectRunCompleted      = "parley.run.completed"
	SubjectRunErrored        = "parley.run.errored"
)

// State-store variable and event names written for the presentation layer.
const (
	VarLoading            = "agentLoading"
	VarError              = "agentError"
	EventApprovalRequired = "agentApprovalRequired"
)

// Event is the envelope for every published lifecycle event.
type Event struct {
	ID        string               `json:"id"`
	Timestamp time.Time            `json:"timestamp"`
	Run       agentapi.RunIdentity `json:"run"`
	Tool      *agentapi.ToolData   `json:"tool,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func newEvent(run agentapi.RunIdentity) Event {
	return Event{
		ID:        ulid.Make().String(),
		Timestamp: time.Now().UTC(),
		Run:       run,
	}
}
