package run

import (
	"errors"
	"sync"

	"github.com/odvcencio/parley/pkg/agentapi"
)

var (
	// ErrApprovalPending is returned when a second request arrives while
	// one is still awaiting a decision.
	ErrApprovalPending = errors.New("approval request already pending")

	// ErrNoPendingApproval is returned when deciding without a pending
	// request.
	ErrNoPendingApproval = errors.New("no approval request pending")
)

// ApprovalGate holds at most one pending approval request and the per-run
// seen-set of checkpoint ids that have already been surfaced. The seen-set
// survives stop/resume cycles and is cleared only on a fresh run.
type ApprovalGate struct {
	mu      sync.Mutex
	pending *agentapi.ToolData
	seen    map[string]struct{}
}

// NewApprovalGate returns an empty gate.
func NewApprovalGate() *ApprovalGate {
	return &ApprovalGate{seen: make(map[string]struct{})}
}

// Request takes a checkpoint for a human decision. It returns
// ErrApprovalPending while another decision is in flight; only one human
// decision is in flight at a time. A surfaced checkpoint id is recorded so
// a redelivered snapshot cannot re-show it.
func (g *ApprovalGate) Request(tool *agentapi.ToolData) error {
	if tool == nil {
		return errors.New("nil approval request")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending != nil {
		return ErrApprovalPending
	}
	copied := *tool
	g.pending = &copied
	g.seen[tool.ToolExecutionID] = struct{}{}
	return nil
}

// Decide resolves the pending request and returns the decision payload for
// submitToolApproval. It does not resume polling; resumption is driven by
// the next snapshot showing the backend accepted the decision.
func (g *ApprovalGate) Decide(decision agentapi.Decision) ([]agentapi.ToolDecision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return nil, ErrNoPendingApproval
	}
	payload := []agentapi.ToolDecision{{
		ToolExecutionID: g.pending.ToolExecutionID,
		ToolID:          g.pending.ToolID,
		Decision:        decision,
	}}
	g.pending = nil
	return payload, nil
}

// Pending returns a copy of the request awaiting a decision, or nil.
func (g *ApprovalGate) Pending() *agentapi.ToolData {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return nil
	}
	copied := *g.pending
	return &copied
}

// Seen reports whether a checkpoint id has already been surfaced.
func (g *ApprovalGate) Seen(toolExecutionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[toolExecutionID]
	return ok
}

// Reset clears the pending request and the seen-set. Called on a fresh
// submit, never on a resume.
func (g *ApprovalGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = nil
	g.seen = make(map[string]struct{})
}
