package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/odvcencio/parley/pkg/agentapi"
	"github.com/odvcencio/parley/pkg/bus"
	"github.com/odvcencio/parley/pkg/conversation"
	"github.com/odvcencio/parley/pkg/observability"
	"github.com/odvcencio/parley/pkg/statestore"
	"github.com/odvcencio/parley/pkg/widget"
)

// ErrNoRunToRetry is returned by Retry when no run has been started yet.
var ErrNoRunToRetry = errors.New("no previous run to retry")

// Options configures an Orchestrator.
type Options struct {
	// Backend talks to the remote agent. Required.
	Backend agentapi.Backend

	// AgentID selects the agent to invoke. Required.
	AgentID string

	// History is the shared conversation history. A fresh one is created
	// when nil.
	History *conversation.History

	// Registry supplies the enabled content-type extensions for the
	// instruction block.
	Registry *widget.Registry

	// Bus receives lifecycle events. Optional.
	Bus bus.Bus

	// Store receives the derived loading/error signals and the approval
	// event for the presentation layer. Optional.
	Store statestore.Store

	// WidgetCallback receives renderer payloads the orchestrator does not
	// intercept. Optional.
	WidgetCallback widget.CallbackFunc

	// PollInterval overrides the polling cadence. Defaults to 1s.
	PollInterval time.Duration

	Logger *observability.Logger
}

// Orchestrator composes history, normalization, polling, and the approval
// gate into the public chat surface: Submit, Stop, Retry, Approve, Reject,
// and the derived IsLoading/Err signals.
type Orchestrator struct {
	opts   Options
	poller *Poller
	gate   *ApprovalGate
	log    *observability.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	loading  bool
	lastErr  string
	retained agentapi.RunIdentity
}

// NewOrchestrator validates options and wires the components together.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Backend == nil {
		return nil, errors.New("run: backend is required")
	}
	if strings.TrimSpace(opts.AgentID) == "" {
		return nil, errors.New("run: agent id is required")
	}
	if opts.History == nil {
		opts.History = conversation.NewHistory()
	}
	if opts.Registry == nil {
		opts.Registry = widget.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger("orchestrator", 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		opts:   opts,
		gate:   NewApprovalGate(),
		log:    opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	o.poller = NewPoller(opts.Backend, opts.PollInterval, opts.Logger, o.handlePoll)
	return o, nil
}

// Close stops polling and releases the orchestrator's resources. The
// history is left intact.
func (o *Orchestrator) Close() {
	o.poller.Stop()
	o.cancel()
}

// History returns the conversation history shared with the host.
func (o *Orchestrator) History() *conversation.History {
	return o.opts.History
}

// IsLoading reports whether a run is in flight (polling or awaiting an
// approval decision).
func (o *Orchestrator) IsLoading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loading
}

// Err returns the last fatal error message, empty when none.
func (o *Orchestrator) Err() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// PendingApproval returns the checkpoint awaiting a decision, or nil.
func (o *Orchestrator) PendingApproval() *agentapi.ToolData {
	return o.gate.Pending()
}

// Submit appends a user turn and starts a fresh run from the full
// normalized history plus the synthetic instruction message. The
// instruction message is sent on the wire only, never persisted.
func (o *Orchestrator) Submit(ctx context.Context, text string) error {
	o.opts.History.Append(conversation.TextTurn(conversation.RoleUser, text))
	return o.invoke(ctx)
}

// SubmitCurrent starts a run from the history as it stands, without
// appending anything. Used by the command channel after it has already
// appended the submitted turns.
func (o *Orchestrator) SubmitCurrent(ctx context.Context) error {
	return o.invoke(ctx)
}

func (o *Orchestrator) invoke(ctx context.Context) error {
	// A fresh submit supersedes any in-flight run: its poll loop is torn
	// down and its checkpoint bookkeeping is obsolete. A late fetch for
	// the old run is dropped by the poller's generation guard.
	o.poller.Stop()
	o.gate.Reset()
	o.mu.Lock()
	o.loading = false
	o.lastErr = ""
	o.mu.Unlock()
	o.publishSignals()

	messages := conversation.NormalizeHistory(o.opts.History.Turns())
	messages = append(messages, conversation.InstructionMessage(o.opts.Registry.Definitions()))

	snap, err := o.opts.Backend.Invoke(ctx, o.opts.AgentID, messages)
	if err != nil {
		o.failf("invoke failed: %v", err)
		return fmt.Errorf("run: invoke: %w", err)
	}
	observability.RunsStarted.WithLabelValues("submit").Inc()
	o.HandleSnapshot(snap)
	return nil
}

// Stop cancels polling. The run identity is retained so Retry can resume.
func (o *Orchestrator) Stop() {
	o.poller.Stop()
	o.mu.Lock()
	o.loading = false
	o.mu.Unlock()
	o.publishSignals()
}

// Retry resumes the last run, clearing the error flag. Cursor and seen-set
// are preserved.
func (o *Orchestrator) Retry() error {
	o.mu.Lock()
	if !o.retained.Valid() {
		o.mu.Unlock()
		return ErrNoRunToRetry
	}
	run := o.retained
	o.lastErr = ""
	o.loading = true
	o.mu.Unlock()

	observability.RunsStarted.WithLabelValues("retry").Inc()
	o.poller.Resume(o.ctx, run)
	o.publishSignals()
	return nil
}

// Approve resolves the pending checkpoint with an approve decision.
func (o *Orchestrator) Approve(ctx context.Context) error {
	return o.decide(ctx, agentapi.DecisionApprove)
}

// Reject resolves the pending checkpoint with a reject decision.
func (o *Orchestrator) Reject(ctx context.Context) error {
	return o.decide(ctx, agentapi.DecisionReject)
}

func (o *Orchestrator) decide(ctx context.Context, decision agentapi.Decision) error {
	decisions, err := o.gate.Decide(decision)
	if err != nil {
		return err
	}
	o.mu.Lock()
	run := o.retained
	// The human has decided; the UI is no longer blocked on input. Polling
	// resumes once the backend reports the run pending again.
	o.loading = false
	o.mu.Unlock()
	o.publishSignals()

	observability.ApprovalsDecided.WithLabelValues(string(decision)).Inc()
	snap, err := o.opts.Backend.SubmitToolApproval(ctx, run, decisions)
	if err != nil {
		o.failf("decision submit failed: %v", err)
		return fmt.Errorf("run: submit approval: %w", err)
	}
	o.HandleSnapshot(snap)
	return nil
}

// HandleSnapshot feeds one status snapshot through the interpreter and
// applies the resulting action. Safe to call from any goroutine.
func (o *Orchestrator) HandleSnapshot(snap *agentapi.Snapshot) {
	o.mu.Lock()
	state := State{
		Loading:      o.loading,
		Retained:     o.retained,
		SeenApproval: o.gate.Seen,
	}
	o.mu.Unlock()

	o.apply(Interpret(snap, state))
}

// handlePoll is the poller's delivery callback.
func (o *Orchestrator) handlePoll(snap *agentapi.Snapshot, err error) {
	if err != nil {
		o.poller.Stop()
		o.failf("polling failed: %v", err)
		return
	}
	o.HandleSnapshot(snap)
}

func (o *Orchestrator) apply(action Action) {
	switch action.Kind {
	case ActionNone:
		return

	case ActionFatal:
		o.poller.Stop()
		o.mu.Lock()
		o.loading = false
		o.lastErr = action.ErrorMessage
		run := o.retained
		o.mu.Unlock()
		observability.RunsFailed.Inc()
		o.log.WithRun(run.AgentID, run.AgentRunID).Error("run failed", "error", action.ErrorMessage)
		evt := newEvent(run)
		evt.Error = action.ErrorMessage
		o.publish(SubjectRunErrored, evt)
		o.publishSignals()

	case ActionStartPolling:
		o.gate.Reset()
		o.mu.Lock()
		o.retained = action.Run
		o.loading = true
		o.lastErr = ""
		o.mu.Unlock()
		o.poller.Start(o.ctx, action.Run)
		o.publishSignals()

	case ActionResumePolling:
		o.mu.Lock()
		o.loading = true
		o.lastErr = ""
		o.mu.Unlock()
		observability.RunsStarted.WithLabelValues("resume").Inc()
		o.poller.Resume(o.ctx, action.Run)
		o.publishSignals()

	case ActionApprovalRequested:
		if err := o.gate.Request(action.Tool); err != nil {
			// Either a duplicate checkpoint or a decision already in
			// flight; the snapshot is redundant.
			observability.DuplicateApprovalsSuppressed.Inc()
			return
		}
		// Polling stops but the run identity survives; loading stays true
		// while the UI waits on the human.
		o.poller.Stop()
		o.mu.Lock()
		run := o.retained
		o.mu.Unlock()
		observability.ApprovalsRequested.Inc()
		o.log.WithRun(run.AgentID, run.AgentRunID).Info("approval requested",
			"tool", action.Tool.ToolName, "execution_id", action.Tool.ToolExecutionID)
		evt := newEvent(run)
		evt.Tool = action.Tool
		o.publish(SubjectApprovalRequested, evt)
		if o.opts.Store != nil {
			_ = o.opts.Store.FireEvent(EventApprovalRequired, action.Tool)
		}

	case ActionComplete:
		o.poller.Stop()
		o.mu.Lock()
		o.loading = false
		o.lastErr = ""
		run := o.retained
		o.mu.Unlock()
		o.opts.History.Append(conversation.WidgetTurn(conversation.RoleAssistant, action.Content))
		observability.RunsCompleted.Inc()
		o.publish(SubjectRunCompleted, newEvent(run))
		o.publishSignals()
	}
}

// HandleWidgetCallback routes a renderer payload. Pin/unpin payloads are
// intercepted and applied to history; everything else is forwarded
// verbatim to the host callback.
func (o *Orchestrator) HandleWidgetCallback(payload map[string]any) {
	typ, _ := payload["type"].(string)
	switch typ {
	case widget.CallbackPin, widget.CallbackUnpin:
		index, ok := payloadIndex(payload)
		if !ok {
			return
		}
		pinned := typ == widget.CallbackPin
		o.opts.History.PatchAt(index, func(w *conversation.WidgetContent) {
			w.Pinned = pinned
		})
	default:
		if o.opts.WidgetCallback != nil {
			o.opts.WidgetCallback(payload)
		}
	}
}

func payloadIndex(payload map[string]any) (int, bool) {
	switch v := payload["index"].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func (o *Orchestrator) failf(format string, args ...any) {
	o.apply(Action{Kind: ActionFatal, ErrorMessage: fmt.Sprintf(format, args...)})
}

func (o *Orchestrator) publish(subject string, evt Event) {
	if o.opts.Bus == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := o.opts.Bus.Publish(o.ctx, subject, data); err != nil {
		o.log.Debug("event publish failed", "subject", subject, "error", err)
	}
}

// publishSignals mirrors the derived loading/error flags into the host
// state store.
func (o *Orchestrator) publishSignals() {
	if o.opts.Store == nil {
		return
	}
	o.mu.Lock()
	loading, lastErr := o.loading, o.lastErr
	o.mu.Unlock()
	_ = o.opts.Store.Set(VarLoading, loading)
	_ = o.opts.Store.Set(VarError, lastErr)
}
