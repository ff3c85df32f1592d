// Package command implements the external command channel: the host writes
// a one-shot command value into the state store, and the listener turns
// distinct values into orchestrator calls.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/odvcencio/parley/pkg/conversation"
	"github.com/odvcencio/parley/pkg/observability"
	"github.com/odvcencio/parley/pkg/statestore"
)

// VarCommand is the state-store variable the listener observes.
const VarCommand = "command"

// Actions the host may write.
const (
	ActionSubmit  = "submit"
	ActionStop    = "stop"
	ActionInject  = "inject"
	ActionRestore = "restore"
)

// DefaultWatchInterval paces the optional Watch loop.
const DefaultWatchInterval = 250 * time.Millisecond

// Command is the value shape the host writes: an action plus optional
// conversation turns.
type Command struct {
	Action   string              `json:"action"`
	Messages []conversation.Turn `json:"messages,omitempty"`
}

// Empty reports whether the command carries no action, i.e. the cleared
// state the listener itself writes back after handling.
func (c Command) Empty() bool { return c.Action == "" }

// Sink is the orchestrator surface the listener drives.
type Sink interface {
	History() *conversation.History
	SubmitCurrent(ctx context.Context) error
	Stop()
}

// Listener watches the command variable and dispatches each distinct value
// exactly once. Values are compared structurally against the last observed
// command, so redundant host writes of the same value are ignored.
type Listener struct {
	store statestore.Store
	sink  Sink
	log   *observability.Logger
	last  Command
}

func NewListener(store statestore.Store, sink Sink, log *observability.Logger) *Listener {
	if log == nil {
		log = observability.NewLogger("command", 0)
	}
	return &Listener{store: store, sink: sink, log: log}
}

// Observe reads the current command value and handles it if it differs
// from the last observed one. After dispatch the variable is cleared back
// to an empty object so the host can reuse it as a one-shot signal.
func (l *Listener) Observe(ctx context.Context) error {
	raw, ok := l.store.Get(VarCommand)
	if !ok {
		return nil
	}
	cmd, err := decode(raw)
	if err != nil {
		l.log.Warn("undecodable command value", "error", err)
		l.clear()
		return fmt.Errorf("command: decode: %w", err)
	}
	if cmd.Empty() {
		// The cleared channel is itself an observation. Forgetting the
		// previous command here is what lets the host re-issue the same
		// command later as a fresh one-shot signal.
		l.last = cmd
		return nil
	}
	if reflect.DeepEqual(cmd, l.last) {
		return nil
	}

	// Record before dispatching: a re-entrant write of the same value
	// triggered by the effect itself must not fire twice.
	l.last = cmd
	err = l.dispatch(ctx, cmd)
	l.clear()
	return err
}

// Watch polls the command variable until the context is cancelled.
func (l *Listener) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Observe(ctx); err != nil {
				l.log.Warn("command dispatch failed", "error", err)
			}
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case ActionSubmit:
		l.sink.History().Append(cmd.Messages...)
		for _, turn := range cmd.Messages {
			if turn.Role == conversation.RoleUser {
				return l.sink.SubmitCurrent(ctx)
			}
		}
		return nil
	case ActionStop:
		l.sink.Stop()
		return nil
	case ActionInject:
		turns := make([]conversation.Turn, len(cmd.Messages))
		for i, turn := range cmd.Messages {
			turn.Hidden = true
			turns[i] = turn
		}
		l.sink.History().Append(turns...)
		return nil
	case ActionRestore:
		l.sink.History().ReplaceAll(cmd.Messages)
		return nil
	default:
		// Not an error: logged, and already marked observed above so the
		// same value does not loop.
		l.log.Info("ignoring unknown command action", "action", cmd.Action)
		return nil
	}
}

func (l *Listener) clear() {
	if err := l.store.Set(VarCommand, map[string]any{}); err != nil {
		l.log.Warn("clearing command value failed", "error", err)
	}
}

// decode accepts either a Command value written natively or a generic
// map written through a JSON-ish host binding.
func decode(raw any) (Command, error) {
	switch v := raw.(type) {
	case Command:
		return v, nil
	case *Command:
		if v == nil {
			return Command{}, nil
		}
		return *v, nil
	case nil:
		return Command{}, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return Command{}, err
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			return Command{}, err
		}
		return cmd, nil
	}
}
