// Package observability provides the structured logger and prometheus
// metrics shared by the orchestrator components.
package observability

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a structured logger scoped to one component.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stderr.
func NewLogger(component string, level slog.Level) *Logger {
	return NewLoggerTo(os.Stderr, component, level)
}

// NewLoggerTo creates a JSON logger writing to w.
func NewLoggerTo(w io.Writer, component string, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With(
		slog.String("component", component),
		slog.String("system", "parley"),
	)
	return &Logger{Logger: logger}
}

// Discard returns a logger that drops everything; used in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithRun returns a logger with run-identity fields attached.
func (l *Logger) WithRun(agentID, agentRunID string) *Logger {
	return &Logger{Logger: l.Logger.With(
		slog.String("agent_id", agentID),
		slog.String("agent_run_id", agentRunID),
	)}
}
