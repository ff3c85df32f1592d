// Package bus provides event fan-out for orchestrator lifecycle events.
// Hosts subscribe to run subjects (approval requested, run completed, run
// errored) without holding a direct reference to the orchestrator. The
// default implementation is in-memory; a NATS option exists for hosts that
// observe the orchestrator out of process.
package bus

import (
	"context"
	"errors"
)

// ErrClosed is returned when operating on a closed bus or subscription.
var ErrClosed = errors.New("bus or subscription closed")

// Bus is the event surface. Implementations must be safe for concurrent use.
type Bus interface {
	// Publish sends a message to all subscribers of the subject.
	// Returns immediately; does not wait for delivery.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the subject.
	// The handler runs on a delivery goroutine per subscription.
	// Supports wildcards: "parley.run.*" matches "parley.run.completed".
	Subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error)

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Handler processes incoming messages.
type Handler func(msg *Message)

// Message is one delivered bus message.
type Message struct {
	Subject string
	Data    []byte
}

// Subscription is an active subscription that can be cancelled.
type Subscription interface {
	Unsubscribe() error
	Subject() string
}
