package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	b := NewMemoryBus()
	defer func() { _ = b.Close() }()

	received := make(chan *Message, 1)
	sub, err := b.Subscribe(context.Background(), "parley.run.completed", func(msg *Message) {
		received <- msg
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	require.NoError(t, b.Publish(context.Background(), "parley.run.completed", []byte(`{"runId":"r1"}`)))

	select {
	case msg := <-received:
		assert.Equal(t, "parley.run.completed", msg.Subject)
		assert.JSONEq(t, `{"runId":"r1"}`, string(msg.Data))
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestMemoryBus_Wildcard(t *testing.T) {
	b := NewMemoryBus()
	defer func() { _ = b.Close() }()

	received := make(chan string, 4)
	_, err := b.Subscribe(context.Background(), "parley.run.*", func(msg *Message) {
		received <- msg.Subject
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "parley.run.errored", nil))
	require.NoError(t, b.Publish(context.Background(), "parley.command.submit", nil))

	select {
	case subject := <-received:
		assert.Equal(t, "parley.run.errored", subject)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for wildcard match")
	}
	select {
	case subject := <-received:
		t.Fatalf("unexpected delivery for %s", subject)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	b := NewMemoryBus()
	defer func() { _ = b.Close() }()

	received := make(chan string, 4)
	sub, err := b.Subscribe(context.Background(), "parley.run.completed", func(msg *Message) {
		received <- msg.Subject
	})
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe())

	require.NoError(t, b.Publish(context.Background(), "parley.run.completed", nil))
	select {
	case subject := <-received:
		t.Fatalf("unexpected delivery for %s after unsubscribe", subject)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_Closed(t *testing.T) {
	b := NewMemoryBus()
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Publish(context.Background(), "x", nil), ErrClosed)
	_, err := b.Subscribe(context.Background(), "x", func(*Message) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Close(), ErrClosed)
}

func TestMatchSubject(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"a.b.c", "a.b.c", true},
		{"a.*.c", "a.b.c", true},
		{"a.*", "a.b.c", false},
		{"a.>", "a.b.c", true},
		{"a.b", "a.b.c", false},
		{"*", "a", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchSubject(tt.pattern, tt.subject), "%s vs %s", tt.pattern, tt.subject)
	}
}
