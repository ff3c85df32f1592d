package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_Append(t *testing.T) {
	h := NewHistory()
	h.Append(TextTurn(RoleUser, "hello"))
	h.Append(TextTurn(RoleAssistant, "hi"), TextTurn(RoleUser, "more"))

	turns := h.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, "hello", turns[0].Text)
	assert.Equal(t, RoleAssistant, turns[1].Role)
}

func TestHistory_ReplaceAll(t *testing.T) {
	h := NewHistory()
	h.Append(TextTurn(RoleUser, "a"), TextTurn(RoleAssistant, "b"))

	h.ReplaceAll([]Turn{TextTurn(RoleUser, "restored")})
	require.Equal(t, 1, h.Len())
	assert.Equal(t, "restored", h.Turns()[0].Text)

	h.ReplaceAll(nil)
	assert.Equal(t, 0, h.Len())
}

func TestHistory_PatchAt(t *testing.T) {
	h := NewHistory()
	h.Append(
		TextTurn(RoleUser, "show me a map"),
		WidgetTurn(RoleAssistant, WidgetContent{Type: "map", Source: map[string]any{"lat": 1.5}}),
		TextTurn(RoleAssistant, "plain reply"),
	)

	pin := func(w *WidgetContent) { w.Pinned = true }

	assert.True(t, h.PatchAt(1, pin))
	turns := h.Turns()
	assert.True(t, turns[1].Widget.Pinned)

	// Only the pinned field changed.
	assert.Equal(t, RoleAssistant, turns[1].Role)
	assert.Equal(t, "map", turns[1].Widget.Type)
	assert.Equal(t, map[string]any{"lat": 1.5}, turns[1].Widget.Source)

	// Out of bounds, user turn, and text-only assistant turn are no-ops.
	assert.False(t, h.PatchAt(-1, pin))
	assert.False(t, h.PatchAt(3, pin))
	assert.False(t, h.PatchAt(0, pin))
	assert.False(t, h.PatchAt(2, pin))
	assert.False(t, h.PatchAt(1, nil))
}
