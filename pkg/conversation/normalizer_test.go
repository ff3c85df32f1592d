package conversation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/parley/pkg/widget"
)

func TestNormalize(t *testing.T) {
	t.Run("plain text passes through", func(t *testing.T) {
		msg := Normalize(TextTurn(RoleUser, "hello"))
		assert.Equal(t, "user", msg.Role)
		assert.Equal(t, "hello", msg.Content)
	})

	t.Run("string source is flattened", func(t *testing.T) {
		msg := Normalize(WidgetTurn(RoleAssistant, WidgetContent{Type: "markdown", Source: "# Title"}))
		assert.Equal(t, "assistant", msg.Role)
		assert.Equal(t, "# Title", msg.Content)
	})

	t.Run("empty string source still flattens", func(t *testing.T) {
		msg := Normalize(WidgetTurn(RoleAssistant, WidgetContent{Type: "markdown", Source: ""}))
		assert.Equal(t, "", msg.Content)
	})

	t.Run("non-string source serializes to a trace", func(t *testing.T) {
		msg := Normalize(WidgetTurn(RoleAssistant, WidgetContent{
			Type:   "map",
			Source: map[string]any{"lat": 48.85, "lng": 2.35},
			Extra:  map[string]any{"zoom": 12},
		}))
		require.True(t, strings.HasPrefix(msg.Content, "[Widget: map] "))

		var rest map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(msg.Content, "[Widget: map] ")), &rest))
		assert.Equal(t, float64(12), rest["zoom"])
		assert.Equal(t, 48.85, rest["source"].(map[string]any)["lat"])
	})
}

func TestNormalizeHistory_KeepsHiddenTurns(t *testing.T) {
	hidden := TextTurn(RoleUser, "injected context")
	hidden.Hidden = true

	msgs := NormalizeHistory([]Turn{TextTurn(RoleUser, "hello"), hidden})
	require.Len(t, msgs, 2)
	assert.Equal(t, "injected context", msgs[1].Content)
}

func TestInstructionMessage(t *testing.T) {
	defs := []widget.Definition{
		{Type: "map", Instructions: "for geographic answers", SourceShape: `{"lat": number, "lng": number}`},
		{Type: "chart", Options: map[string]any{"maxSeries": 4}},
	}

	msg := InstructionMessage(defs)
	assert.Equal(t, "assistant", msg.Role)
	assert.True(t, strings.HasPrefix(msg.Content, instructionHeader))
	assert.True(t, strings.HasSuffix(msg.Content, instructionFooter))
	assert.Contains(t, msg.Content, "Content type: map")
	assert.Contains(t, msg.Content, "When to use: for geographic answers")
	assert.Contains(t, msg.Content, `Source shape: {"lat": number, "lng": number}`)
	assert.Contains(t, msg.Content, `"maxSeries":4`)
	assert.Contains(t, msg.Content, `{"type": <type>, "source": <value>}`)
	assert.Contains(t, msg.Content, "Never mention")
}

func TestTurn_JSONRoundTrip(t *testing.T) {
	t.Run("text content", func(t *testing.T) {
		data, err := json.Marshal(TextTurn(RoleUser, "hello"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"role":"user","content":"hello"}`, string(data))

		var decoded Turn
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "hello", decoded.Text)
		assert.Nil(t, decoded.Widget)
	})

	t.Run("structured content", func(t *testing.T) {
		raw := `{"role":"assistant","content":{"type":"map","source":{"lat":1.0},"zoom":9,"pinned":true},"hidden":true}`
		var decoded Turn
		require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
		require.NotNil(t, decoded.Widget)
		assert.Equal(t, "map", decoded.Widget.Type)
		assert.Equal(t, map[string]any{"zoom": float64(9)}, decoded.Widget.Extra)
		assert.True(t, decoded.Widget.Pinned)
		assert.True(t, decoded.Hidden)

		data, err := json.Marshal(decoded)
		require.NoError(t, err)
		assert.JSONEq(t, raw, string(data))
	})
}
