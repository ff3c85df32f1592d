// Package conversation holds the turn model, the append-only history, and
// the normalization that flattens turns into backend messages.
package conversation

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// WidgetContent is structured turn content produced by a content-type
// extension. Pinned marks content that should additionally surface in the
// host's persistent side panel; it is only meaningful on structured content.
type WidgetContent struct {
	Type   string
	Source any
	Extra  map[string]any
	Pinned bool
}

// Turn is one conversation entry. Content is either plain text (Widget nil)
// or structured widget content. Hidden turns stay in history for context but
// are never rendered.
type Turn struct {
	Role   Role
	Text   string
	Widget *WidgetContent
	Hidden bool
}

// TextTurn builds a plain-text turn.
func TextTurn(role Role, text string) Turn {
	return Turn{Role: role, Text: text}
}

// WidgetTurn builds a structured-content turn.
func WidgetTurn(role Role, content WidgetContent) Turn {
	return Turn{Role: role, Widget: &content}
}

type turnWire struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
	Hidden  bool            `json:"hidden,omitempty"`
}

// MarshalJSON encodes content as either a bare string or a structured
// object, matching the shape the host command channel uses.
func (t Turn) MarshalJSON() ([]byte, error) {
	var content json.RawMessage
	var err error
	if t.Widget == nil {
		content, err = json.Marshal(t.Text)
	} else {
		obj := map[string]any{"type": t.Widget.Type}
		if t.Widget.Source != nil {
			obj["source"] = t.Widget.Source
		}
		if t.Widget.Pinned {
			obj["pinned"] = true
		}
		for k, v := range t.Widget.Extra {
			obj[k] = v
		}
		content, err = json.Marshal(obj)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(turnWire{Role: t.Role, Content: content, Hidden: t.Hidden})
}

// UnmarshalJSON accepts both content shapes.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var wire turnWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t.Role = wire.Role
	t.Hidden = wire.Hidden
	t.Text = ""
	t.Widget = nil
	if len(wire.Content) == 0 {
		return nil
	}

	var text string
	if err := json.Unmarshal(wire.Content, &text); err == nil {
		t.Text = text
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(wire.Content, &obj); err != nil {
		return fmt.Errorf("conversation: content is neither string nor object: %w", err)
	}
	widget := &WidgetContent{}
	if typ, ok := obj["type"].(string); ok {
		widget.Type = typ
	}
	widget.Source = obj["source"]
	if pinned, ok := obj["pinned"].(bool); ok {
		widget.Pinned = pinned
	}
	delete(obj, "type")
	delete(obj, "source")
	delete(obj, "pinned")
	if len(obj) > 0 {
		widget.Extra = obj
	}
	t.Widget = widget
	return nil
}
