package conversation

import "sync"

// History is the ordered list of turns. It is append-only except for two
// explicit bulk operations: ReplaceAll (full restore) and PatchAt (widget
// content patch on one historical turn). Ordering is slice position.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds turns at the end.
func (h *History) Append(turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
}

// ReplaceAll swaps the entire history. This is the only operation that may
// shrink it.
func (h *History) ReplaceAll(turns []Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append([]Turn(nil), turns...)
}

// PatchAt applies patch to the widget content of the assistant turn at
// index. It is a no-op returning false when index is out of bounds or the
// turn is not an assistant turn with structured content; the patch can only
// reach the content, never the role or text.
func (h *History) PatchAt(index int, patch func(*WidgetContent)) bool {
	if patch == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if index < 0 || index >= len(h.turns) {
		return false
	}
	turn := &h.turns[index]
	if turn.Role != RoleAssistant || turn.Widget == nil {
		return false
	}
	patch(turn.Widget)
	return true
}

// Turns returns a copy of the history.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Turn(nil), h.turns...)
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}
