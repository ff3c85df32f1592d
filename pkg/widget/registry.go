// Package widget defines the content-type extension registry and the
// renderer contract. Rendering itself is a host concern; the orchestrator
// only hands structured content to a Renderer and forwards the opaque
// callback payloads it emits.
package widget

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrEmptyType is returned when registering a definition without a type tag.
	ErrEmptyType = errors.New("widget type must not be empty")

	// ErrDuplicateType is returned when a type tag is registered twice.
	ErrDuplicateType = errors.New("widget type already registered")

	// ErrNilRenderer is returned when a definition carries no renderer.
	ErrNilRenderer = errors.New("widget renderer must not be nil")
)

// Callback payload types the orchestrator intercepts instead of forwarding
// to the host. Everything else passes through verbatim.
const (
	CallbackPin   = "widget:pin"
	CallbackUnpin = "widget:unpin"
)

// CallbackFunc receives an opaque payload emitted by a renderer.
type CallbackFunc func(payload map[string]any)

// Renderer turns structured content into host UI. Implementations live in
// the host application; this package only defines the seam.
type Renderer interface {
	Render(source any, emit CallbackFunc) error
}

// Definition describes one content-type extension: the tag the model emits,
// the guidance injected into the instruction block, and the renderer that
// consumes matching content.
type Definition struct {
	// Type is the tag carried in structured content, e.g. "map" or "chart".
	Type string

	// Instructions tell the model when to answer with this content type.
	Instructions string

	// SourceShape describes the expected source payload for the model.
	SourceShape string

	// Options are per-type extras appended to the instruction block.
	Options map[string]any

	// Renderer consumes matching content on the host side.
	Renderer Renderer
}

// Registry maps type tags to definitions. Registration is validated up
// front so a bad tag fails loudly instead of falling through to a silent
// default at render time.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]Definition
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register validates and stores a definition. Definitions are returned in
// registration order by Definitions.
func (r *Registry) Register(def Definition) error {
	typ := strings.TrimSpace(def.Type)
	if typ == "" {
		return ErrEmptyType
	}
	if def.Renderer == nil {
		return fmt.Errorf("%w: %s", ErrNilRenderer, typ)
	}
	def.Type = typ

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[typ]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, typ)
	}
	r.defs[typ] = def
	r.order = append(r.order, typ)
	return nil
}

// Get looks up a definition by type tag.
func (r *Registry) Get(typ string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[typ]
	return def, ok
}

// Definitions returns all definitions in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, typ := range r.order {
		out = append(out, r.defs[typ])
	}
	return out
}
