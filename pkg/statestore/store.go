// Package statestore defines the seam to the host application's state
// binding: named variables with get/set primitives and a fire-event
// primitive. The host supplies the real implementation; the memory store
// backs tests and the CLI.
package statestore

// Store is the host state-binding collaborator.
type Store interface {
	// Get reads a named variable. The second return reports presence.
	Get(name string) (any, bool)

	// Set writes a named variable.
	Set(name string, value any) error

	// FireEvent raises a named host event with an opaque payload.
	FireEvent(name string, payload any) error
}
