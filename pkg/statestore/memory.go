package statestore

import "sync"

// Event records one FireEvent call on a MemoryStore.
type Event struct {
	Name    string
	Payload any
}

// MemoryStore is an in-process Store for tests and the CLI. It records
// fired events so assertions can inspect them.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]any
	events []Event
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]any)}
}

func (s *MemoryStore) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

func (s *MemoryStore) Set(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

func (s *MemoryStore) FireEvent(name string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Name: name, Payload: payload})
	return nil
}

// Events returns a copy of all fired events in order.
func (s *MemoryStore) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...)
}
