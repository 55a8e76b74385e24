// internal/room/store.go
package room

import (
	"sync"

	"github.com/google/uuid"
)

// Store is the in-memory registry of active rooms. It is an explicit handle
// passed into the handlers, never a package-level singleton, so the engine
// and transport stay stateless between calls.
type Store struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*Room
}

// NewStore initializes an empty Store.
func NewStore() *Store {
	return &Store{
		rooms: make(map[uuid.UUID]*Room),
	}
}

// Create builds a fresh lobby room and registers it.
func (s *Store) Create() *Room {
	r := New()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.ID] = r
	return r
}

// Get retrieves a room by id.
func (s *Store) Get(id uuid.UUID) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Delete removes a room from the registry.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

// List returns a snapshot of every registered room. The copy keeps callers
// from iterating the live map while another goroutine mutates the store.
func (s *Store) List() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}
