package session

import "sync"

// Store is the room table: the single source of truth for live rooms,
// mutated only by the Coordinator. It is keyed by room id and deliberately
// narrow so the coordinator can be unit-tested against a fake and the
// backing table swapped without touching coordination logic.
//
// Implementations must be safe for concurrent use. The store serializes
// access to the table itself; per-room state is serialized by the room's
// own mutex, never by the store.
type Store interface {
	// Get returns the room for the given id, if present.
	Get(id string) (*Room, bool)
	// PutIfAbsent inserts the room unless its id is already taken.
	// Returns false on collision, leaving the table unchanged.
	PutIfAbsent(r *Room) bool
	// Delete removes the room for the given id, if present.
	Delete(id string)
	// Len returns the number of live rooms.
	Len() int
	// ForEach calls fn for every live room. fn must not call back into
	// the store.
	ForEach(fn func(r *Room))
}

// MemoryStore is the process-local Store. Rooms do not survive a restart;
// that is an accepted property of the system, not a defect.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewMemoryStore creates an empty in-memory room table.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*Room)}
}

// Get returns the room for the given id, if present.
func (s *MemoryStore) Get(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// PutIfAbsent inserts the room unless its id is already taken.
func (s *MemoryStore) PutIfAbsent(r *Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[r.ID]; exists {
		return false
	}
	s.rooms[r.ID] = r
	return true
}

// Delete removes the room for the given id.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

// Len returns the number of live rooms.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// ForEach calls fn for every live room.
func (s *MemoryStore) ForEach(fn func(r *Room)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		fn(r)
	}
}
