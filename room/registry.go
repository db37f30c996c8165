// room/registry.go
package room

import (
	"sync"
)

// Registry owns the mapping from room id to Room. A registry instance is
// injected into the protocol router rather than held in package state, so
// tests and future multi-instance deployments get isolated registries.
type Registry struct {
	rooms       map[string]*Room
	minPlayers  int
	broadcaster Broadcaster
	mutex       sync.RWMutex
}

func NewRegistry(minPlayers int, broadcaster Broadcaster) *Registry {
	if minPlayers < 1 {
		minPlayers = 1
	}
	return &Registry{
		rooms:       make(map[string]*Room),
		minPlayers:  minPlayers,
		broadcaster: broadcaster,
	}
}

// Create makes a new Open room with host as its only player. The id must not
// denote a live room.
func (m *Registry) Create(id string, host *Participant) (*Room, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.rooms[id]; exists {
		return nil, ErrDuplicateRoom
	}

	room := newRoom(id, host, m.minPlayers, m.broadcaster)
	m.rooms[id] = room
	return room, nil
}

// Get looks up a room. Absence is a valid outcome, not an error.
func (m *Registry) Get(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// Remove drops a room from the registry. Idempotent.
func (m *Registry) Remove(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.rooms, id)
}

func (m *Registry) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// All returns the live rooms in no particular order.
func (m *Registry) All() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
