// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/tourneyhub/roomserver/network"
)

// Session represents one live connection and, once it has joined or created
// a room, the participant it speaks for.
type Session struct {
	ID         string
	Conn       network.Connection
	RoomID     string
	PlayerName string
	Spectator  bool
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

func (s *Session) Send(event string, data interface{}) error {
	s.Touch()
	return s.Conn.Send(event, data)
}

func (s *Session) SendAck(id uint32, data interface{}) error {
	s.Touch()
	return s.Conn.SendAck(id, data)
}

func (s *Session) Touch() {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
}

// Associate records which room and participant this connection represents.
func (s *Session) Associate(roomID, name string, spectator bool) {
	s.mutex.Lock()
	s.RoomID = roomID
	s.PlayerName = name
	s.Spectator = spectator
	s.mutex.Unlock()
}

// Disassociate clears the room association; the connection stays open.
func (s *Session) Disassociate() {
	s.Associate("", "", false)
}

// Association returns the current (roomID, name, spectator) triple.
func (s *Session) Association() (string, string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.RoomID, s.PlayerName, s.Spectator
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager is the connection directory: it maps session ids to live sessions
// and answers the reverse lookup "which connections belong to this room".
// It is never consulted for authorization, only for delivery and cleanup.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// GetByRoom returns every session currently associated with the room.
func (m *Manager) GetByRoom(roomID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		id, _, _ := session.Association()
		if id == roomID {
			result = append(result, session)
		}
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
