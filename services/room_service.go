// services/room_service.go
package services

import (
	"time"

	"github.com/tourneyhub/roomserver/models"
	"github.com/tourneyhub/roomserver/room"
	"github.com/tourneyhub/roomserver/session"
)

// RoomInfo is a read-only description of one live room for operators.
type RoomInfo struct {
	RoomID     string               `json:"room_id"`
	State      string               `json:"state"`
	Host       string               `json:"host"`
	Players    int                  `json:"players"`
	Spectators int                  `json:"spectators"`
	CreatedAt  time.Time            `json:"created_at"`
	Roster     *models.RoomSnapshot `json:"roster,omitempty"`
}

// ServerStats summarizes the coordinator for the admin endpoint.
type ServerStats struct {
	Rooms    int `json:"rooms"`
	Sessions int `json:"sessions"`
}

// RoomService answers introspection queries against the live registry and
// connection directory. It never mutates either.
type RoomService struct {
	registry *room.Registry
	sessions *session.Manager
}

func NewRoomService(registry *room.Registry, sessions *session.Manager) *RoomService {
	return &RoomService{
		registry: registry,
		sessions: sessions,
	}
}

func (s *RoomService) ListRooms() []RoomInfo {
	rooms := s.registry.All()
	infos := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, RoomInfo{
			RoomID:     r.ID,
			State:      string(r.State()),
			Host:       r.HostName(),
			Players:    r.PlayerCount(),
			Spectators: r.SpectatorCount(),
			CreatedAt:  r.CreatedAt,
		})
	}
	return infos
}

func (s *RoomService) GetRoomInfo(roomID string) (RoomInfo, error) {
	r, exists := s.registry.Get(roomID)
	if !exists {
		return RoomInfo{}, room.ErrRoomNotFound
	}
	return RoomInfo{
		RoomID:     r.ID,
		State:      string(r.State()),
		Host:       r.HostName(),
		Players:    r.PlayerCount(),
		Spectators: r.SpectatorCount(),
		CreatedAt:  r.CreatedAt,
		Roster:     r.Snapshot(),
	}, nil
}

func (s *RoomService) Stats() ServerStats {
	return ServerStats{
		Rooms:    s.registry.Count(),
		Sessions: s.sessions.Count(),
	}
}
