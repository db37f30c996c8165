package room

import "github.com/tourneyhub/roomserver/models"

// Broadcaster pushes room snapshots to every connection associated with a
// room. This is defined here to break the import cycle between room and
// broadcast.
type Broadcaster interface {
	RoomUpdate(roomID string, snapshot *models.RoomSnapshot) error
	GameStart(roomID string, snapshot *models.RoomSnapshot) error
}
