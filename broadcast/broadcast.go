// broadcast/broadcast.go
package broadcast

import (
	"github.com/tourneyhub/roomserver/logger"
	"github.com/tourneyhub/roomserver/models"
	"github.com/tourneyhub/roomserver/network"
	"github.com/tourneyhub/roomserver/session"
)

// RoomBroadcaster delivers room snapshots to every connection the directory
// currently associates with a room: players, spectators and the host alike.
// It implements room.Broadcaster.
type RoomBroadcaster struct {
	sessionManager *session.Manager
	onDelivery     func(count int)
}

func NewRoomBroadcaster(sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{sessionManager: sessionManager}
}

// OnDelivery registers a hook invoked with the recipient count of each
// broadcast; the monitor uses it to count deliveries.
func (b *RoomBroadcaster) OnDelivery(fn func(count int)) {
	b.onDelivery = fn
}

func (b *RoomBroadcaster) RoomUpdate(roomID string, snapshot *models.RoomSnapshot) error {
	return b.push(roomID, network.EventRoomUpdate, snapshot)
}

func (b *RoomBroadcaster) GameStart(roomID string, snapshot *models.RoomSnapshot) error {
	return b.push(roomID, network.EventGameStart, snapshot)
}

func (b *RoomBroadcaster) push(roomID, event string, snapshot *models.RoomSnapshot) error {
	sessions := b.sessionManager.GetByRoom(roomID)

	for _, s := range sessions {
		if err := s.Send(event, snapshot); err != nil {
			// Delivery is best-effort; a dead peer is reaped by its own
			// read loop, not by the broadcaster.
			logger.Log.Warnf("Broadcast to session %s in room %s failed: %v", s.GetID(), roomID, err)
			continue
		}
	}

	if b.onDelivery != nil {
		b.onDelivery(len(sessions))
	}
	return nil
}
