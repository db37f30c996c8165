// engine/engine.go
package engine

import (
	"github.com/tourneyhub/roomserver/logger"
	"github.com/tourneyhub/roomserver/models"
)

// GameEngine consumes the game-start handoff. Everything past this boundary
// is opaque to the room coordinator.
type GameEngine interface {
	GameStarted(roomID string, roster *models.RoomSnapshot)
}

// LogEngine is the default engine: it records the handoff and nothing else.
type LogEngine struct{}

func NewLogEngine() *LogEngine {
	return &LogEngine{}
}

func (e *LogEngine) GameStarted(roomID string, roster *models.RoomSnapshot) {
	logger.Log.Infow("Game started",
		"room_id", roomID,
		"host", roster.Host,
		"players", len(roster.Players),
		"spectators", len(roster.Spectators),
	)
}
