// models/models.go
package models

// PlayerInfo is the caller-supplied identity carried by create-room and
// join-room payloads. Level is an opaque self-declared string.
type PlayerInfo struct {
	Name        string `json:"name"`
	Level       string `json:"level,omitempty"`
	IsSpectator bool   `json:"isSpectator,omitempty"`
}

// RoomRequest is the payload of create-room and join-room.
type RoomRequest struct {
	RoomID string     `json:"roomId"`
	Player PlayerInfo `json:"player"`
}

// RemoveRequest is the payload of remove-player.
type RemoveRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// PlayerView is one entry of the players list in a room-update broadcast.
type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Level string `json:"level,omitempty"`
}

// SpectatorView is one entry of the spectators list in a room-update broadcast.
type SpectatorView struct {
	Name     string `json:"name"`
	SocketID string `json:"socketId"`
}

// RoomSnapshot is the full membership view pushed to every connection
// associated with a room after each successful mutation.
type RoomSnapshot struct {
	Players    []PlayerView    `json:"players"`
	Spectators []SpectatorView `json:"spectators"`
	Host       string          `json:"host"`
}
