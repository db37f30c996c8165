package room

import "errors"

var (
	ErrDuplicateRoom    = errors.New("room already exists")
	ErrRoomNotFound     = errors.New("room does not exist")
	ErrNameCollision    = errors.New("name already taken")
	ErrNotHost          = errors.New("only the host can start the game")
	ErrRoomClosed       = errors.New("room is closed")
	ErrGameStarted      = errors.New("game already started")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
)
