package network

// Inbound event names. Preserved verbatim for client compatibility.
const (
	EventHeartbeat    = "heartbeat"
	EventCreateRoom   = "create-room"
	EventJoinRoom     = "join-room"
	EventCheckRoom    = "check-room"
	EventUpdateRoom   = "update-room"
	EventStartGame    = "start-game"
	EventRemovePlayer = "remove-player"
	EventLeaveRoom    = "leave-room"
)

// Outbound event names.
const (
	EventAck         = "ack"
	EventRoomUpdate  = "room-update"
	EventGameStart   = "game-start"
	EventCreateError = "create-error"
	EventJoinError   = "join-error"
	EventStartError  = "start-error"
	EventRemoveError = "remove-error"
)
