// protocol/router.go
package protocol

import (
	"encoding/json"
	"errors"

	"github.com/tourneyhub/roomserver/engine"
	"github.com/tourneyhub/roomserver/logger"
	"github.com/tourneyhub/roomserver/models"
	"github.com/tourneyhub/roomserver/network"
	"github.com/tourneyhub/roomserver/room"
	"github.com/tourneyhub/roomserver/session"
)

// Wire error strings, preserved verbatim for client compatibility.
const (
	msgRoomExists       = "Room already exists"
	msgRoomMissing      = "Room does not exist"
	msgNameTaken        = "Name already taken"
	msgNotHost          = "Only the host can start the game."
	msgGameStarted      = "Game already started"
	msgRoomClosed       = "Room is closed"
	msgNotEnoughPlayers = "Not enough players to start the game."
	msgInvalidRequest   = "Invalid request"
	msgInvalidName      = "Invalid player name"
	msgPlayerMissing    = "Player not found in room"
)

// Router validates inbound protocol events against room state, applies the
// mutation, and emits replies. Broadcasts to the room happen inside the room
// mutation itself; the router only ever sends to the originating connection.
type Router struct {
	registry *room.Registry
	sessions *session.Manager
	engine   engine.GameEngine
}

func NewRouter(registry *room.Registry, sessions *session.Manager, eng engine.GameEngine) *Router {
	return &Router{
		registry: registry,
		sessions: sessions,
		engine:   eng,
	}
}

// HandleEvent dispatches one inbound event. It never panics the server; a
// malformed or unknown event costs only the requester an error reply.
func (r *Router) HandleEvent(sess *session.Session, ev *network.Event) {
	switch ev.Name {
	case network.EventHeartbeat:
		sess.Touch()
	case network.EventCreateRoom:
		r.handleCreateRoom(sess, ev)
	case network.EventJoinRoom:
		r.handleJoinRoom(sess, ev)
	case network.EventCheckRoom:
		r.handleCheckRoom(sess, ev)
	case network.EventUpdateRoom:
		r.handleUpdateRoom(sess, ev)
	case network.EventStartGame:
		r.handleStartGame(sess, ev)
	case network.EventRemovePlayer:
		r.handleRemovePlayer(sess, ev)
	case network.EventLeaveRoom:
		r.handleLeaveRoom(sess, ev)
	default:
		logger.Log.Infof("Unknown event %q from session %s", ev.Name, sess.GetID())
	}
}

func (r *Router) handleCreateRoom(sess *session.Session, ev *network.Event) {
	var req models.RoomRequest
	if err := json.Unmarshal(ev.Data, &req); err != nil || req.RoomID == "" {
		sess.Send(network.EventCreateError, msgInvalidRequest)
		return
	}
	if req.Player.Name == "" {
		sess.Send(network.EventCreateError, msgInvalidName)
		return
	}

	host := &room.Participant{
		SessionID: sess.GetID(),
		Name:      req.Player.Name,
		Level:     req.Player.Level,
	}
	rm, err := r.registry.Create(req.RoomID, host)
	if err != nil {
		sess.Send(network.EventCreateError, errorMessage(err))
		return
	}

	sess.Associate(req.RoomID, host.Name, false)
	rm.Announce()
	logger.Log.Infof("Session %s created room %s as host %q", sess.GetID(), req.RoomID, host.Name)
}

func (r *Router) handleJoinRoom(sess *session.Session, ev *network.Event) {
	var req models.RoomRequest
	if err := json.Unmarshal(ev.Data, &req); err != nil || req.RoomID == "" {
		sess.Send(network.EventJoinError, msgInvalidRequest)
		return
	}
	if req.Player.Name == "" {
		sess.Send(network.EventJoinError, msgInvalidName)
		return
	}

	rm, exists := r.registry.Get(req.RoomID)
	if !exists {
		sess.Send(network.EventJoinError, msgRoomMissing)
		return
	}

	p := &room.Participant{
		SessionID: sess.GetID(),
		Name:      req.Player.Name,
		Level:     req.Player.Level,
		Spectator: req.Player.IsSpectator,
	}

	// The association must exist before Join so the broadcast emitted under
	// the room lock reaches this connection; until Join returns, a concurrent
	// mutation in the target room may deliver it one early snapshot. A failed
	// join restores whatever association the session held before, so a
	// participant already in a room keeps receiving broadcasts and its
	// disconnect cleanup stays intact.
	prevRoom, prevName, prevSpectator := sess.Association()
	sess.Associate(req.RoomID, p.Name, p.Spectator)
	replaced, err := rm.Join(p)
	if err != nil {
		sess.Associate(prevRoom, prevName, prevSpectator)
		sess.Send(network.EventJoinError, errorMessage(err))
		return
	}

	// Re-join from a new connection: drop the stale association so the old
	// connection's disconnect no longer removes this participant.
	if replaced != "" && replaced != sess.GetID() {
		if old, ok := r.sessions.Get(replaced); ok {
			old.Disassociate()
		}
	}
	logger.Log.Infof("Session %s joined room %s as %q (spectator=%v)", sess.GetID(), req.RoomID, p.Name, p.Spectator)
}

func (r *Router) handleCheckRoom(sess *session.Session, ev *network.Event) {
	var roomID string
	if err := json.Unmarshal(ev.Data, &roomID); err != nil {
		return
	}
	_, exists := r.registry.Get(roomID)
	if ev.Ack != 0 {
		sess.SendAck(ev.Ack, exists)
	}
}

func (r *Router) handleUpdateRoom(sess *session.Session, ev *network.Event) {
	var roomID string
	if err := json.Unmarshal(ev.Data, &roomID); err != nil {
		return
	}
	rm, exists := r.registry.Get(roomID)
	if !exists {
		return
	}
	sess.Send(network.EventRoomUpdate, rm.Snapshot())
}

func (r *Router) handleStartGame(sess *session.Session, ev *network.Event) {
	var roomID string
	if err := json.Unmarshal(ev.Data, &roomID); err != nil {
		sess.Send(network.EventStartError, msgInvalidRequest)
		return
	}

	rm, exists := r.registry.Get(roomID)
	if !exists {
		sess.Send(network.EventStartError, msgRoomMissing)
		return
	}

	// The requester's identity comes from its own association; host
	// authority itself is checked by the room against its roster.
	assocRoom, name, _ := sess.Association()
	if assocRoom != roomID || name == "" {
		sess.Send(network.EventStartError, msgNotHost)
		return
	}

	if err := rm.Start(name); err != nil {
		sess.Send(network.EventStartError, errorMessage(err))
		return
	}

	logger.Log.Infof("Room %s started by host %q", roomID, name)
	if r.engine != nil {
		r.engine.GameStarted(roomID, rm.Snapshot())
	}
}

func (r *Router) handleRemovePlayer(sess *session.Session, ev *network.Event) {
	var req models.RemoveRequest
	if err := json.Unmarshal(ev.Data, &req); err != nil {
		r.ack(sess, ev, false)
		sess.Send(network.EventRemoveError, msgInvalidRequest)
		return
	}

	rm, exists := r.registry.Get(req.RoomID)
	if !exists {
		r.ack(sess, ev, false)
		sess.Send(network.EventRemoveError, msgRoomMissing)
		return
	}

	removed, closed := rm.Remove(req.Name)
	if removed == nil {
		r.ack(sess, ev, false)
		sess.Send(network.EventRemoveError, msgPlayerMissing)
		return
	}

	if s, ok := r.sessions.Get(removed.SessionID); ok {
		s.Disassociate()
	}
	if closed {
		r.closeRoom(req.RoomID)
	}
	r.ack(sess, ev, true)
	logger.Log.Infof("Removed %q from room %s (closed=%v)", req.Name, req.RoomID, closed)
}

func (r *Router) handleLeaveRoom(sess *session.Session, ev *network.Event) {
	var roomID string
	if err := json.Unmarshal(ev.Data, &roomID); err != nil {
		return
	}

	assocRoom, _, _ := sess.Association()
	if assocRoom != roomID {
		return
	}
	rm, exists := r.registry.Get(roomID)
	if !exists {
		sess.Disassociate()
		return
	}

	_, closed := rm.RemoveBySession(sess.GetID())
	sess.Disassociate()
	if closed {
		r.closeRoom(roomID)
	}
}

// HandleDisconnect is the implicit leave for a dropped connection. It is
// best-effort cleanup and never emits an error to anyone.
func (r *Router) HandleDisconnect(sess *session.Session) {
	roomID, name, _ := sess.Association()
	if roomID == "" {
		return
	}

	rm, exists := r.registry.Get(roomID)
	if exists {
		_, closed := rm.RemoveBySession(sess.GetID())
		if closed {
			r.closeRoom(roomID)
		}
	}
	sess.Disassociate()
	logger.Log.Infof("Session %s disconnected, removed %q from room %s", sess.GetID(), name, roomID)
}

// closeRoom drops a room whose last player left and releases the remaining
// spectator associations. The final empty-roster broadcast has already gone
// out as part of the closing mutation.
func (r *Router) closeRoom(roomID string) {
	r.registry.Remove(roomID)
	for _, s := range r.sessions.GetByRoom(roomID) {
		s.Disassociate()
	}
}

func (r *Router) ack(sess *session.Session, ev *network.Event, ok bool) {
	if ev.Ack != 0 {
		sess.SendAck(ev.Ack, ok)
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, room.ErrDuplicateRoom):
		return msgRoomExists
	case errors.Is(err, room.ErrRoomNotFound):
		return msgRoomMissing
	case errors.Is(err, room.ErrNameCollision):
		return msgNameTaken
	case errors.Is(err, room.ErrNotHost):
		return msgNotHost
	case errors.Is(err, room.ErrGameStarted):
		return msgGameStarted
	case errors.Is(err, room.ErrRoomClosed):
		return msgRoomClosed
	case errors.Is(err, room.ErrNotEnoughPlayers):
		return msgNotEnoughPlayers
	}
	return err.Error()
}
