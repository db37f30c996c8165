package protocol

import (
	"encoding/json"
	"net"
	"os"
	"testing"
	"time"

	"github.com/tourneyhub/roomserver/broadcast"
	"github.com/tourneyhub/roomserver/logger"
	"github.com/tourneyhub/roomserver/models"
	"github.com/tourneyhub/roomserver/network"
	"github.com/tourneyhub/roomserver/room"
	"github.com/tourneyhub/roomserver/session"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// sentEvent is one frame captured by MockConnection.
type sentEvent struct {
	Name string
	Data json.RawMessage
	Ack  uint32
}

// MockConnection is a test double for the network.Connection interface that
// records everything sent through it.
type MockConnection struct {
	sent []sentEvent
}

func (m *MockConnection) Send(event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	m.sent = append(m.sent, sentEvent{Name: event, Data: raw})
	return nil
}

func (m *MockConnection) SendAck(id uint32, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	m.sent = append(m.sent, sentEvent{Name: network.EventAck, Data: raw, Ack: id})
	return nil
}

func (m *MockConnection) ReadEvent() (*network.Event, error)  { return nil, nil }
func (m *MockConnection) Close() error                        { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration) {}

// last returns the most recent frame with the given event name.
func (m *MockConnection) last(t *testing.T, event string) sentEvent {
	t.Helper()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Name == event {
			return m.sent[i]
		}
	}
	t.Fatalf("No %q event was sent; got %d frames", event, len(m.sent))
	return sentEvent{}
}

func (m *MockConnection) count(event string) int {
	n := 0
	for _, ev := range m.sent {
		if ev.Name == event {
			n++
		}
	}
	return n
}

// MockEngine records game-start handoffs.
type MockEngine struct {
	started []string
}

func (e *MockEngine) GameStarted(roomID string, roster *models.RoomSnapshot) {
	e.started = append(e.started, roomID)
}

type testRig struct {
	router   *Router
	registry *room.Registry
	sessions *session.Manager
	engine   *MockEngine
}

func newTestRig(minPlayers int) *testRig {
	sessions := session.NewManager()
	broadcaster := broadcast.NewRoomBroadcaster(sessions)
	registry := room.NewRegistry(minPlayers, broadcaster)
	eng := &MockEngine{}
	return &testRig{
		router:   NewRouter(registry, sessions, eng),
		registry: registry,
		sessions: sessions,
		engine:   eng,
	}
}

func (rig *testRig) connect(id string) (*session.Session, *MockConnection) {
	conn := &MockConnection{}
	sess := session.NewSession(id, conn)
	rig.sessions.Add(sess)
	return sess, conn
}

func event(name string, data interface{}, ack uint32) *network.Event {
	raw, _ := json.Marshal(data)
	return &network.Event{Name: name, Data: raw, Ack: ack}
}

func createRoomEvent(roomID, name, level string) *network.Event {
	return event(network.EventCreateRoom, models.RoomRequest{
		RoomID: roomID,
		Player: models.PlayerInfo{Name: name, Level: level},
	}, 0)
}

func joinRoomEvent(roomID, name, level string, spectator bool) *network.Event {
	return event(network.EventJoinRoom, models.RoomRequest{
		RoomID: roomID,
		Player: models.PlayerInfo{Name: name, Level: level, IsSpectator: spectator},
	}, 0)
}

func decodeSnapshot(t *testing.T, ev sentEvent) models.RoomSnapshot {
	t.Helper()
	var snap models.RoomSnapshot
	if err := json.Unmarshal(ev.Data, &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	return snap
}

func decodeString(t *testing.T, ev sentEvent) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(ev.Data, &s); err != nil {
		t.Fatalf("Failed to decode string payload: %v", err)
	}
	return s
}

func TestCreateRoom(t *testing.T) {
	rig := newTestRig(1)
	sess, conn := rig.connect("sock-alice")

	rig.router.HandleEvent(sess, createRoomEvent("room-abc", "Alice", "5"))

	snap := decodeSnapshot(t, conn.last(t, network.EventRoomUpdate))
	if len(snap.Players) != 1 || snap.Players[0].Name != "Alice" {
		t.Fatalf("Expected players=[Alice], got %+v", snap.Players)
	}
	if snap.Host != "Alice" {
		t.Errorf("Expected host Alice, got %s", snap.Host)
	}
	if snap.Players[0].ID != "sock-alice" || snap.Players[0].Level != "5" {
		t.Errorf("Unexpected player view: %+v", snap.Players[0])
	}
}

func TestCreateRoom_DuplicateID(t *testing.T) {
	rig := newTestRig(1)
	alice, _ := rig.connect("sock-alice")
	bob, bobConn := rig.connect("sock-bob")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	rig.router.HandleEvent(bob, createRoomEvent("room-abc", "Bob", "3"))

	msg := decodeString(t, bobConn.last(t, network.EventCreateError))
	if msg != "Room already exists" {
		t.Errorf("Unexpected create-error message: %q", msg)
	}
	if roomID, _, _ := bob.Association(); roomID != "" {
		t.Error("A failed create must not associate the connection")
	}
}

func TestJoinRoom_BroadcastsToEveryone(t *testing.T) {
	rig := newTestRig(1)
	alice, aliceConn := rig.connect("sock-alice")
	bob, bobConn := rig.connect("sock-bob")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	rig.router.HandleEvent(bob, joinRoomEvent("room-abc", "Bob", "3", false))

	for _, conn := range []*MockConnection{aliceConn, bobConn} {
		snap := decodeSnapshot(t, conn.last(t, network.EventRoomUpdate))
		if len(snap.Players) != 2 {
			t.Fatalf("Expected 2 players, got %+v", snap.Players)
		}
		if snap.Players[0].Name != "Alice" || snap.Players[1].Name != "Bob" {
			t.Errorf("Join order not preserved: %+v", snap.Players)
		}
		if snap.Host != "Alice" {
			t.Errorf("Host must be unchanged, got %s", snap.Host)
		}
	}
}

func TestJoinRoom_MissingRoom(t *testing.T) {
	rig := newTestRig(1)
	sess, conn := rig.connect("sock-bob")

	rig.router.HandleEvent(sess, joinRoomEvent("room-xyz", "Bob", "3", false))

	msg := decodeString(t, conn.last(t, network.EventJoinError))
	if msg != "Room does not exist" {
		t.Errorf("Unexpected join-error message: %q", msg)
	}
}

func TestJoinRoom_NameCollision(t *testing.T) {
	rig := newTestRig(1)
	alice, _ := rig.connect("sock-alice")
	fake, fakeConn := rig.connect("sock-fake")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	// Same name but a different role is a collision, not a re-join.
	rig.router.HandleEvent(fake, joinRoomEvent("room-abc", "Alice", "", true))

	msg := decodeString(t, fakeConn.last(t, network.EventJoinError))
	if msg != "Name already taken" {
		t.Errorf("Unexpected join-error message: %q", msg)
	}
	if roomID, _, _ := fake.Association(); roomID != "" {
		t.Error("A failed join must not leave an association behind")
	}
}

func TestJoinRoom_FailedJoinKeepsExistingAssociation(t *testing.T) {
	rig := newTestRig(1)
	alice, aliceConn := rig.connect("sock-alice")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	// Same name with a different role is rejected; the requester's current
	// association must survive the failure untouched.
	rig.router.HandleEvent(alice, joinRoomEvent("room-abc", "Alice", "", true))

	msg := decodeString(t, aliceConn.last(t, network.EventJoinError))
	if msg != "Name already taken" {
		t.Errorf("Unexpected join-error message: %q", msg)
	}
	roomID, name, spectator := alice.Association()
	if roomID != "room-abc" || name != "Alice" || spectator {
		t.Fatalf("Failed join must not touch the prior association, got %q %q %v", roomID, name, spectator)
	}

	// The preserved association still drives disconnect cleanup: the room's
	// only player disconnecting closes it.
	rig.router.HandleDisconnect(alice)
	if _, exists := rig.registry.Get("room-abc"); exists {
		t.Error("Room should close when its only player disconnects")
	}
}

func TestJoinRoom_FailureInOtherRoomKeepsMembership(t *testing.T) {
	rig := newTestRig(1)
	alice, _ := rig.connect("sock-alice")
	bob, bobConn := rig.connect("sock-bob")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	rig.router.HandleEvent(bob, createRoomEvent("room-b", "Bob", "3"))

	// Bob's failing join elsewhere must leave him bound to his own room.
	rig.router.HandleEvent(bob, joinRoomEvent("room-abc", "Alice", "", true))

	msg := decodeString(t, bobConn.last(t, network.EventJoinError))
	if msg != "Name already taken" {
		t.Errorf("Unexpected join-error message: %q", msg)
	}
	roomID, name, _ := bob.Association()
	if roomID != "room-b" || name != "Bob" {
		t.Fatalf("Expected Bob still bound to room-b, got %q %q", roomID, name)
	}

	rig.router.HandleDisconnect(bob)
	if _, exists := rig.registry.Get("room-b"); exists {
		t.Error("room-b should close when Bob disconnects")
	}
	if _, exists := rig.registry.Get("room-abc"); !exists {
		t.Error("room-abc must be unaffected by Bob's disconnect")
	}
}

func TestJoinRoom_RejoinRebindsConnection(t *testing.T) {
	rig := newTestRig(1)
	alice, _ := rig.connect("sock-alice")
	alice2, conn2 := rig.connect("sock-alice-2")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	rig.router.HandleEvent(alice2, joinRoomEvent("room-abc", "Alice", "5", false))

	snap := decodeSnapshot(t, conn2.last(t, network.EventRoomUpdate))
	if len(snap.Players) != 1 {
		t.Fatalf("Re-join must not duplicate the player, got %+v", snap.Players)
	}
	if snap.Players[0].ID != "sock-alice-2" {
		t.Errorf("Expected the roster rebound to the new connection, got %s", snap.Players[0].ID)
	}

	// The stale connection no longer speaks for Alice; its disconnect must
	// not remove her.
	if roomID, _, _ := alice.Association(); roomID != "" {
		t.Fatal("Old connection should be disassociated after a re-join")
	}
	rig.router.HandleDisconnect(alice)
	rm, exists := rig.registry.Get("room-abc")
	if !exists || rm.PlayerCount() != 1 {
		t.Error("Disconnect of the stale connection must not touch the roster")
	}
}

func TestCheckRoom(t *testing.T) {
	rig := newTestRig(1)
	alice, _ := rig.connect("sock-alice")
	probe, probeConn := rig.connect("sock-probe")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))

	rig.router.HandleEvent(probe, event(network.EventCheckRoom, "room-abc", 7))
	ack := probeConn.last(t, network.EventAck)
	if ack.Ack != 7 || string(ack.Data) != "true" {
		t.Errorf("Expected ack 7 true, got ack=%d data=%s", ack.Ack, ack.Data)
	}

	rig.router.HandleEvent(probe, event(network.EventCheckRoom, "room-xyz", 8))
	ack = probeConn.last(t, network.EventAck)
	if ack.Ack != 8 || string(ack.Data) != "false" {
		t.Errorf("Expected ack 8 false, got ack=%d data=%s", ack.Ack, ack.Data)
	}
}

func TestUpdateRoom_ResendsToCallerOnly(t *testing.T) {
	rig := newTestRig(1)
	alice, aliceConn := rig.connect("sock-alice")
	probe, probeConn := rig.connect("sock-probe")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	before := aliceConn.count(network.EventRoomUpdate)

	rig.router.HandleEvent(probe, event(network.EventUpdateRoom, "room-abc", 0))

	snap := decodeSnapshot(t, probeConn.last(t, network.EventRoomUpdate))
	if len(snap.Players) != 1 || snap.Host != "Alice" {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
	if aliceConn.count(network.EventRoomUpdate) != before {
		t.Error("update-room must not broadcast to other participants")
	}

	// Missing room is a silent no-op.
	sent := len(probeConn.sent)
	rig.router.HandleEvent(probe, event(network.EventUpdateRoom, "room-xyz", 0))
	if len(probeConn.sent) != sent {
		t.Error("update-room for a missing room must send nothing")
	}
}

func TestStartGame_NonHostRejected(t *testing.T) {
	rig := newTestRig(1)
	alice, _ := rig.connect("sock-alice")
	bob, bobConn := rig.connect("sock-bob")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	rig.router.HandleEvent(bob, joinRoomEvent("room-abc", "Bob", "3", false))

	rig.router.HandleEvent(bob, event(network.EventStartGame, "room-abc", 0))

	msg := decodeString(t, bobConn.last(t, network.EventStartError))
	if msg != "Only the host can start the game." {
		t.Errorf("Unexpected start-error message: %q", msg)
	}
	rm, _ := rig.registry.Get("room-abc")
	if rm.State() != room.StateOpen {
		t.Errorf("Room must stay open after a rejected start, got %s", rm.State())
	}
	if len(rig.engine.started) != 0 {
		t.Error("Engine must not be notified on a rejected start")
	}
}

func TestStartGame_HostStarts(t *testing.T) {
	rig := newTestRig(1)
	alice, aliceConn := rig.connect("sock-alice")
	bob, bobConn := rig.connect("sock-bob")
	eve, eveConn := rig.connect("sock-eve")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	rig.router.HandleEvent(bob, joinRoomEvent("room-abc", "Bob", "3", false))
	rig.router.HandleEvent(eve, joinRoomEvent("room-abc", "Eve", "", true))

	rig.router.HandleEvent(alice, event(network.EventStartGame, "room-abc", 0))

	for _, conn := range []*MockConnection{aliceConn, bobConn, eveConn} {
		if conn.count(network.EventGameStart) != 1 {
			t.Errorf("Every associated connection should get exactly one game-start, got %d", conn.count(network.EventGameStart))
		}
	}

	rm, _ := rig.registry.Get("room-abc")
	if rm.State() != room.StateStarted {
		t.Errorf("Expected started state, got %s", rm.State())
	}
	if len(rig.engine.started) != 1 || rig.engine.started[0] != "room-abc" {
		t.Errorf("Engine handoff missing or wrong: %v", rig.engine.started)
	}
}

func TestRemovePlayer_HostElection(t *testing.T) {
	rig := newTestRig(1)
	alice, _ := rig.connect("sock-alice")
	bob, bobConn := rig.connect("sock-bob")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	rig.router.HandleEvent(bob, joinRoomEvent("room-abc", "Bob", "3", false))

	rig.router.HandleEvent(alice, event(network.EventRemovePlayer,
		models.RemoveRequest{RoomID: "room-abc", Name: "Alice"}, 4))

	// Acked true to the requester.
	aliceConn := alice.Conn.(*MockConnection)
	ack := aliceConn.last(t, network.EventAck)
	if ack.Ack != 4 || string(ack.Data) != "true" {
		t.Errorf("Expected ack 4 true, got ack=%d data=%s", ack.Ack, ack.Data)
	}

	snap := decodeSnapshot(t, bobConn.last(t, network.EventRoomUpdate))
	if snap.Host != "Bob" {
		t.Errorf("Expected host Bob after Alice left, got %s", snap.Host)
	}
	if len(snap.Players) != 1 || snap.Players[0].Name != "Bob" {
		t.Errorf("Expected players=[Bob], got %+v", snap.Players)
	}
	if roomID, _, _ := alice.Association(); roomID != "" {
		t.Error("Removed player's connection must be disassociated")
	}
}

func TestRemovePlayer_LastPlayerDestroysRoom(t *testing.T) {
	rig := newTestRig(1)
	alice, aliceConn := rig.connect("sock-alice")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	rig.router.HandleEvent(alice, event(network.EventRemovePlayer,
		models.RemoveRequest{RoomID: "room-abc", Name: "Alice"}, 4))

	if _, exists := rig.registry.Get("room-abc"); exists {
		t.Fatal("Room must be destroyed when the last player leaves")
	}

	rig.router.HandleEvent(alice, event(network.EventCheckRoom, "room-abc", 5))
	ack := aliceConn.last(t, network.EventAck)
	if ack.Ack != 5 || string(ack.Data) != "false" {
		t.Errorf("check-room after destruction should ack false, got %s", ack.Data)
	}
}

func TestRemovePlayer_UnknownName(t *testing.T) {
	rig := newTestRig(1)
	alice, aliceConn := rig.connect("sock-alice")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	rig.router.HandleEvent(alice, event(network.EventRemovePlayer,
		models.RemoveRequest{RoomID: "room-abc", Name: "Mallory"}, 4))

	ack := aliceConn.last(t, network.EventAck)
	if string(ack.Data) != "false" {
		t.Errorf("Expected ack false for an unknown name, got %s", ack.Data)
	}
	msg := decodeString(t, aliceConn.last(t, network.EventRemoveError))
	if msg != "Player not found in room" {
		t.Errorf("Unexpected remove-error message: %q", msg)
	}
}

func TestSpectatorLeaveRoom(t *testing.T) {
	rig := newTestRig(1)
	alice, aliceConn := rig.connect("sock-alice")
	eve, _ := rig.connect("sock-eve")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	rig.router.HandleEvent(eve, joinRoomEvent("room-abc", "Eve", "", true))
	rig.router.HandleEvent(eve, event(network.EventLeaveRoom, "room-abc", 0))

	snap := decodeSnapshot(t, aliceConn.last(t, network.EventRoomUpdate))
	if len(snap.Spectators) != 0 {
		t.Errorf("Expected no spectators after leave-room, got %+v", snap.Spectators)
	}
	if len(snap.Players) != 1 {
		t.Errorf("Players must be untouched by a spectator leave, got %+v", snap.Players)
	}
	if roomID, _, _ := eve.Association(); roomID != "" {
		t.Error("leave-room must disassociate the spectator")
	}
}

func TestSpectatorsAloneDoNotKeepRoomAlive(t *testing.T) {
	rig := newTestRig(1)
	alice, _ := rig.connect("sock-alice")
	eve, eveConn := rig.connect("sock-eve")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	rig.router.HandleEvent(eve, joinRoomEvent("room-abc", "Eve", "", true))
	rig.router.HandleEvent(alice, event(network.EventRemovePlayer,
		models.RemoveRequest{RoomID: "room-abc", Name: "Alice"}, 0))

	if _, exists := rig.registry.Get("room-abc"); exists {
		t.Fatal("Spectators alone must not keep a room alive")
	}

	// The spectator saw the final empty-roster view before losing the
	// association.
	snap := decodeSnapshot(t, eveConn.last(t, network.EventRoomUpdate))
	if len(snap.Players) != 0 || snap.Host != "" {
		t.Errorf("Final snapshot should be empty of players, got %+v", snap)
	}
	if roomID, _, _ := eve.Association(); roomID != "" {
		t.Error("Remaining spectators must be disassociated when the room closes")
	}
}

func TestDisconnectIsImplicitLeave(t *testing.T) {
	rig := newTestRig(1)
	alice, _ := rig.connect("sock-alice")
	bob, bobConn := rig.connect("sock-bob")

	rig.router.HandleEvent(alice, createRoomEvent("room-abc", "Alice", "5"))
	rig.router.HandleEvent(bob, joinRoomEvent("room-abc", "Bob", "3", false))

	rig.router.HandleDisconnect(alice)

	snap := decodeSnapshot(t, bobConn.last(t, network.EventRoomUpdate))
	if snap.Host != "Bob" || len(snap.Players) != 1 {
		t.Errorf("Disconnect should behave like remove-player, got %+v", snap)
	}

	// Unassociated disconnects are a no-op.
	loner, _ := rig.connect("sock-loner")
	rig.router.HandleDisconnect(loner)
}

func TestHeartbeatTouchesSession(t *testing.T) {
	rig := newTestRig(1)
	sess, _ := rig.connect("sock-alice")
	before := sess.LastActive

	time.Sleep(time.Millisecond)
	rig.router.HandleEvent(sess, &network.Event{Name: network.EventHeartbeat})

	if !sess.LastActive.After(before) {
		t.Error("heartbeat should refresh LastActive")
	}
}

func TestUnknownEventIsIgnored(t *testing.T) {
	rig := newTestRig(1)
	sess, conn := rig.connect("sock-alice")

	rig.router.HandleEvent(sess, &network.Event{Name: "no-such-event"})
	if len(conn.sent) != 0 {
		t.Error("Unknown events must not produce replies")
	}
}
