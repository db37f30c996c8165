// room/room.go
package room

import (
	"sync"
	"time"

	"github.com/tourneyhub/roomserver/models"
)

// Participant is one member of a room, either a player or a spectator.
// Owned exclusively by the room it belongs to.
type Participant struct {
	SessionID string
	Name      string
	Level     string
	Spectator bool
	JoinedAt  time.Time
}

// Room is the state machine for one session: membership, host identity and
// lifecycle state. All mutating methods lock the room, apply the change, and
// hand the post-mutation snapshot to the broadcaster before unlocking, so
// every observer sees exactly one consistent view per mutation and events
// for the same room are serialized.
type Room struct {
	ID         string
	CreatedAt  time.Time
	minPlayers int

	hostName    string
	players     []*Participant
	spectators  []*Participant
	life        *lifecycle
	broadcaster Broadcaster
	mutex       sync.Mutex
}

func newRoom(id string, host *Participant, minPlayers int, broadcaster Broadcaster) *Room {
	host.JoinedAt = time.Now()
	return &Room{
		ID:          id,
		CreatedAt:   time.Now(),
		minPlayers:  minPlayers,
		hostName:    host.Name,
		players:     []*Participant{host},
		life:        newLifecycle(),
		broadcaster: broadcaster,
	}
}

// Announce broadcasts the current snapshot without mutating anything. The
// registry leaves the initial broadcast to the caller so the creating
// connection can be associated first.
func (r *Room) Announce() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.broadcastLocked()
}

// Join adds a participant, or re-binds an existing one when the same name
// joins again (latest connection wins). replaced is the session id the name
// was previously bound to, so the caller can drop the stale association.
func (r *Room) Join(p *Participant) (replaced string, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.life.Current() == StateClosed {
		return "", ErrRoomClosed
	}

	if existing := r.findLocked(p.Name); existing != nil {
		if existing.Spectator != p.Spectator {
			return "", ErrNameCollision
		}
		// Re-join keeps the original roster position.
		replaced = existing.SessionID
		existing.SessionID = p.SessionID
		if p.Level != "" {
			existing.Level = p.Level
		}
		r.broadcastLocked()
		return replaced, nil
	}

	if !p.Spectator && r.life.Current() == StateStarted {
		return "", ErrGameStarted
	}

	p.JoinedAt = time.Now()
	if p.Spectator {
		r.spectators = append(r.spectators, p)
	} else {
		r.players = append(r.players, p)
	}
	r.broadcastLocked()
	return "", nil
}

// Remove deletes the named participant. When the host leaves and players
// remain, the oldest remaining joiner becomes host within the same mutation,
// so no observer ever sees a hostless roster. closed reports that the last
// player left; the caller must then drop the room from the registry.
func (r *Room) Remove(name string) (removed *Participant, closed bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.removeLocked(name)
}

func (r *Room) removeLocked(name string) (removed *Participant, closed bool) {
	for i, p := range r.players {
		if p.Name != name {
			continue
		}
		r.players = append(r.players[:i], r.players[i+1:]...)
		if len(r.players) == 0 {
			r.life.To(StateClosed)
			r.hostName = ""
			r.broadcastLocked()
			return p, true
		}
		if r.hostName == name {
			r.hostName = r.players[0].Name
		}
		r.broadcastLocked()
		return p, false
	}

	for i, p := range r.spectators {
		if p.Name != name {
			continue
		}
		r.spectators = append(r.spectators[:i], r.spectators[i+1:]...)
		r.broadcastLocked()
		return p, false
	}

	return nil, false
}

// RemoveBySession is the disconnect path: it drops whichever participant the
// session was bound to. A stale binding (the name re-joined from another
// connection) is left untouched.
func (r *Room) RemoveBySession(sessionID string) (removed *Participant, closed bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, p := range r.players {
		if p.SessionID == sessionID {
			return r.removeLocked(p.Name)
		}
	}
	for _, p := range r.spectators {
		if p.SessionID == sessionID {
			return r.removeLocked(p.Name)
		}
	}
	return nil, false
}

// Start transitions Open -> Started. Only the current host may start, and
// only with a big enough roster.
func (r *Room) Start(requester string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if requester != r.hostName {
		return ErrNotHost
	}
	if r.life.Current() != StateOpen {
		return ErrGameStarted
	}
	if len(r.players) < r.minPlayers {
		return ErrNotEnoughPlayers
	}

	if err := r.life.To(StateStarted); err != nil {
		return err
	}
	r.broadcaster.GameStart(r.ID, r.snapshotLocked())
	return nil
}

// Snapshot returns the current membership view.
func (r *Room) Snapshot() *models.RoomSnapshot {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.snapshotLocked()
}

func (r *Room) HostName() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.hostName
}

func (r *Room) State() LifecycleState {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.life.Current()
}

func (r *Room) PlayerCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.players)
}

func (r *Room) SpectatorCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.spectators)
}

func (r *Room) findLocked(name string) *Participant {
	for _, p := range r.players {
		if p.Name == name {
			return p
		}
	}
	for _, p := range r.spectators {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *Room) snapshotLocked() *models.RoomSnapshot {
	snap := &models.RoomSnapshot{
		Players:    make([]models.PlayerView, 0, len(r.players)),
		Spectators: make([]models.SpectatorView, 0, len(r.spectators)),
		Host:       r.hostName,
	}
	for _, p := range r.players {
		snap.Players = append(snap.Players, models.PlayerView{
			ID:    p.SessionID,
			Name:  p.Name,
			Level: p.Level,
		})
	}
	for _, p := range r.spectators {
		snap.Spectators = append(snap.Spectators, models.SpectatorView{
			Name:     p.Name,
			SocketID: p.SessionID,
		})
	}
	return snap
}

func (r *Room) broadcastLocked() {
	if r.broadcaster == nil {
		return
	}
	// Delivery errors are the broadcaster's problem; membership state must
	// not depend on whether a peer could be written to.
	r.broadcaster.RoomUpdate(r.ID, r.snapshotLocked())
}
