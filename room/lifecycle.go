package room

import "errors"

// LifecycleState is the coarse state of a room session.
type LifecycleState string

const (
	StateOpen    LifecycleState = "open"    // accepting joins
	StateStarted LifecycleState = "started" // game in progress, no new players
	StateClosed  LifecycleState = "closed"  // terminal, removed from the registry
)

// ErrTransitionNotAllowed is returned for a lifecycle transition outside the
// allowed table.
var ErrTransitionNotAllowed = errors.New("lifecycle transition not allowed")

var transitions = map[LifecycleState][]LifecycleState{
	StateOpen:    {StateStarted, StateClosed},
	StateStarted: {StateClosed},
}

// lifecycle is a minimal state machine. It is not safe for concurrent use;
// the owning Room serializes access through its own mutex.
type lifecycle struct {
	current LifecycleState
}

func newLifecycle() *lifecycle {
	return &lifecycle{current: StateOpen}
}

func (l *lifecycle) Current() LifecycleState {
	return l.current
}

func (l *lifecycle) To(next LifecycleState) error {
	for _, allowed := range transitions[l.current] {
		if allowed == next {
			l.current = next
			return nil
		}
	}
	return ErrTransitionNotAllowed
}
