package dcb

import "github.com/skysql-gw/dcbcore/internal/locker"

// State is one element of a DCB's lifecycle.
type State int

// The DCB lifecycle states, in the order a healthy DCB passes through
// them: Alloc -> Polling/Listening -> NoPolling -> Zombie -> Disconnected
// -> Freed.
const (
	Undefined State = iota
	Alloc
	Polling
	Listening
	NoPolling
	Zombie
	Disconnected
	Freed
)

func (s State) String() string {
	switch s {
	case Alloc:
		return "ALLOC"
	case Polling:
		return "POLLING"
	case Listening:
		return "LISTENING"
	case NoPolling:
		return "NOPOLLING"
	case Zombie:
		return "ZOMBIE"
	case Disconnected:
		return "DISCONNECTED"
	case Freed:
		return "FREED"
	default:
		return "UNDEFINED"
	}
}

// MarshalText renders the state the same way String does, so a
// map[State]... serializes to JSON with readable keys instead of raw
// integers.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// legalTransitions is the full set of allowed lifecycle moves. A
// transition not listed here is a bug: the caller gets failure and the
// state is unchanged. NoPolling->Polling and Zombie->Polling are
// idempotent no-ops, handled specially in transition rather than here:
// they return success without moving the state.
var legalTransitions = map[State]map[State]bool{
	Alloc:        {Polling: true, Listening: true, Disconnected: true},
	Polling:      {NoPolling: true, Listening: true},
	Listening:    {Polling: true},
	NoPolling:    {Zombie: true},
	Zombie:       {Disconnected: true},
	Disconnected: {Freed: true},
	Freed:        {},
}

// idempotentNoOps lists (from, to) pairs that succeed without changing
// state, so a redundant close() on a DCB that is already mid-teardown is
// safe rather than a bug.
var idempotentNoOps = map[State]State{
	NoPolling: Polling,
	Zombie:    Polling,
}

// stateMachine guards a DCB's state under its init-lock. The init-lock
// also serialises the multi-step close() sequence, so it is exposed as
// Lock/Unlock rather than hidden behind transition.
type stateMachine struct {
	mu    locker.Locker
	state State
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: Alloc}
}

// Lock acquires the DCB's init-lock. Callers use this to hold the lock
// across the multi-step close protocol; transition itself does not lock,
// since it is always called with the lock already held.
func (sm *stateMachine) Lock() { sm.mu.Lock() }

// Unlock releases the DCB's init-lock.
func (sm *stateMachine) Unlock() { sm.mu.Unlock() }

// current returns the state. Callers hold the init-lock.
func (sm *stateMachine) current() State { return sm.state }

// transition attempts to move the state machine to next. It must be
// called with the init-lock held. Returns whether the transition
// succeeded and the state observed immediately before the attempt.
func (sm *stateMachine) transition(next State) (bool, State) {
	prev := sm.state
	if prev == Undefined {
		// Bootstrap only: a zero-value stateMachine starts here;
		// newStateMachine starts at Alloc, so this is never reachable
		// once allocate() has run.
		sm.state = next
		return true, prev
	}
	if to, ok := idempotentNoOps[prev]; ok && to == next {
		return true, prev
	}
	if legalTransitions[prev][next] {
		sm.state = next
		return true, prev
	}
	return false, prev
}

// transitionLocked acquires the init-lock, attempts the transition, and
// releases it. Most callers want this; close() uses Lock/transition/Unlock
// directly because it must hold the lock across more than one step.
func (sm *stateMachine) transitionLocked(next State) (bool, State) {
	sm.Lock()
	defer sm.Unlock()
	return sm.transition(next)
}
