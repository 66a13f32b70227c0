package dcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTransitionTable verifies property 1: every pair in the legal
// table succeeds and changes state; every other pair fails and leaves
// state unchanged.
func TestTransitionTable(t *testing.T) {
	all := []State{Alloc, Polling, Listening, NoPolling, Zombie, Disconnected, Freed}

	for _, from := range all {
		for _, to := range all {
			sm := &stateMachine{state: from}
			ok, prev := sm.transition(to)
			assert.Equal(t, from, prev)

			legal := legalTransitions[from][to]
			if noOpTo, isNoOp := idempotentNoOps[from]; isNoOp && noOpTo == to {
				assert.True(t, ok, "expected idempotent no-op %s->%s to succeed", from, to)
				assert.Equal(t, from, sm.state, "idempotent no-op must not change state")
				continue
			}
			if legal {
				assert.True(t, ok, "expected %s->%s to succeed", from, to)
				assert.Equal(t, to, sm.state)
			} else {
				assert.False(t, ok, "expected %s->%s to fail", from, to)
				assert.Equal(t, from, sm.state, "illegal transition must not change state")
			}
		}
	}
}

// TestIllegalTransitionScenarioS5 covers scenario S5.
func TestIllegalTransitionScenarioS5(t *testing.T) {
	sm := &stateMachine{state: Disconnected}
	ok, prev := sm.transition(Polling)
	assert.False(t, ok)
	assert.Equal(t, Disconnected, prev)
	assert.Equal(t, Disconnected, sm.state)
}

// TestUndefinedBootstrapAcceptsAnyTarget covers the sentinel bootstrap
// case: UNDEFINED accepts any transition, used only before a DCB's
// state machine has been initialised by allocate.
func TestUndefinedBootstrapAcceptsAnyTarget(t *testing.T) {
	for _, to := range []State{Alloc, Polling, Listening, Zombie, Freed} {
		sm := &stateMachine{state: Undefined}
		ok, prev := sm.transition(to)
		assert.True(t, ok)
		assert.Equal(t, Undefined, prev)
		assert.Equal(t, to, sm.state)
	}
}

func TestStateStringer(t *testing.T) {
	assert.Equal(t, "ALLOC", Alloc.String())
	assert.Equal(t, "UNDEFINED", Undefined.String())
	assert.Equal(t, "ZOMBIE", Zombie.String())
}
