package dcb

import (
	"sync"
	"sync/atomic"

	"github.com/skysql-gw/dcbcore/internal/locker"
	"github.com/skysql-gw/dcbcore/internal/poller"
	"github.com/skysql-gw/dcbcore/metrics"
)

// Manager owns the registry and zombie list as an explicit value rather
// than module-level singletons, so multiple independent DCB managers —
// e.g. one per test — never share state. It is the entry point for
// allocate, connect, and diagnostics.
type Manager struct {
	pollMgr *poller.PollMgr

	registryMu locker.Locker
	regHead    *DCB
	regTail    *DCB
	regCount   int

	zombieMu locker.Locker
	// zombieHead is also read outside zombieMu, as a dirty fast-path
	// check in ProcessZombies; every write happens under zombieMu, so
	// this is an atomic.Pointer purely to keep that unlocked read
	// race-detector clean, not for synchronization of the list itself.
	zombieHead atomic.Pointer[DCB]

	protocols   sync.Mutex
	protocolTbl map[string]ProtocolOps
}

// NewManager builds a Manager bound to pollMgr. The zombie reaper wires
// itself into pollMgr's per-iteration hook so that ProcessZombies runs
// once per poll loop iteration on every worker goroutine.
func NewManager(pollMgr *poller.PollMgr) *Manager {
	m := &Manager{
		pollMgr:     pollMgr,
		protocolTbl: make(map[string]ProtocolOps),
	}
	pollMgr.SetIterationHook(m.ProcessZombies)
	return m
}

// RegisterProtocol adds a named protocol module to the table Connect
// resolves against.
func (m *Manager) RegisterProtocol(name string, ops ProtocolOps) {
	m.protocols.Lock()
	defer m.protocols.Unlock()
	m.protocolTbl[name] = ops
}

func (m *Manager) lookupProtocol(name string) (ProtocolOps, bool) {
	m.protocols.Lock()
	defer m.protocols.Unlock()
	ops, ok := m.protocolTbl[name]
	return ops, ok
}

// Allocate creates a zero-initialised DCB with the given role, state
// Alloc, and appends it to the tail of the registry. Insertion order is
// not observable, only membership is.
func (m *Manager) Allocate(role Role) *DCB {
	d := newDCB(role, m)
	m.registryMu.Lock()
	if m.regTail == nil {
		m.regHead, m.regTail = d, d
	} else {
		m.regTail.registryNext = d
		m.regTail = d
	}
	m.regCount++
	m.registryMu.Unlock()
	metrics.Add(metrics.DCBAllocs, 1)
	return d
}

// unlink removes d from the registry. Called only from final free.
func (m *Manager) unlink(d *DCB) {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	var prev *DCB
	for cur := m.regHead; cur != nil; cur = cur.registryNext {
		if cur == d {
			if prev == nil {
				m.regHead = cur.registryNext
			} else {
				prev.registryNext = cur.registryNext
			}
			if cur == m.regTail {
				m.regTail = prev
			}
			cur.registryNext = nil
			m.regCount--
			return
		}
		prev = cur
	}
}

// Enumerate walks the registry under the registry lock, invoking visitor
// for each DCB. visitor must not modify the registry.
func (m *Manager) Enumerate(visitor func(*DCB)) {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	for cur := m.regHead; cur != nil; cur = cur.registryNext {
		visitor(cur)
	}
}

// Count returns the number of DCBs currently in the registry.
func (m *Manager) Count() int {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	return m.regCount
}
