package dcb

import "github.com/skysql-gw/dcbcore/metrics"

// Close performs the multi-step close protocol: a state transition into
// NoPolling, removal from the poll set, a snapshot of the live-worker
// mask into the DCB's thread mask, and finally an append to the zombie
// list. It is safe to call more than once and from more than one
// goroutine concurrently: only the caller that wins the state
// transition does any work.
func (d *DCB) Close() error {
	d.sm.Lock()
	ok, _ := d.sm.transition(NoPolling)
	if !ok && d.sm.current() == Listening {
		// The transition table has no direct Listening->NoPolling entry,
		// only Listening->Polling, so take the two legal hops instead of
		// inventing a table entry that isn't there.
		if listenOK, _ := d.sm.transition(Polling); listenOK {
			ok, _ = d.sm.transition(NoPolling)
		}
	}
	d.sm.Unlock()
	if !ok {
		// Another goroutine already closed this DCB (or it is in a state
		// close does not apply to); treat as a no-op.
		return nil
	}

	// Block out any in-flight application-facing Write/Control call and
	// fail all future ones before the fd disappears underneath them.
	d.cl.closeAPIJobs()

	if d.fd != nil {
		// fd.Close both deregisters from the poll set and closes the
		// descriptor; after it returns, no new events dispatch for this
		// DCB.
		d.fd.Close()
	}

	if d.ops.Close != nil {
		d.ops.Close(d)
	}

	if d.reg.pollMgr != nil {
		d.memdata.threadMask.Assign(d.reg.pollMgr.LiveWorkerMask())
	}

	d.enqueueZombie()
	return nil
}

// enqueueZombie appends d to the zombie list and transitions its state
// to Zombie. Duplicate inserts are rejected outright under the
// zombie-list lock.
func (d *DCB) enqueueZombie() {
	m := d.reg
	m.zombieMu.Lock()
	defer m.zombieMu.Unlock()

	if d.sm.current() == Zombie {
		return
	}
	d.memdata.next = m.zombieHead.Load()
	m.zombieHead.Store(d)
	d.sm.transitionLocked(Zombie)
	metrics.Add(metrics.DCBCloses, 1)
	metrics.Set(metrics.DCBZombieDepth, uint64(m.zombieLenLocked()))
}

// zombieLenLocked counts the zombie list. Callers hold zombieMu. The
// list is expected to stay short (bounded by close rate x reap
// latency), so a linear walk for the diagnostics gauge is cheap.
func (m *Manager) zombieLenLocked() int {
	n := 0
	for cur := m.zombieHead.Load(); cur != nil; cur = cur.memdata.next {
		n++
	}
	return n
}

// ProcessZombies is the reaping protocol, invoked by a worker goroutine's
// poll-iteration hook once per iteration after it has finished
// dispatching its events. tid identifies the calling worker.
func (m *Manager) ProcessZombies(tid int) {
	// Dirty-read fast path: the overwhelmingly common case is an empty
	// zombie list, and checking the head pointer without the lock costs
	// nothing when that is true.
	if m.zombieHead.Load() == nil {
		return
	}

	var victims []*DCB

	m.zombieMu.Lock()
	var prev *DCB
	for cur := m.zombieHead.Load(); cur != nil; {
		cur.memdata.threadMask.ClearWorker(tid)
		next := cur.memdata.next
		if cur.memdata.threadMask.IsAllClear() {
			if prev == nil {
				m.zombieHead.Store(next)
			} else {
				prev.memdata.next = next
			}
			cur.memdata.next = nil
			victims = append(victims, cur)
		} else {
			prev = cur
		}
		cur = next
	}
	metrics.Set(metrics.DCBZombieDepth, uint64(m.zombieLenLocked()))
	m.zombieMu.Unlock()

	for _, v := range victims {
		v.reap()
	}
}

// reap runs outside any lock: it moves a fully-drained zombie to
// Disconnected and performs final free.
func (d *DCB) reap() {
	d.sm.transitionLocked(Disconnected)
	d.finalFree()
	metrics.Add(metrics.DCBReapCompletions, 1)
}

// finalFree releases every resource the DCB owns. It must run under no
// DCB lock: it takes the registry lock (via unlink) and the session lock
// (via swapAndClose) but never both of those together with any DCB lock
// held.
func (d *DCB) finalFree() {
	d.reg.unlink(d)

	if d.session != nil {
		d.session.swapAndClose()
	}

	d.writeqMu.Lock()
	d.writeq.Free()
	d.writeqMu.Unlock()

	if d.delayq != nil {
		d.delayqMu.Lock()
		d.delayq.Free()
		d.delayqMu.Unlock()
	}
	if d.authq != nil {
		d.authMu.Lock()
		d.authq.Free()
		d.authMu.Unlock()
	}

	d.session = nil
	d.protocolData = nil
	d.appData = nil
	d.remoteAddr = nil

	d.sm.transitionLocked(Freed)
	metrics.Add(metrics.DCBFinalFrees, 1)
}
