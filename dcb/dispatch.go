package dcb

import (
	"github.com/panjf2000/ants/v2"

	"github.com/skysql-gw/dcbcore/log"
	"github.com/skysql-gw/dcbcore/metrics"
)

// dispatchPool runs protocol-handler read callbacks off the poller
// goroutine that observed the readable event. The poller goroutine only
// hands the DCB to the pool; ops.Read, which may run arbitrary
// protocol/application code (including DCB.Read), never executes inline
// in the poll loop.
var dispatchPool, _ = ants.NewPoolWithFunc(0, dispatchHandler)

func dispatchHandler(v interface{}) {
	d, ok := v.(*DCB)
	if !ok || d == nil {
		return
	}
	runReadLoop(d)
}

func runReadLoop(d *DCB) {
	for {
		if d.ops.Read != nil {
			if err := d.ops.Read(d); err != nil {
				log.Debugf("dcb: dispatched read handler error: %v", err)
				d.Close()
				d.reading.Unlock()
				return
			}
		}
		d.reading.Unlock()
		// A readable event may have arrived while the handler above was
		// still running; re-acquire only if one did, so no event is lost
		// but idle DCBs don't spin.
		if !d.hasPendingRead.CAS(true, false) {
			return
		}
		if !d.reading.TryLock() {
			return
		}
	}
}

// dispatchRead is called from the poller's onRead callback. It ensures
// at most one dispatched read loop runs per DCB at a time; a readable
// event that arrives while a dispatch is already in flight only sets
// the pending flag, so the in-flight loop picks the new data up on its
// next pass instead of two goroutines racing DCB.Read.
func (d *DCB) dispatchRead() error {
	d.hasPendingRead.Store(true)
	if !d.reading.TryLock() {
		return nil
	}
	d.hasPendingRead.Store(false)
	metrics.Add(metrics.TaskAssigned, 1)
	return dispatchPool.Invoke(d)
}
