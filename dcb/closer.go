package dcb

import "github.com/skysql-gw/dcbcore/internal/safejob"

// closer guards the application-facing entry points (Write, Control)
// against racing with Close tearing down the fd underneath them. It is
// a narrower concern than the zombie reaper: the reaper protects
// poll-dispatched callbacks already in flight at close time; closer
// protects a caller who invokes Write or Control from outside the poll
// loop concurrently with another goroutine's Close.
type closer struct {
	apiWriteJob safejob.ConcurrentJob
	apiCtrlJob  safejob.ExclusiveBlockJob
}

// beginWrite must be paired with endWrite. Multiple writers may be
// in-flight at once (writeqMu serialises the actual queue mutation);
// what closer adds is that Close cannot proceed past closeAPIJobs while
// any writer is still inside this pair.
func (c *closer) beginWrite() bool { return c.apiWriteJob.Begin() }
func (c *closer) endWrite()        { c.apiWriteJob.End() }

func (c *closer) beginControl() bool { return c.apiCtrlJob.Begin() }
func (c *closer) endControl()        { c.apiCtrlJob.End() }

// closeAPIJobs blocks until any in-flight Write/Control call completes,
// then marks both closed so that every subsequent call fails fast. It
// must run before the fd itself is closed.
func (c *closer) closeAPIJobs() {
	c.apiWriteJob.Close()
	c.apiCtrlJob.Close()
}
