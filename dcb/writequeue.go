package dcb

import (
	"github.com/skysql-gw/dcbcore/internal/buffer"
	"github.com/skysql-gw/dcbcore/internal/netfd"
	"github.com/skysql-gw/dcbcore/internal/poller"
	"github.com/skysql-gw/dcbcore/metrics"
)

// Write queues chain for sending. If the queue is already non-empty,
// chain is appended and a future drain will send it. Otherwise this call
// attempts to send immediately; on a short write or EAGAIN, the unsent
// remainder becomes the new queue; on any other error, the remainder is
// retained and Write reports failure.
//
// The whole operation is serialised by writeqMu so that concurrent
// writers never interleave bytes on the wire, and so that Write and
// Drain never race each other. Ownership of chain's bytes passes to the
// DCB regardless of outcome.
func (d *DCB) Write(chain *buffer.Chain) bool {
	if !d.cl.beginWrite() {
		return false
	}
	defer d.cl.endWrite()

	d.writeqMu.Lock()
	defer d.writeqMu.Unlock()

	if !d.writeq.Empty() {
		d.writeq.AppendChain(chain)
		metrics.Add(metrics.TCPWriteNotify, 1)
		d.Stats.BufferedWrites.Inc()
		return true
	}

	ok := d.sendLocked(chain)
	d.Stats.Writes.Inc()
	return ok
}

// sendLocked attempts to send chain's bytes directly on the fd, one
// buffered node at a time. Whatever remains unsent when it stops — on
// EAGAIN, on a fatal error, or because every byte went out — becomes the
// write queue.
func (d *DCB) sendLocked(chain *buffer.Chain) bool {
	ok := true
	if d.fd == nil {
		ok = false
	} else {
		for !chain.Empty() {
			seg := chain.Front()
			n, err := d.fd.Write(seg)
			if n > 0 {
				chain.Skip(n)
			}
			if err != nil {
				if !netfd.IsEAGAIN(err) {
					ok = false
				}
				break
			}
			if n < len(seg) {
				// Short write with no error: the socket buffer is full;
				// stop here and let a future writable event drain the
				// rest, same as an EAGAIN.
				break
			}
		}
	}
	d.writeq = chain
	if ok && !chain.Empty() && d.fd != nil {
		// Bytes remain after a short write or EAGAIN: arm writable
		// interest so Drain runs once the socket has room again.
		d.fd.Control(poller.ModReadWriteable)
	}
	return ok
}

// Drain is called by the poll layer on writable events. It sends
// buffers from the head of the queue until either the queue empties or
// a short/EAGAIN write occurs, and returns the total bytes written in
// this invocation.
func (d *DCB) Drain() (int, error) {
	d.writeqMu.Lock()
	defer d.writeqMu.Unlock()

	if d.fd == nil || d.writeq.Empty() {
		return 0, nil
	}
	total := 0
	for !d.writeq.Empty() {
		seg := d.writeq.Front()
		n, err := d.fd.Write(seg)
		if n > 0 {
			total += n
			d.writeq.Skip(n)
		}
		if err != nil {
			if netfd.IsEAGAIN(err) {
				return total, nil
			}
			return total, err
		}
		if n < len(seg) {
			return total, nil
		}
	}
	// Queue drained: drop back to read-only interest so Drain is not
	// invoked again until the next short write rearms it.
	d.fd.Control(poller.ModReadable)
	return total, nil
}
