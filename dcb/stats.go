package dcb

import (
	"sync"

	"go.uber.org/atomic"
)

// connCounter is a per-server atomic connection counter, incremented
// each time Connect successfully establishes an outbound connection to
// that server.
type connCounter struct {
	n atomic.Uint64
}

// serverCounters maps a server name to its connCounter. Module-level
// rather than per-Manager because it tracks outbound connections to
// backend servers shared across any number of independent DCB managers
// a process might run (e.g. per-listener managers sharing one backend
// pool).
var serverCounters sync.Map

// ServerConnections returns the number of successful Connect calls
// recorded for server so far.
func ServerConnections(server string) uint64 {
	if v, ok := serverCounters.Load(server); ok {
		return v.(*connCounter).n.Load()
	}
	return 0
}
