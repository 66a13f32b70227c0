// Package dcb implements the Descriptor Control Block subsystem: the
// per-socket state object and multi-threaded lifecycle engine a database
// proxy needs to recycle sockets safely while worker goroutines may
// still hold references to them through the poller.
//
// Five collaborating pieces live here: the state machine (state.go), the
// global registry (registry.go), the write queue (writequeue.go), the
// read path (read.go), and the zombie reaper (zombie.go) — the hard
// core, since a DCB must never be freed while a worker goroutine might
// still be mid-dispatch on it.
package dcb

import (
	"net"
	"sync"

	"go.uber.org/atomic"

	"github.com/skysql-gw/dcbcore/internal/bitmask"
	"github.com/skysql-gw/dcbcore/internal/buffer"
	"github.com/skysql-gw/dcbcore/internal/locker"
	"github.com/skysql-gw/dcbcore/internal/netfd"
	"github.com/skysql-gw/dcbcore/internal/poller"
)

// Role classifies what a DCB is for. It is set at allocation and never
// changes.
type Role int

const (
	// RequestHandler is a DCB that serves a client or backend connection.
	RequestHandler Role = iota
	// ListenerRole is a DCB bound to a listening socket.
	ListenerRole
	// Internal is a DCB with no associated socket traffic of its own
	// (timers, control-plane pipes).
	Internal
)

func (r Role) String() string {
	switch r {
	case ListenerRole:
		return "LISTENER"
	case Internal:
		return "INTERNAL"
	default:
		return "REQUEST_HANDLER"
	}
}

// ProtocolOps is the fixed operation table a protocol module registers
// at connect/accept time. It is resolved once and never mutated
// afterward, so reads from worker goroutines need no lock.
type ProtocolOps struct {
	// Connect establishes the underlying connection for dcb and returns
	// its file descriptor.
	Connect func(d *DCB, server string, session *Session) (fd int, err error)
	// Accept is invoked on the fd of listener to populate d with the
	// accepted connection's fd and remote address.
	Accept func(listener *DCB, d *DCB) error
	// Read is invoked by the poll layer on a readable event.
	Read func(d *DCB) error
	// Write is invoked by protocol/application code to send application
	// data; it is expected to call DCB.Write internally.
	Write func(d *DCB, p []byte) (int, error)
	// Close runs protocol-specific teardown during DCB.Close, after the
	// state has left Polling and the fd has been removed from the poll
	// set and closed, and before the DCB joins the zombie list.
	Close func(d *DCB) error
	// SessionWrite is invoked by the router to push data down to the
	// client/backend connection this DCB represents.
	SessionWrite func(d *DCB, p []byte) (int, error)
	// ErrorHandler is invoked when the poll layer reports an error event.
	ErrorHandler func(d *DCB, err error)
	// HangupHandler is invoked when the poll layer reports a hangup.
	HangupHandler func(d *DCB)
}

// Stats are monotonic per-DCB counters. They are updated with atomic
// adds rather than under any DCB lock, since they are advisory
// (diagnostics only) and never gate control flow.
type Stats struct {
	Reads         atomic.Uint64
	Writes        atomic.Uint64
	BufferedWrites atomic.Uint64
	Accepts       atomic.Uint64
}

// Session is the opaque handle a DCB holds to its router session. The
// DCB never dereferences router/session internals directly; it only
// swaps the pointer out under mu and calls Router.CloseSession once.
type Session struct {
	mu             sync.Mutex
	RouterInstance Router
	RouterSession  interface{}
	closed         bool
}

// Router is the minimal callback surface the DCB core needs from the
// router/filter pipeline above it.
type Router interface {
	// CloseSession is called exactly once, during a DCB's final free,
	// with the router_session handle that was linked at connect time.
	CloseSession(routerSession interface{})
}

// swapAndClose atomically detaches the router session from s and invokes
// its close callback at most once. The session owns router_session; the
// DCB holds only a non-owning handle to the session.
func (s *Session) swapAndClose() {
	if s == nil {
		return
	}
	s.mu.Lock()
	already := s.closed
	s.closed = true
	inst, sess := s.RouterInstance, s.RouterSession
	s.RouterSession = nil
	s.mu.Unlock()
	if already || inst == nil {
		return
	}
	inst.CloseSession(sess)
}

// DCB is the Descriptor Control Block: the per-socket state object
// shared between worker goroutines, the registry, and the zombie
// reaper.
type DCB struct {
	// sm guards State and the close-protocol critical sequence. This is
	// the DCB's init-lock.
	sm *stateMachine

	fd   *netfd.FD
	role Role

	// ops is populated once at connect/accept and never mutated
	// afterward; reads from any goroutine are safe without a lock.
	ops ProtocolOps

	// session, protocolData, appData, remoteAddr are opaque owned
	// resources released during final free.
	session      *Session
	protocolData interface{}
	appData      interface{}
	remoteAddr   net.Addr

	// command is the most recent protocol command byte/opcode observed on
	// this DCB, kept for diagnostics.
	command atomic.Uint32

	cl closer

	// reading serialises dispatched read-handler invocations so a slow
	// protocol handler never overlaps with another dispatch for the same
	// DCB; hasPendingRead records a readable event that arrived while a
	// dispatch was already in flight.
	reading        locker.Locker
	hasPendingRead atomic.Bool

	writeqMu sync.Mutex
	writeq   *buffer.Chain

	delayqMu sync.Mutex
	delayq   *buffer.Chain

	authMu sync.Mutex
	authq  *buffer.Chain

	Stats Stats

	// memdata groups the fields that exist purely to support the zombie
	// reaper: the thread mask and the zombie-list link. Mirrors the
	// source's dcb.memdata struct.
	memdata struct {
		threadMask bitmask.Set
		next       *DCB
	}

	// registryNext links the DCB into the global registry; only touched
	// under the registry lock.
	registryNext *DCB

	// reg points back at the manager this DCB was allocated from, so
	// Close/finalFree can reach the registry and zombie list without a
	// package-level singleton.
	reg *Manager
}

// State returns the DCB's current lifecycle state.
func (d *DCB) State() State {
	d.sm.Lock()
	defer d.sm.Unlock()
	return d.sm.current()
}

// FD returns the underlying OS file descriptor, valid only while State is
// one of Polling, Listening, NoPolling, Zombie.
func (d *DCB) FD() int {
	if d.fd == nil {
		return -1
	}
	return d.fd.FD()
}

// Role returns the DCB's immutable role.
func (d *DCB) Role() Role { return d.role }

// Ops returns the DCB's protocol operation table.
func (d *DCB) Ops() *ProtocolOps { return &d.ops }

// SetOps installs the protocol operation table. Called once, at
// connect/accept, before the DCB is reachable from any worker goroutine
// other than the caller.
func (d *DCB) SetOps(ops ProtocolOps) { d.ops = ops }

// Session returns the DCB's linked session handle, or nil.
func (d *DCB) Session() *Session { return d.session }

// SetSession links a session to the DCB. Called once, at connect time.
func (d *DCB) SetSession(s *Session) { d.session = s }

// RemoteAddr returns the peer address recorded at connect/accept time.
func (d *DCB) RemoteAddr() net.Addr { return d.remoteAddr }

// SetRemoteAddr records the peer address. Called by protocol_ops.Connect
// or Accept.
func (d *DCB) SetRemoteAddr(addr net.Addr) { d.remoteAddr = addr }

// ProtocolData returns the opaque protocol-owned data pointer.
func (d *DCB) ProtocolData() interface{} { return d.protocolData }

// SetProtocolData installs the protocol-owned data pointer.
func (d *DCB) SetProtocolData(v interface{}) { d.protocolData = v }

// AppData returns the opaque application-owned data pointer.
func (d *DCB) AppData() interface{} { return d.appData }

// SetAppData installs the application-owned data pointer.
func (d *DCB) SetAppData(v interface{}) { d.appData = v }

// AttachFD gives the DCB ownership of an already-open socket fd. Called
// by a protocol module's Connect or Accept implementation once it has
// established the underlying connection.
func (d *DCB) AttachFD(fd int, raddr net.Addr) {
	d.fd = netfd.New(fd, nil, raddr)
	if raddr != nil {
		d.remoteAddr = raddr
	}
}

// Schedule registers the DCB's fd with the poll subsystem, wiring the
// poller's read/write/hangup callbacks to the DCB's own protocol ops and
// transitioning the state machine to Polling. The connect/listen/accept
// composition in this package calls Schedule once a protocol module's
// Connect or Accept returns a live fd, so every protocol module gets the
// same poll wiring for free without implementing it itself.
func (d *DCB) Schedule() error {
	if d.fd == nil {
		return ErrConnClosed
	}
	var pollMgr *poller.PollMgr
	if d.reg != nil {
		pollMgr = d.reg.pollMgr
	}
	err := d.fd.Schedule(
		pollMgr,
		func(_ interface{}) error {
			if d.role == ListenerRole {
				return d.reg.acceptUntilEmpty(d)
			}
			return d.dispatchRead()
		},
		func(_ interface{}) error {
			_, err := d.Drain()
			return err
		},
		func(_ interface{}) {
			if d.ops.HangupHandler != nil {
				d.ops.HangupHandler(d)
			} else {
				d.Close()
			}
		},
		d,
	)
	if err != nil {
		return err
	}
	target := Polling
	if d.role == ListenerRole {
		target = Listening
	}
	if ok, _ := d.sm.transitionLocked(target); !ok {
		return ErrInvalidTransition
	}
	return nil
}

// Control changes the DCB's registered poll interest (e.g. arming
// Writable once a write comes up short). It fails once Close has run.
func (d *DCB) Control(event poller.Event) error {
	if !d.cl.beginControl() {
		return ErrConnClosed
	}
	defer d.cl.endControl()
	if d.fd == nil {
		return ErrConnClosed
	}
	return d.fd.Control(event)
}

// SetCommand records the most recent protocol command/opcode observed on
// this DCB, for diagnostics.
func (d *DCB) SetCommand(cmd uint32) { d.command.Store(cmd) }

// Command returns the most recently recorded command/opcode.
func (d *DCB) Command() uint32 { return d.command.Load() }

func newDCB(role Role, reg *Manager) *DCB {
	d := &DCB{
		sm:   newStateMachine(),
		role: role,
		reg:  reg,
	}
	d.writeq = buffer.NewChain()
	return d
}
