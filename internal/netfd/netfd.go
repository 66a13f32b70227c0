// Package netfd wraps a connected or listening socket for use by the DCB
// core: poller registration, close-once, and keepalive/nodelay plumbing.
// The DCB core reads and writes one buffer at a time through
// internal/buffer.Chain, so there is no vectored-I/O (Readv/Writev/
// sendmmsg) or UDP path here.
package netfd

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	"github.com/skysql-gw/dcbcore/internal/netutil"
	"github.com/skysql-gw/dcbcore/internal/poller"
)

// ErrClosed is returned by any operation attempted after Close.
var ErrClosed = errors.New("netfd: use of closed file descriptor")

// FD wraps one socket file descriptor plus its poller registration.
type FD struct {
	desc  *poller.Desc
	laddr net.Addr
	raddr net.Addr

	fd     int
	closed atomic.Bool

	// locker makes Close and Control mutually exclusive: the descriptor
	// can only be closed once, and no Control() may run after.
	locker sync.Mutex
}

// New wraps an already-connected or already-accepted fd. laddr/raddr may
// be nil; callers that don't need them (e.g. internal pipes) can omit them.
func New(fd int, laddr, raddr net.Addr) *FD {
	return &FD{fd: fd, laddr: laddr, raddr: raddr}
}

// FD returns the OS file descriptor.
func (nfd *FD) FD() int { return nfd.fd }

// LocalAddr returns the local network address, if known.
func (nfd *FD) LocalAddr() net.Addr { return nfd.laddr }

// RemoteAddr returns the remote network address, if known.
func (nfd *FD) RemoteAddr() net.Addr { return nfd.raddr }

// SetKeepAlive sets the TCP keepalive interval, in seconds.
func (nfd *FD) SetKeepAlive(secs int) error {
	return netutil.SetKeepAlive(nfd.fd, secs)
}

// SetNoDelay toggles TCP_NODELAY.
func (nfd *FD) SetNoDelay(noDelay bool) error {
	var v int
	if noDelay {
		v = 1
	}
	return unix.SetsockoptInt(nfd.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

// Schedule registers the fd with the poll subsystem and starts monitoring
// readability. mgr selects which PollMgr's workers own this fd; passing
// nil falls back to the process-wide default PollMgr.
func (nfd *FD) Schedule(
	mgr *poller.PollMgr,
	onRead func(data interface{}) error,
	onWrite func(data interface{}) error,
	onHup func(data interface{}),
	conn interface{},
) error {
	if nfd.desc != nil {
		return errors.New("netfd: already registered with poller")
	}
	desc := poller.NewDesc()
	desc.Lock()
	desc.FD = nfd.fd
	desc.Data = conn
	desc.OnRead, desc.OnWrite, desc.OnHup = onRead, onWrite, onHup
	desc.Unlock()
	if mgr == nil {
		mgr = poller.DefaultPollMgr()
	}
	if err := desc.PickPollerWithPollMgr(mgr); err != nil {
		poller.FreeDesc(desc)
		return err
	}
	nfd.locker.Lock()
	nfd.desc = desc
	nfd.locker.Unlock()
	return nfd.Control(poller.Readable)
}

// Control registers interest in a poll event for this fd.
func (nfd *FD) Control(event poller.Event) error {
	nfd.locker.Lock()
	defer nfd.locker.Unlock()
	if nfd.closed.Load() {
		return ErrClosed
	}
	if nfd.desc == nil {
		return fmt.Errorf("netfd %d not scheduled with poller", nfd.fd)
	}
	return nfd.desc.Control(event)
}

// Close is safe to call concurrently and more than once; only the first
// call has effect. It removes the fd from the poll set (if scheduled) and
// closes the underlying descriptor. This is the "poll_remove" half of the
// close protocol; the caller is responsible for the state-machine
// transition and zombie-list bookkeeping.
func (nfd *FD) Close() error {
	nfd.locker.Lock()
	defer nfd.locker.Unlock()
	if !nfd.closed.CAS(false, true) {
		return nil
	}
	if nfd.desc != nil {
		nfd.desc.Close()
		poller.FreeDesc(nfd.desc)
		nfd.desc = nil
	}
	return unix.Close(nfd.fd)
}

// Readable returns the number of bytes the kernel currently reports as
// immediately readable on this fd (SIOCINQ/FIONREAD).
func (nfd *FD) Readable() (int, error) {
	n, err := unix.IoctlGetInt(nfd.fd, unix.SIOCINQ)
	if err != nil {
		return 0, os.NewSyscallError("ioctl", err)
	}
	return n, nil
}

// Read performs a single read(2) into p.
func (nfd *FD) Read(p []byte) (int, error) {
	n, err := unix.Read(nfd.fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Write performs a single write(2) of p.
func (nfd *FD) Write(p []byte) (int, error) {
	n, err := unix.Write(nfd.fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// IsEAGAIN reports whether err is EAGAIN or EWOULDBLOCK, the "transient
// I/O" class of spec §7 that the write queue and read path treat as
// success-with-remainder rather than failure.
func IsEAGAIN(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// SockaddrToAddr converts a raw accept()/getsockname() sockaddr into a
// net.Addr, delegating to the shared helper used by the listener path.
func SockaddrToAddr(sa unix.Sockaddr) net.Addr {
	return netutil.SockaddrToTCPOrUnixAddr(sa)
}
