package dcb_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/skysql-gw/dcbcore/dcb"
	"github.com/skysql-gw/dcbcore/internal/buffer"
	"github.com/skysql-gw/dcbcore/internal/poller"
)

// newTestManager builds a Manager on its own PollMgr with two workers
// and no protocols registered; tests add one with registerPairProtocol.
func newTestManager(t *testing.T) (*dcb.Manager, *poller.PollMgr) {
	pm, err := poller.NewPollMgr(poller.RoundRobin, 2)
	assert.Nil(t, err)
	m := dcb.NewManager(pm)
	return m, pm
}

func socketpair(t *testing.T) (a, b int) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	assert.Nil(t, err)
	assert.Nil(t, unix.SetNonblock(fds[0], true))
	assert.Nil(t, unix.SetNonblock(fds[1], true))
	return fds[0], fds[1]
}

// registerPairProtocol registers a protocol whose Connect hands the DCB
// one end of a fresh socketpair and stashes the other end in peerOut.
func registerPairProtocol(m *dcb.Manager, name string, peerOut *int) {
	m.RegisterProtocol(name, dcb.ProtocolOps{
		Connect: func(d *dcb.DCB, server string, session *dcb.Session) (int, error) {
			fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
			if err != nil {
				return 0, err
			}
			unix.SetNonblock(fds[0], true)
			unix.SetNonblock(fds[1], true)
			*peerOut = fds[1]
			return fds[0], nil
		},
		Read: func(d *dcb.DCB) error {
			out := buffer.NewChain()
			_, err := d.Read(out)
			return err
		},
	})
}

// TestScenarioS1SingleThreadRoundTrip covers S1: write, drain, receive
// on the wire, close, and registry cleanup after one reap pass.
func TestScenarioS1SingleThreadRoundTrip(t *testing.T) {
	m, pm := newTestManager(t)
	defer pm.Close()

	var peer int
	registerPairProtocol(m, "pair", &peer)

	d, err := m.Connect("srv", nil, "pair")
	assert.Nil(t, err)
	assert.NotNil(t, d)

	chain := buffer.NewChain()
	chain.Append([]byte("HELLO"))
	assert.True(t, d.Write(chain))

	buf := make([]byte, 5)
	assert.Eventually(t, func() bool {
		n, _ := unix.Read(peer, buf)
		return n == 5
	}, time.Second, time.Millisecond)
	assert.Equal(t, "HELLO", string(buf))

	assert.Nil(t, d.Close())

	assert.Eventually(t, func() bool {
		return m.Count() == 0
	}, time.Second, time.Millisecond)
}

// TestScenarioS5IllegalTransition mirrors S5 through the exported API.
func TestScenarioS5IllegalTransition(t *testing.T) {
	m, pm := newTestManager(t)
	defer pm.Close()

	var peer int
	registerPairProtocol(m, "pair", &peer)
	d, err := m.Connect("srv", nil, "pair")
	assert.Nil(t, err)

	assert.Nil(t, d.Close())
	assert.Eventually(t, func() bool {
		return d.State() == dcb.Disconnected || d.State() == dcb.Freed
	}, time.Second, time.Millisecond)

	// A further Close attempts Freed->NoPolling, which the transition
	// table rejects: Close is a no-op and the state does not move.
	assert.Eventually(t, func() bool { return d.State() == dcb.Freed }, time.Second, time.Millisecond)
	assert.Nil(t, d.Close())
	assert.Equal(t, dcb.Freed, d.State())
}

// TestCloseIdempotence covers property 2: closing twice from the same
// goroutine is safe and only reaps once.
func TestCloseIdempotence(t *testing.T) {
	m, pm := newTestManager(t)
	defer pm.Close()

	var peer int
	registerPairProtocol(m, "pair", &peer)
	d, err := m.Connect("srv", nil, "pair")
	assert.Nil(t, err)

	assert.Nil(t, d.Close())
	assert.Nil(t, d.Close())

	assert.Eventually(t, func() bool {
		return m.Count() == 0
	}, time.Second, time.Millisecond)
}

// TestConcurrentCloseScenarioS3 covers S3: two goroutines racing Close
// on the same DCB observe exactly one real close.
func TestConcurrentCloseScenarioS3(t *testing.T) {
	m, pm := newTestManager(t)
	defer pm.Close()

	var peer int
	registerPairProtocol(m, "pair", &peer)
	d, err := m.Connect("srv", nil, "pair")
	assert.Nil(t, err)

	done := make(chan struct{}, 2)
	go func() { d.Close(); done <- struct{}{} }()
	go func() { d.Close(); done <- struct{}{} }()
	<-done
	<-done

	assert.Eventually(t, func() bool {
		return m.Count() == 0
	}, time.Second, time.Millisecond)
}

// TestSessionCloseCalledOnce verifies Router.CloseSession runs exactly
// once per DCB at final free (the per-worker mask drain itself is
// covered in zombie_test.go).
func TestSessionCloseCalledOnce(t *testing.T) {
	m, pm := newTestManager(t)
	defer pm.Close()

	var peer int
	registerPairProtocol(m, "pair", &peer)

	closed := make(chan interface{}, 4)
	router := closeCounterRouter{ch: closed}
	session := &dcb.Session{RouterInstance: router, RouterSession: "sess-1"}

	d, err := m.Connect("srv", session, "pair")
	assert.Nil(t, err)
	assert.Nil(t, d.Close())

	assert.Eventually(t, func() bool { return len(closed) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "sess-1", <-closed)
}

type closeCounterRouter struct {
	ch chan interface{}
}

func (r closeCounterRouter) CloseSession(routerSession interface{}) {
	r.ch <- routerSession
}

var _ net.Addr = (*net.TCPAddr)(nil)
