package dcb_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skysql-gw/dcbcore/dcb"
)

// TestConnectProtocolNotFoundRunsFinalFree covers spec.md's connect
// error taxonomy: resolving an unregistered protocol module must free
// the allocated DCB rather than leaking it in the registry.
func TestConnectProtocolNotFoundRunsFinalFree(t *testing.T) {
	m, pm := newTestManager(t)
	defer pm.Close()

	d, err := m.Connect("srv", nil, "does-not-exist")
	assert.Nil(t, d)
	assert.ErrorIs(t, err, dcb.ErrProtocolNotFound)
	assert.Equal(t, 0, m.Count())
}

// TestConnectSessionUnlinkedRunsFinalFree covers the session-unlink
// error path: a session torn down before Connect can link it must still
// leave the DCB fully freed.
func TestConnectSessionUnlinkedRunsFinalFree(t *testing.T) {
	m, pm := newTestManager(t)
	defer pm.Close()

	var peer int
	registerPairProtocol(m, "pair", &peer)

	session := &dcb.Session{}
	// Force the session into its torn-down state before Connect runs, by
	// routing it through a real close first.
	router := closeCounterRouter{ch: make(chan interface{}, 1)}
	session.RouterInstance = router
	d0, err := m.Connect("srv", session, "pair")
	assert.Nil(t, err)
	assert.Nil(t, d0.Close())
	assert.Eventually(t, func() bool { return m.Count() == 0 }, time.Second, time.Millisecond)

	d, err := m.Connect("srv", session, "pair")
	assert.Nil(t, d)
	assert.ErrorIs(t, err, dcb.ErrSessionUnlinked)
	assert.Eventually(t, func() bool { return m.Count() == 0 }, time.Second, time.Millisecond)
}

// TestConnectOpsConnectErrorRunsFinalFree covers the protocol-connect
// failure path: the DCB must be freed, not left dangling in Alloc.
func TestConnectOpsConnectErrorRunsFinalFree(t *testing.T) {
	m, pm := newTestManager(t)
	defer pm.Close()

	m.RegisterProtocol("failer", dcb.ProtocolOps{
		Connect: func(d *dcb.DCB, server string, session *dcb.Session) (int, error) {
			return 0, assert.AnError
		},
	})

	d, err := m.Connect("srv", nil, "failer")
	assert.Nil(t, d)
	assert.Equal(t, assert.AnError, err)
	assert.Equal(t, 0, m.Count())
}
