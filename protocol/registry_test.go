package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skysql-gw/dcbcore/dcb"
	"github.com/skysql-gw/dcbcore/internal/poller"
	"github.com/skysql-gw/dcbcore/protocol"
)

func TestRegistryRegisterMakesProtocolResolvable(t *testing.T) {
	pm, err := poller.NewPollMgr(poller.RoundRobin, 1)
	assert.Nil(t, err)
	defer pm.Close()

	mgr := dcb.NewManager(pm)
	called := false
	protocol.NewRegistry(mgr).Register("demo", dcb.ProtocolOps{
		Connect: func(d *dcb.DCB, server string, session *dcb.Session) (int, error) {
			called = true
			return 0, assert.AnError
		},
	})

	_, err = mgr.Connect("srv", nil, "demo")
	assert.True(t, called, "Connect must resolve the protocol registered under its name")
	assert.Error(t, err)
}

func TestRegistryUnknownProtocolNotFound(t *testing.T) {
	pm, err := poller.NewPollMgr(poller.RoundRobin, 1)
	assert.Nil(t, err)
	defer pm.Close()

	mgr := dcb.NewManager(pm)
	_, err = mgr.Connect("srv", nil, "nope")
	assert.ErrorIs(t, err, dcb.ErrProtocolNotFound)
}
