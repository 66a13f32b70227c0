package router_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skysql-gw/dcbcore/router"
)

func TestSessionReleaseTearsDownAtZero(t *testing.T) {
	var closedID string
	closes := 0
	s := router.NewSession("sess-1", func(id string) {
		closedID = id
		closes++
	})

	s.Release()
	assert.Equal(t, "sess-1", closedID)
	assert.Equal(t, 1, closes)
}

func TestSessionAcquireDelaysTeardown(t *testing.T) {
	closes := 0
	s := router.NewSession("sess-1", func(string) { closes++ })

	// A second DCB (e.g. a backend connection) links to the session.
	s.Acquire()
	s.Release()
	assert.Equal(t, 0, closes, "one outstanding reference must keep the session alive")

	s.Release()
	assert.Equal(t, 1, closes)
}

func TestSessionReleaseRunsOnClosedOnceOnly(t *testing.T) {
	closes := 0
	s := router.NewSession("sess-1", func(string) { closes++ })

	s.Release()
	s.Release()
	s.Release()
	assert.Equal(t, 1, closes, "further Release calls after teardown must be no-ops")
}

func TestInstanceOpenLookupForget(t *testing.T) {
	r := router.NewInstance()

	s := r.Open("sess-1")
	assert.Same(t, s, r.Lookup("sess-1"))

	s.Release()
	assert.Nil(t, r.Lookup("sess-1"), "a fully released session must be forgotten")
}

func TestInstanceCloseSessionReleasesByHandle(t *testing.T) {
	r := router.NewInstance()
	s := r.Open("sess-1")
	s.Acquire() // a second DCB (the one exercising CloseSession below) holds a reference too

	r.CloseSession(s)
	assert.NotNil(t, r.Lookup("sess-1"), "one outstanding reference must keep it registered")

	r.CloseSession(s)
	assert.Nil(t, r.Lookup("sess-1"))
}

func TestInstanceCloseSessionIgnoresForeignHandle(t *testing.T) {
	r := router.NewInstance()
	assert.NotPanics(t, func() {
		r.CloseSession("not-a-session")
		r.CloseSession(nil)
	})
}
