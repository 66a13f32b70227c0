// Package router implements the minimal collaborator the DCB core needs
// above it: a Router that receives exactly one CloseSession callback per
// linked DCB, and a Session that refcounts that link. A session is
// shared by a client-facing DCB and, once request routing begins, one or
// more backend DCBs; none of them may trigger the session's real
// teardown while another still holds it.
package router

import (
	"go.uber.org/atomic"

	"github.com/skysql-gw/dcbcore/log"
)

// Session wraps a router-owned session object with a reference count.
// Acquire is called once per DCB linked to the session (typically once
// for the client DCB at connect time, and again for each backend DCB
// opened while routing a request); Release is called once per DCB at
// final free. The underlying resource is torn down exactly once, when
// the count reaches zero.
type Session struct {
	id       string
	refcount atomic.Int64
	onClosed func(id string)
	closed   atomic.Bool
}

// NewSession creates a session with an initial refcount of one,
// representing the DCB that is creating it. onClosed, if non-nil, runs
// exactly once when the last reference is released.
func NewSession(id string, onClosed func(id string)) *Session {
	s := &Session{id: id, onClosed: onClosed}
	s.refcount.Store(1)
	return s
}

// ID returns the session's stable identifier.
func (s *Session) ID() string { return s.id }

// Acquire adds one reference, called when a second DCB (e.g. a backend
// connection opened while routing) links to an already-live session.
func (s *Session) Acquire() {
	s.refcount.Inc()
}

// Release removes one reference. Once the count reaches zero the
// session is torn down exactly once; further Release calls are no-ops.
func (s *Session) Release() {
	if s.refcount.Dec() > 0 {
		return
	}
	if s.closed.CAS(false, true) {
		log.Debugf("router: session %s fully released", s.id)
		if s.onClosed != nil {
			s.onClosed(s.id)
		}
	}
}
