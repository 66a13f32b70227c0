package router

import "sync"

// Instance is a minimal router implementing dcb.Router: it receives
// exactly one CloseSession call per DCB that was linked to a session via
// dcb.DCB.SetSession, and forwards it to the session's own refcounted
// release. It also keeps a table of live sessions so an embedder can
// look one up by id when routing a new backend connection for an
// existing client session.
type Instance struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewInstance returns an empty router instance.
func NewInstance() *Instance {
	return &Instance{sessions: make(map[string]*Session)}
}

// Open creates and registers a new session with an initial refcount of
// one, held by the DCB that is opening it.
func (r *Instance) Open(id string) *Session {
	s := NewSession(id, r.forget)
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s
}

// Lookup returns the live session for id, or nil if none is registered
// (already fully released, or never opened).
func (r *Instance) Lookup(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

func (r *Instance) forget(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// CloseSession implements dcb.Router. routerSession is expected to be
// the *Session handed to dcb.DCB.SetSession's RouterSession field; any
// other type is ignored, since a DCB with no router session linked never
// calls this at all.
func (r *Instance) CloseSession(routerSession interface{}) {
	s, ok := routerSession.(*Session)
	if !ok || s == nil {
		return
	}
	s.Release()
}
