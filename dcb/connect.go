package dcb

// Connect is the single entry point for establishing an outbound
// connection: allocate a request-handler DCB, resolve the named
// protocol module, link the session, call the protocol's Connect to
// obtain an fd, and bump the server's connection counter. Any failure
// along the way runs final-free and returns a nil DCB and an error.
func (m *Manager) Connect(server string, session *Session, protocolName string) (*DCB, error) {
	d := m.Allocate(RequestHandler)

	ops, ok := m.lookupProtocol(protocolName)
	if !ok {
		d.sm.transitionLocked(Disconnected)
		d.finalFree()
		return nil, ErrProtocolNotFound
	}
	d.SetOps(ops)

	if session != nil {
		session.mu.Lock()
		unlinked := session.closed
		session.mu.Unlock()
		if unlinked {
			d.sm.transitionLocked(Disconnected)
			d.finalFree()
			return nil, ErrSessionUnlinked
		}
	}
	d.SetSession(session)

	if d.ops.Connect == nil {
		d.sm.transitionLocked(Disconnected)
		d.finalFree()
		return nil, ErrProtocolNotFound
	}
	fd, err := d.ops.Connect(d, server, session)
	if err != nil {
		d.sm.transitionLocked(Disconnected)
		d.finalFree()
		return nil, err
	}
	d.AttachFD(fd, d.remoteAddr)

	if srv, ok := serverCounters.Load(server); ok {
		srv.(*connCounter).n.Inc()
	} else {
		c := &connCounter{}
		c.n.Inc()
		serverCounters.Store(server, c)
	}

	// Every protocol module gets the same poll-set wiring for free by
	// having this composition call Schedule here once Connect has handed
	// back a live fd.
	if err := d.Schedule(); err != nil {
		d.sm.transitionLocked(Disconnected)
		d.finalFree()
		return nil, err
	}

	return d, nil
}
