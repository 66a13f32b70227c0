package dcb

// Listen wraps an already-bound, already-listening fd in a listener DCB
// (role ListenerRole) and schedules it for readable events. Each
// readable event on a listener DCB means one or more pending
// connections; the poller's Schedule wiring calls acceptUntilEmpty,
// which calls Accept in a loop until it fails (EAGAIN once the backlog
// is drained). ops.Read is not called for a listener DCB.
func (m *Manager) Listen(fd int, protocolName string) (*DCB, error) {
	ops, ok := m.lookupProtocol(protocolName)
	if !ok {
		return nil, ErrProtocolNotFound
	}

	d := m.Allocate(ListenerRole)
	d.SetOps(ops)
	d.AttachFD(fd, nil)

	if err := d.Schedule(); err != nil {
		d.sm.transitionLocked(Disconnected)
		d.finalFree()
		return nil, err
	}
	return d, nil
}

// Accept produces a request-handler DCB for a connection accepted on
// listener. It is called by acceptUntilEmpty on each readable event of
// the listener, once per pending connection.
func (m *Manager) Accept(listener *DCB) (*DCB, error) {
	if listener.ops.Accept == nil {
		return nil, ErrProtocolNotFound
	}

	d := m.Allocate(RequestHandler)
	d.SetOps(listener.ops)

	if err := listener.ops.Accept(listener, d); err != nil {
		d.sm.transitionLocked(Disconnected)
		d.finalFree()
		return nil, err
	}
	if err := d.Schedule(); err != nil {
		d.sm.transitionLocked(Disconnected)
		d.finalFree()
		return nil, err
	}
	listener.Stats.Accepts.Inc()
	return d, nil
}

// acceptUntilEmpty drives Accept repeatedly on a readable listener DCB
// until it errors (EAGAIN because the backlog is drained, or a real
// accept failure). The poll layer's level-triggered readable event fires
// again if the backlog still has pending connections when a real error
// cut this call short, so stopping on the first error never strands a
// pending connection.
func (m *Manager) acceptUntilEmpty(listener *DCB) error {
	for {
		if _, err := m.Accept(listener); err != nil {
			return nil
		}
	}
}
