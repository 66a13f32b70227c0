package dcb

import "github.com/pkg/errors"

// Sentinel errors returned across the DCB core's entry points (read,
// write, connect). Errors from the fd layer and from protocol callbacks
// are passed through to the caller unchanged alongside these.
var (
	// ErrConnClosed is returned by any operation attempted on a DCB whose
	// fd has already been closed.
	ErrConnClosed = errors.New("dcb: connection closed")

	// ErrInvalidTransition is returned by Schedule when the state machine
	// rejects the move to Polling or Listening.
	ErrInvalidTransition = errors.New("dcb: invalid state transition")

	// ErrProtocolNotFound is returned by Connect when no protocol module
	// is registered under the requested name.
	ErrProtocolNotFound = errors.New("dcb: protocol module not found")

	// ErrSessionUnlinked is returned by Connect when the session was torn
	// down before the DCB could link to it.
	ErrSessionUnlinked = errors.New("dcb: session unlinked before connect")

	// ErrAlreadyZombie names the case of a DCB already on the zombie list.
	// No function in this package returns it: enqueueZombie drops a
	// duplicate insert silently and a repeated Close returns nil.
	ErrAlreadyZombie = errors.New("dcb: already zombied")
)
