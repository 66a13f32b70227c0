package mysql

import (
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/skysql-gw/dcbcore/dcb"
	"github.com/skysql-gw/dcbcore/internal/buffer"
	"github.com/skysql-gw/dcbcore/internal/netutil"
	"github.com/skysql-gw/dcbcore/log"
)

// dialTimeout bounds the backend TCP dial in Connect.
const dialTimeout = 5 * time.Second

// connState is the per-connection protocol data stored in
// DCB.SetProtocolData, carrying the fields the demo handshake needs
// beyond what the DCB itself tracks.
type connState struct {
	connID uuid.UUID
}

// Ops is the protocol module registered under a name such as "mysql" via
// protocol.Registry.Register. It sets every dcb.ProtocolOps callback;
// none of them uses the handshake codec in handshake.go.
var Ops = dcb.ProtocolOps{
	Connect:       connect,
	Accept:        accept,
	Read:          read,
	Write:         write,
	Close:         closeConn,
	SessionWrite:  write,
	ErrorHandler:  onError,
	HangupHandler: onHangup,
}

func connect(d *dcb.DCB, server string, session *dcb.Session) (int, error) {
	c, err := net.DialTimeout("tcp", server, dialTimeout)
	if err != nil {
		return 0, errors.Wrap(err, "mysql: dial backend")
	}
	fd, err := netutil.GetFD(c)
	if err != nil {
		c.Close()
		return 0, errors.Wrap(err, "mysql: get backend fd")
	}
	d.SetRemoteAddr(c.RemoteAddr())
	d.SetProtocolData(&connState{connID: uuid.New()})
	return fd, nil
}

func accept(listener *dcb.DCB, d *dcb.DCB) error {
	fd, sa, err := netutil.Accept(listener.FD())
	if err != nil {
		return errors.Wrap(err, "mysql: accept")
	}
	raddr := netutil.SockaddrToTCPOrUnixAddr(sa)
	d.AttachFD(fd, raddr)
	d.SetProtocolData(&connState{connID: uuid.New()})
	return nil
}

func read(d *dcb.DCB) error {
	out := buffer.NewChain()
	n, err := d.Read(out)
	if err != nil {
		return errors.Wrap(err, "mysql: read")
	}
	if n == 0 {
		return d.Close()
	}
	payload, perr := out.Peek(out.Len())
	if perr == nil && len(payload) > 0 {
		// The leading byte of a MySQL command packet's payload is the
		// command opcode; record it for diagnostics.
		d.SetCommand(uint32(payload[0]))
	}
	return nil
}

func write(d *dcb.DCB, p []byte) (int, error) {
	c := buffer.NewChain()
	c.Append(append([]byte(nil), p...))
	if !d.Write(c) {
		return 0, errors.New("mysql: write failed")
	}
	return len(p), nil
}

func closeConn(d *dcb.DCB) error {
	log.Debugf("mysql: connection closed, fd=%d", d.FD())
	return nil
}

func onError(d *dcb.DCB, err error) {
	log.Warnf("mysql: fd=%d error: %v", d.FD(), err)
	d.Close()
}

func onHangup(d *dcb.DCB) {
	d.Close()
}
