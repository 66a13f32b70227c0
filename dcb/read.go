package dcb

import (
	"github.com/skysql-gw/dcbcore/internal/buffer"
	"github.com/skysql-gw/dcbcore/internal/netfd"
)

// MaxBufferSize bounds the size of any single read(2) the DCB core
// issues from Read.
const MaxBufferSize = 4096

// Read queries the kernel for the number of immediately readable bytes,
// and while that count is positive, reads a buffer sized
// min(count, MaxBufferSize) and appends it to out. It stops on EOF
// (returns bytes read so far), on EAGAIN/EWOULDBLOCK (ditto), or on any
// other error (returns -1). No DCB lock is held across the read(2)
// syscall.
func (d *DCB) Read(out *buffer.Chain) (int, error) {
	if d.fd == nil {
		return 0, ErrConnClosed
	}

	total := 0
	for {
		avail, err := d.fd.Readable()
		if err != nil {
			if netfd.IsEAGAIN(err) {
				break
			}
			return -1, err
		}
		if avail <= 0 {
			break
		}
		size := avail
		if size > MaxBufferSize {
			size = MaxBufferSize
		}
		buf := make([]byte, size)
		n, rerr := d.fd.Read(buf)
		if n > 0 {
			out.Append(buf[:n])
			total += n
			d.Stats.Reads.Inc()
		}
		if rerr != nil {
			if netfd.IsEAGAIN(rerr) {
				break
			}
			return -1, rerr
		}
		if n == 0 {
			// Peer closed: only report this when nothing was read in
			// this call at all.
			if total == 0 {
				return 0, nil
			}
			return total, nil
		}
	}
	return total, nil
}
