package buffer

import "github.com/pkg/errors"

// ErrNoEnoughData is returned by Skip when the chain holds fewer unread
// bytes than requested.
var ErrNoEnoughData = errors.New("buffer: not enough data")

// Chain is a FIFO sequence of owned byte segments: the write queue and
// read buffer a DCB uses, plus the delay/auth scratch buffers protocol
// modules use during pre-authentication.
type Chain struct {
	head, tail *node
	length     int
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Append gives the chain ownership of b without copying it.
func (c *Chain) Append(b []byte) {
	if len(b) == 0 {
		return
	}
	c.appendNode(wrapNode(b))
}

// AppendCopy copies b into pooled storage owned by the chain, so the
// caller keeps ownership of b and may reuse it.
func (c *Chain) AppendCopy(b []byte) {
	if len(b) == 0 {
		return
	}
	c.appendNode(pooledNode(b))
}

// AppendChain splices other's nodes onto the tail of c in O(1) and
// leaves other empty. Used by the write queue to adopt an entire
// caller-supplied chain without copying, transferring ownership of
// every byte in other to c.
func (c *Chain) AppendChain(other *Chain) {
	if other == nil || other.head == nil {
		return
	}
	if c.tail == nil {
		c.head = other.head
	} else {
		c.tail.next = other.head
	}
	c.tail = other.tail
	c.length += other.length
	other.head, other.tail, other.length = nil, nil, 0
}

// Front returns the unread bytes of the head node without consuming
// them, or nil if the chain is empty. The returned slice is only valid
// until the next mutating call.
func (c *Chain) Front() []byte {
	if c.head == nil {
		return nil
	}
	return c.head.unread()
}

func (c *Chain) appendNode(n *node) {
	if c.tail == nil {
		c.head, c.tail = n, n
	} else {
		c.tail.next = n
		c.tail = n
	}
	c.length += n.len()
}

// Len returns the number of unread bytes buffered in the chain.
func (c *Chain) Len() int {
	return c.length
}

// Empty reports whether the chain holds no unread bytes.
func (c *Chain) Empty() bool {
	return c.length == 0
}

// Segments returns the unread byte slices of each node in order,
// without copying or consuming them.
func (c *Chain) Segments() [][]byte {
	if c.head == nil {
		return nil
	}
	segs := make([][]byte, 0, 4)
	for n := c.head; n != nil; n = n.next {
		if n.len() > 0 {
			segs = append(segs, n.unread())
		}
	}
	return segs
}

// Skip advances the read cursor by n bytes, freeing any node fully
// consumed in the process. It fails if the chain holds fewer than n
// unread bytes, leaving the chain unchanged.
func (c *Chain) Skip(n int) error {
	if n < 0 {
		return errors.New("buffer: negative skip")
	}
	if n > c.length {
		return ErrNoEnoughData
	}
	remaining := n
	for remaining > 0 {
		avail := c.head.len()
		if avail > remaining {
			c.head.r += remaining
			remaining = 0
			break
		}
		remaining -= avail
		consumed := c.head
		c.head = c.head.next
		if c.head == nil {
			c.tail = nil
		}
		freeNode(consumed)
	}
	c.length -= n
	return nil
}

// Peek returns the next n unread bytes without advancing the chain.
// The returned slice is only valid until the next mutating call.
func (c *Chain) Peek(n int) ([]byte, error) {
	if n > c.length {
		return nil, ErrNoEnoughData
	}
	if c.head != nil && c.head.len() >= n {
		return c.head.unread()[:n], nil
	}
	// Spans multiple nodes: fall back to a copy.
	out := make([]byte, 0, n)
	for cur := c.head; cur != nil && len(out) < n; cur = cur.next {
		remain := n - len(out)
		seg := cur.unread()
		if len(seg) > remain {
			seg = seg[:remain]
		}
		out = append(out, seg...)
	}
	return out, nil
}

// Read drains up to len(p) bytes into p, consuming them from the chain.
func (c *Chain) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) && c.head != nil {
		n := copy(p[total:], c.head.unread())
		total += n
		if err := c.Skip(n); err != nil {
			return total, err
		}
	}
	return total, nil
}

// Free releases every node back to the pool and resets the chain to
// empty. Called from DCB.finalFree.
func (c *Chain) Free() {
	for n := c.head; n != nil; {
		next := n.next
		freeNode(n)
		n = next
	}
	c.head, c.tail = nil, nil
	c.length = 0
}
