// Package buffer implements the intrusive buffer chain used by a DCB's
// write queue, delay queue, auth queue, and read path: a plain FIFO
// sequence of owned byte segments, pooled through mcache rather than
// allocated fresh per segment.
//
// A Chain is not safe for concurrent use on its own; callers hold the
// DCB's own writeq/delayq/auth lock around every Chain method. Ownership
// of the underlying bytes passes from caller to DCB on write, and from
// DCB to caller on read.
package buffer

import (
	"sync"

	"github.com/bytedance/gopkg/lang/mcache"
)

var nodePool = sync.Pool{
	New: func() any { return &node{} },
}

// node holds one contiguous, already-owned byte segment plus read/write
// cursors into it.
type node struct {
	next    *node
	block   []byte
	r, w    int
	recycle bool
}

func allocNode() *node {
	return nodePool.Get().(*node)
}

func freeNode(n *node) {
	if n == nil {
		return
	}
	if n.recycle {
		mcache.Free(n.block)
	}
	n.next = nil
	n.block = nil
	n.r, n.w = 0, 0
	n.recycle = false
	nodePool.Put(n)
}

// wrapNode makes a node take ownership of an already-allocated slice without
// copying, matching the "unsafe" default of tnet's Write/Writev: the
// caller can no longer mutate b after handing it to the chain.
func wrapNode(b []byte) *node {
	n := allocNode()
	n.block = b
	n.w = len(b)
	n.recycle = false
	return n
}

// pooledNode copies b into a freshly pooled buffer, used by
// Chain.AppendCopy so the copied bytes live in memory the chain can
// recycle.
func pooledNode(b []byte) *node {
	n := allocNode()
	n.block = mcache.Malloc(len(b))
	copy(n.block, b)
	n.w = len(b)
	n.recycle = true
	return n
}

func (n *node) len() int {
	return n.w - n.r
}

func (n *node) unread() []byte {
	return n.block[n.r:n.w]
}
