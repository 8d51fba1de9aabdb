// Package payload implements the zero-copy, reference-counted broadcast
// buffer: one Block holds a single message's bytes, shared by every
// connection's write queue it is enqueued onto, and freed back to the
// buffer pool once the last queue entry referencing it is consumed.
package payload

import (
	"sync/atomic"

	"github.com/logiclrd/cotcpsrv/internal/bufpool"
)

// Block is a reference-counted, pool-backed byte buffer. A Block is
// created once per broadcast message and Retain'd once per destination
// queue it is enqueued onto; each queue Releases its reference once the
// bytes have been fully written (or the connection is torn down early).
type Block struct {
	data []byte
	refs int32
	pool *bufpool.Pool
}

// NewBlock copies data into a pool-backed buffer with zero references.
// The caller must Retain it before handing out any reference (Enqueue
// does this).
func NewBlock(pool *bufpool.Pool, data []byte) *Block {
	var buf []byte
	if pool != nil {
		buf = pool.Get(len(data))
	} else {
		buf = make([]byte, len(data))
	}
	copy(buf, data)
	return &Block{data: buf, pool: pool}
}

// Bytes returns the block's underlying data. Callers must not retain the
// slice beyond the block's lifetime (it is reused once the pool reclaims
// it).
func (b *Block) Bytes() []byte { return b.data }

// Len returns the number of bytes in the block.
func (b *Block) Len() int { return len(b.data) }

// Retain increments the reference count. Called once per queue entry
// created against this block.
func (b *Block) Retain() { atomic.AddInt32(&b.refs, 1) }

// Release decrements the reference count, returning the backing buffer to
// the pool once the last reference is dropped.
func (b *Block) Release() {
	if atomic.AddInt32(&b.refs, -1) <= 0 {
		if b.pool != nil {
			b.pool.Put(b.data)
		}
		b.data = nil
	}
}
