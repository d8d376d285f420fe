// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: ring.go — lock-free SPSC ring for distinguished points
//
// Purpose:
//   - A single-producer/single-consumer ring buffer handing distinguished
//     points from one compute lane to the pipeline stage that batches them
//     for the network sender, without a mutex on the hot path.
//
// Safety model:
//   - SPSC discipline is the caller's responsibility: exactly one goroutine
//     may call Push, exactly one (possibly different) goroutine may call
//     Pop. Concurrent Push calls (or concurrent Pop calls) corrupt state.
// ─────────────────────────────────────────────────────────────────────────────

package dpring

import (
	"sync/atomic"

	"kangaroo/kmodel"
)

// slot holds one queued DP plus its sequence number for lock-free
// availability signaling.
type slot struct {
	val kmodel.DP
	seq uint64
}

// Ring is a fixed-capacity, power-of-two-sized SPSC queue of DPs. Producer
// and consumer cursors are kept on separate cache lines to avoid false
// sharing between the compute lane and the batching consumer.
type Ring struct {
	_    [64]byte
	head uint64 // consumer cursor

	_    [56]byte
	tail uint64 // producer cursor

	_ [56]byte

	mask uint64
	step uint64
	buf  []slot
}

// New creates a ring of the given capacity, which must be a power of two.
func New(size int) *Ring {
	if size <= 0 || size&(size-1) != 0 {
		panic("dpring: size must be >0 and a power of two")
	}
	r := &Ring{
		mask: uint64(size - 1),
		step: uint64(size),
		buf:  make([]slot, size),
	}
	for i := range r.buf {
		r.buf[i].seq = uint64(i)
	}
	return r
}

// Push enqueues one DP. Returns false if the ring is full; the caller (the
// async pipeline's backpressure path) decides whether to drop or stall.
//
//go:nosplit
//go:inline
func (r *Ring) Push(dp kmodel.DP) bool {
	t := r.tail
	s := &r.buf[t&r.mask]
	if atomic.LoadUint64(&s.seq) != t {
		return false
	}
	s.val = dp
	atomic.StoreUint64(&s.seq, t+1)
	r.tail = t + 1
	return true
}

// Pop dequeues the next available DP. ok is false if the ring is empty.
//
//go:nosplit
//go:inline
func (r *Ring) Pop() (dp kmodel.DP, ok bool) {
	h := r.head
	s := &r.buf[h&r.mask]
	if atomic.LoadUint64(&s.seq) != h+1 {
		return kmodel.DP{}, false
	}
	dp = s.val
	atomic.StoreUint64(&s.seq, h+r.step)
	r.head = h + 1
	return dp, true
}
