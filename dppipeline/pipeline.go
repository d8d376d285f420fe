// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: pipeline.go — async DP pipeline
//
// Purpose:
//   - Decouples the walk engine's compute lanes from the network sender: a
//     lane pushes distinguished points as soon as it finds them; the sender
//     pops accumulated batches on its own schedule. PushBatch never blocks;
//     PopBatch waits up to timeout for a first item, then, while the batch
//     is not full, waits further rounds of up to batchingDelay each, until
//     a round passes with nothing new, before sending what it has.
// ─────────────────────────────────────────────────────────────────────────────

package dppipeline

import (
	"sync"
	"time"

	"kangaroo/kmodel"
)

// Pipeline is a thread-safe FIFO queue of distinguished points, with
// producer-threadId/gpuId provenance kept alongside each DP.
type Pipeline struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	queue    []item

	shutdown bool

	totalPushed uint64
	totalPopped uint64
}

type item struct {
	dp       kmodel.DP
	laneID   uint32
	deviceID uint32
}

// New returns an empty, running Pipeline.
func New() *Pipeline {
	p := &Pipeline{}
	p.notEmpty = sync.NewCond(&p.mu)
	return p
}

// Push enqueues a single DP. Never blocks the calling lane beyond the time
// it takes to acquire the internal lock.
func (p *Pipeline) Push(dp kmodel.DP, laneID, deviceID uint32) {
	p.mu.Lock()
	p.queue = append(p.queue, item{dp: dp, laneID: laneID, deviceID: deviceID})
	p.totalPushed++
	p.mu.Unlock()
	p.notEmpty.Signal()
}

// PushBatch enqueues several DPs from the same lane/device in one lock
// acquisition.
func (p *Pipeline) PushBatch(dps []kmodel.DP, laneID, deviceID uint32) {
	if len(dps) == 0 {
		return
	}
	p.mu.Lock()
	for _, dp := range dps {
		p.queue = append(p.queue, item{dp: dp, laneID: laneID, deviceID: deviceID})
	}
	p.totalPushed += uint64(len(dps))
	p.mu.Unlock()
	p.notEmpty.Signal()
}

// PopBatch waits up to timeout for a first DP (returning false if none
// arrives and the pipeline isn't shutting down), then collects everything
// already queued up to maxCount, then — if the batch still isn't full —
// waits up to one extra batchingDelay per round for more to accumulate,
// stopping the instant a round times out or the batch fills.
func (p *Pipeline) PopBatch(maxCount int, timeout, batchingDelay time.Duration) ([]kmodel.DP, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 && !p.shutdown {
		if !p.waitFor(timeout) {
			return nil, false
		}
	}
	if p.shutdown && len(p.queue) == 0 {
		return nil, false
	}

	dps := p.drainLocked(maxCount)

	for len(dps) < maxCount && !p.shutdown {
		if !p.waitFor(batchingDelay) {
			break // batching window elapsed with nothing new
		}
		dps = append(dps, p.drainLocked(maxCount-len(dps))...)
	}

	return dps, len(dps) > 0
}

// drainLocked removes up to n queued DPs. Caller must hold p.mu.
func (p *Pipeline) drainLocked(n int) []kmodel.DP {
	if n > len(p.queue) {
		n = len(p.queue)
	}
	out := make([]kmodel.DP, n)
	for i := 0; i < n; i++ {
		out[i] = p.queue[i].dp
	}
	p.queue = p.queue[n:]
	p.totalPopped += uint64(n)
	return out
}

// waitFor blocks on notEmpty for up to d, returning false on timeout.
// Caller must hold p.mu; it is released while waiting and reacquired
// before returning.
func (p *Pipeline) waitFor(d time.Duration) bool {
	timer := time.AfterFunc(d, func() {
		p.mu.Lock()
		p.notEmpty.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	before := len(p.queue)
	shutdownBefore := p.shutdown
	deadline := time.Now().Add(d)
	for len(p.queue) == before && p.shutdown == shutdownBefore {
		if time.Now().After(deadline) {
			return false
		}
		p.notEmpty.Wait()
	}
	return true
}

// RequestShutdown wakes every waiter; a subsequent PopBatch drains whatever
// remains and then reports false once the queue is empty.
func (p *Pipeline) RequestShutdown() {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()
	p.notEmpty.Broadcast()
}

// Depth returns the number of DPs currently queued.
func (p *Pipeline) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Totals returns the running push/pop counters, for the pipeline
// conservation check: totalPushed == totalPopped + Depth() at any
// quiescent point.
func (p *Pipeline) Totals() (pushed, popped uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalPushed, p.totalPopped
}
