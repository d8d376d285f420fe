// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: cpulane.go — goroutine-driven compute lane
//
// Purpose:
//   - The CPU backend: one goroutine round-robins a fixed cohort of
//     kangaroos, stepping each once per sweep, reseeding dead branches in
//     place, and pushing every distinguished point onto the lane's ring.
// ─────────────────────────────────────────────────────────────────────────────

package workerengine

import (
	"math/big"
	"runtime"
	"sync/atomic"

	"kangaroo/control"
	"kangaroo/dedupe"
	"kangaroo/dpring"
	"kangaroo/herd"
	"kangaroo/walk"
)

// CPULane is a Lane backed by a plain Go goroutine sweeping an in-process
// cohort. This is the only backend actually implemented; GPULane documents
// the same contract for a kernel-backed implementation that is out of scope
// here.
type CPULane struct {
	engine  walk.Engine
	cohort  *herd.Cohort
	params  herd.Params
	maxDist *big.Int
	stopped int32 // atomic; set by Stop, checked by Run
}

// NewCPULane builds a lane with cohortSize kangaroos (rounded down to even)
// searching [params.RangeStart, params.RangeEnd) at the given DP difficulty.
// baseKIdx offsets every kIdx this lane ever hands out (initial seed and
// every Restart), so sibling lanes in the same session never reissue the
// same kIdx — RESET_KANGAROO targets exactly one kangaroo in exactly one
// lane.
func NewCPULane(dpBits uint, params herd.Params, cohortSize int, baseKIdx uint64) *CPULane {
	width := new(big.Int).Sub(params.RangeEnd, params.RangeStart)
	return &CPULane{
		engine:  walk.NewEngine(dpBits),
		cohort:  herd.New(cohortSize, params, baseKIdx),
		params:  params,
		maxDist: walk.MaxDistance(width),
	}
}

// Run sweeps the cohort until control.Shutdown or Stop, blocking on a full
// ring rather than dropping a distinguished point.
func (l *CPULane) Run(ring *dpring.Ring) {
	var tracker dedupe.Tracker
	for control.Running() && atomic.LoadInt32(&l.stopped) == 0 {
		for i := range l.cohort.Kangaroos {
			k := &l.cohort.Kangaroos[i]
			out := l.engine.Step(k, &tracker, l.maxDist)
			if out.DeadBranch {
				tracker.Reset(k.KIdx)
				l.cohort.Restart(i, l.params)
				continue
			}
			if out.DP == nil {
				continue
			}
			for !ring.Push(*out.DP) {
				if !control.Running() || atomic.LoadInt32(&l.stopped) != 0 {
					return
				}
				runtime.Gosched()
			}
		}
	}
}

// Stop ends a subsequent or in-flight Run without touching control's global
// running flag, so a Session can retire its lanes across a reconnect.
func (l *CPULane) Stop() {
	atomic.StoreInt32(&l.stopped, 1)
}

// Reset reseeds the kangaroo identified by kIdx, the CPU-side handler for an
// inbound RESET_KANGAROO message.
func (l *CPULane) Reset(kIdx uint64) {
	for i := range l.cohort.Kangaroos {
		if l.cohort.Kangaroos[i].KIdx == kIdx {
			l.cohort.Restart(i, l.params)
			return
		}
	}
}
