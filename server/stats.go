// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: stats.go — periodic stats persistence
//
// Purpose:
//   - Every StatsIntervalSeconds, snapshots the DP Store's counters and the
//     server's running count of received DPs (written to both the pushed and
//     popped columns) and persists them via statsdb, so a crashed
//     or restarted server can report progress without replaying every DP.
// ─────────────────────────────────────────────────────────────────────────────

package server

import (
	"sync/atomic"
	"time"

	"kangaroo/constants"
	"kangaroo/control"
	"kangaroo/debug"
)

// RunStatsLoop persists a stats row every StatsIntervalSeconds until
// shutdown.
func (s *Server) RunStatsLoop() {
	if s.Stats == nil {
		return
	}
	control.ShutdownWG.Add(1)
	defer control.ShutdownWG.Done()

	ticker := time.NewTicker(time.Duration(constants.StatsIntervalSeconds) * time.Second)
	defer ticker.Stop()
	for control.Running() {
		<-ticker.C
		snap := s.Store.Snapshot()
		received := atomic.LoadUint64(&s.dpReceived)
		if err := s.Stats.Record(time.Now(), snap, received, received); err != nil {
			debug.DropError("record stats", err)
		}
	}
}
