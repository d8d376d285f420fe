// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: lane.go — compute lane contract
//
// Purpose:
//   - A Lane owns one cohort of kangaroos and pushes every distinguished
//     point it produces onto its dedicated dpring. Exactly one producer
//     goroutine runs a Lane's Run, matching the ring's SPSC discipline.
// ─────────────────────────────────────────────────────────────────────────────

package workerengine

import "kangaroo/dpring"

// Lane advances a cohort of kangaroos until control.Shutdown or Stop is
// observed, pushing every distinguished point onto ring.
type Lane interface {
	Run(ring *dpring.Ring)

	// Stop ends Run without touching the global control flag, so a Session
	// can retire its own lanes across a reconnect while the process as a
	// whole keeps running.
	Stop()
}
