// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: dedupe.go — dead-branch detection for kangaroo walks
//
// Purpose:
//   - Tracks, per kangaroo, the most recent distinguished point it emitted,
//     so the walk engine can detect a kangaroo re-emitting the same (x, dist)
//     pair — the dead-branch signal that means the walk has looped and the
//     kangaroo should be reset with a fresh kIdx.
//
// Notes:
//   - One Tracker belongs to exactly one lane; it is never shared across
//     goroutines, matching the lane-private-cohort ownership rule.
// ─────────────────────────────────────────────────────────────────────────────

package dedupe

import (
	"kangaroo/constants"
	"kangaroo/kmodel"
	"kangaroo/utils"
)

const ringMask = (1 << constants.DeadBranchRingBits) - 1

// Tracker is a lock-free, lane-private ring recording the last DP seen for
// each kangaroo slot.
type Tracker struct {
	buf [1 << constants.DeadBranchRingBits]slot
}

type slot struct {
	kIdx   uint64
	xHi    uint64 // x's two most significant limbs, mixed
	xLo    uint64 // x's two least significant limbs, mixed
	distHi uint64
	distLo uint64
}

// Check reports whether (kIdx, x, dist) is a repeat of the last DP recorded
// for this kIdx. It always records the new observation, so the next Check
// for the same kIdx compares against this one.
func (t *Tracker) Check(kIdx uint64, x kmodel.Int, dist kmodel.Dist) (repeat bool) {
	s := &t.buf[utils.Mix64(kIdx)&ringMask]

	xHi := x[0]<<32 ^ x[1]
	xLo := x[2]<<32 ^ x[3]
	distHi := dist[0]
	distLo := dist[1]<<32 ^ dist[2]

	repeat = s.kIdx == kIdx && s.xHi == xHi && s.xLo == xLo && s.distHi == distHi && s.distLo == distLo

	*s = slot{kIdx: kIdx, xHi: xHi, xLo: xLo, distHi: distHi, distLo: distLo}
	return repeat
}

// Reset clears the recorded observation for kIdx, used when a kangaroo is
// reseeded so its fresh walk is never mistaken for a repeat of its old one.
func (t *Tracker) Reset(kIdx uint64) {
	t.buf[utils.Mix64(kIdx)&ringMask] = slot{}
}
