// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: table.go — precomputed jump table
//
// Purpose:
//   - Builds the fixed 32-entry jump table J[0..31] = (2^i·G, 2^i) used by
//     every kangaroo's walk step. Built once at startup and shared read-only
//     across every lane.
// ─────────────────────────────────────────────────────────────────────────────

package jump

import (
	"math/big"

	"kangaroo/constants"
	"kangaroo/curve"
	"kangaroo/kmodel"
)

// Entry is one precomputed jump: a point to add and the distance it
// contributes.
type Entry struct {
	Point kmodel.Point
	Delta kmodel.Dist
}

// Table is the full set of jump.Entry, indexed by selector.
type Table [constants.JumpTableSize]Entry

// Build derives J[0..31] = (2^i·G, 2^i), i = 0..31. It is pure and
// deterministic — calling it twice produces byte-identical tables, which is
// what lets two independently started processes walk reproducibly from the
// same (start, herd).
func Build() Table {
	var t Table
	delta := big.NewInt(1)
	for i := 0; i < constants.JumpTableSize; i++ {
		t[i] = Entry{
			Point: curve.ScalarBaseMult(delta),
			Delta: kmodel.DistFromBig(delta),
		}
		delta = new(big.Int).Lsh(delta, 1)
	}
	return t
}

// Select picks the next jump for the given x-coordinate: the low
// JumpSelectorBits bits of x.
func Select(x kmodel.Int) int {
	return int(x[3] & (constants.JumpTableSize - 1))
}
