// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: walk.go — kangaroo walk engine
//
// Purpose:
//   - Advances one kangaroo by exactly one jump: select, hop, accumulate
//     distance, test the distinguished-point predicate, and detect the two
//     dead-branch failure modes (a DP repeat, or a runaway walk).
//
// Notes:
//   - useSymmetry is a single build-time constant, never a per-run flag —
//     the original's KSIZE-11-vs-12 record layout choice is made once, here,
//     for the whole deployment.
// ─────────────────────────────────────────────────────────────────────────────

package walk

import (
	"math/big"

	"kangaroo/constants"
	"kangaroo/curve"
	"kangaroo/dedupe"
	"kangaroo/jump"
	"kangaroo/kmodel"
)

// useSymmetry toggles the y-odd reflection optimization. Fixed at build
// time: mixing symmetric and non-symmetric walks on the same wire silently
// breaks collision detection, so this is never a runtime flag.
const useSymmetry = false

// Engine holds everything a walk step needs that is shared read-only across
// every lane: the jump table and the DP difficulty mask.
type Engine struct {
	Table  jump.Table
	DPMask uint64 // low DPBits bits set; x & DPMask == 0 triggers a DP
}

// NewEngine builds an Engine for the given DP difficulty (low-bit count).
func NewEngine(dpBits uint) Engine {
	return Engine{
		Table:  jump.Build(),
		DPMask: (uint64(1) << dpBits) - 1,
	}
}

// Outcome reports what a single Step produced.
type Outcome struct {
	DP         *kmodel.DP // non-nil if this hop produced a distinguished point
	DeadBranch bool       // true if this kangaroo must be reset with a fresh kIdx
}

// Step advances k by one jump: selects J[j] from the low selector bits of
// k.Pos.X, adds it to k.Pos, accumulates its delta into k.Dist, then checks
// the DP predicate. tracker detects a kangaroo re-emitting the same (x,
// dist) pair; maxDist bounds how far a kangaroo may wander before it is
// considered stuck (2·sqrt(W)·safetyFactor, computed by the caller once per
// worker and reused across steps).
func (e Engine) Step(k *kmodel.Kangaroo, tracker *dedupe.Tracker, maxDist *big.Int) Outcome {
	j := jump.Select(k.Pos.X)
	entry := e.Table[j]

	k.Pos = curve.Add(k.Pos, entry.Point)
	k.Dist = kmodel.DistFromBig(new(big.Int).Add(k.Dist.Big(), entry.Delta.Big()))

	if useSymmetry && isOddY(k.Pos.Y) {
		k.Pos.Y = negateY(k.Pos.Y)
	}

	if k.Dist.Big().Cmp(maxDist) > 0 {
		return Outcome{DeadBranch: true}
	}

	if !isDistinguished(k.Pos.X, e.DPMask) {
		return Outcome{}
	}

	dp := kmodel.DP{X: k.Pos.X, Dist: k.Dist, KIdx: k.KIdx}
	if tracker.Check(k.KIdx, dp.X, dp.Dist) {
		return Outcome{DeadBranch: true}
	}
	return Outcome{DP: &dp}
}

func isDistinguished(x kmodel.Int, mask uint64) bool {
	return x[3]&mask == 0
}

// DPMask returns the wire-level distinguished-point mask for a given
// difficulty: the low dpBits bits of x must be zero.
func DPMask(dpBits uint8) uint64 {
	return (uint64(1) << dpBits) - 1
}

// IsDistinguished reports whether x satisfies the distinguished-point
// predicate at the given difficulty. Exported so a received DP can be
// re-validated against the negotiated dpBits before being trusted.
func IsDistinguished(x kmodel.Int, dpBits uint8) bool {
	return isDistinguished(x, DPMask(dpBits))
}

func isOddY(y kmodel.Int) bool {
	return y[3]&1 == 1
}

// negateY reflects y as p - y over the field prime, used only when
// useSymmetry is enabled.
func negateY(y kmodel.Int) kmodel.Int {
	p := new(big.Int).Sub(fieldPrime, y.Big())
	return kmodel.IntFromBig(p)
}

// fieldPrime is secp256k1's field modulus p = 2^256 - 2^32 - 977.
var fieldPrime = func() *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), 256)
	p.Sub(p, new(big.Int).Lsh(big.NewInt(1), 32))
	p.Sub(p, big.NewInt(977))
	return p
}()

// MaxDistance computes the dead-branch distance bound for an interval of
// width w: 2·sqrt(w)·safetyFactor.
func MaxDistance(w *big.Int) *big.Int {
	sqrtW := new(big.Int).Sqrt(w)
	bound := new(big.Int).Mul(sqrtW, big.NewInt(2*constants.DeadBranchSafetyFactor))
	return bound
}
