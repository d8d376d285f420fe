// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: herd.go — cohort allocation and restart
//
// Purpose:
//   - Allocates a lane's fixed-size kangaroo cohort split 50/50 TAME/WILD,
//     and reseeds a single kangaroo (preserving its herd parity) when the
//     walk engine reports a dead branch.
// ─────────────────────────────────────────────────────────────────────────────

package herd

import (
	"crypto/rand"
	"math/big"

	"kangaroo/curve"
	"kangaroo/kmodel"
)

// Params are the quantities every kangaroo in a search needs to compute its
// initial position: the target point, the wild offset, and the interval
// this lane's cohort walks within.
type Params struct {
	Target     kmodel.Point // P
	WildOffset *big.Int
	RangeStart *big.Int
	RangeEnd   *big.Int
}

// Cohort is a lane's fixed-size kangaroo population plus the next kIdx to
// hand out on restart. nextKIdx starts above any statically assigned index
// so restarts never collide with a cohort member's original identity.
type Cohort struct {
	Kangaroos []kmodel.Kangaroo
	nextKIdx  uint64
}

// New allocates n kangaroos (n rounded down to even so the split is exact),
// split 50/50 by kIdx parity: even kIdx are TAME, odd are WILD.
func New(n int, p Params, baseKIdx uint64) *Cohort {
	n -= n % 2
	c := &Cohort{
		Kangaroos: make([]kmodel.Kangaroo, 0, n),
		nextKIdx:  baseKIdx + uint64(n),
	}
	for i := 0; i < n; i++ {
		kIdx := baseKIdx + uint64(i)
		c.Kangaroos = append(c.Kangaroos, seed(kIdx, p))
	}
	return c
}

// seed computes a kangaroo's initial position and distance from its herd,
// tame starts at start·G with dist=start (here a random
// offset within the range is used as the per-kangaroo start, the usual
// Kangaroo variant, rather than every tame sharing literally the same
// start); wild starts at P − wildOffset·G with dist=0, conceptually —
// Dist is stored directly as the walk's own accumulated distance and
// wildOffset is added back in only at collision-resolution time.
func seed(kIdx uint64, p Params) kmodel.Kangaroo {
	herd := kmodel.HerdOf(kIdx)
	if herd == kmodel.Tame {
		start := randomInRange(p.RangeStart, p.RangeEnd)
		return kmodel.Kangaroo{
			KIdx: kIdx,
			Herd: kmodel.Tame,
			Pos:  curve.ScalarBaseMult(start),
			Dist: kmodel.DistFromBig(start),
		}
	}
	start := randomInRange(big.NewInt(0), new(big.Int).Sub(p.RangeEnd, p.RangeStart))
	negOffset := curve.ModN(new(big.Int).Neg(p.WildOffset))
	wildStart := curve.Add(p.Target, curve.ScalarBaseMult(negOffset))
	return kmodel.Kangaroo{
		KIdx: kIdx,
		Herd: kmodel.Wild,
		Pos:  curve.Add(wildStart, curve.ScalarBaseMult(start)),
		Dist: kmodel.DistFromBig(start),
	}
}

// Restart reseeds the kangaroo at index i with a fresh kIdx, preserving its
// herd parity, the walk engine's dead-branch recovery rule.
func (c *Cohort) Restart(i int, p Params) {
	oldHerd := c.Kangaroos[i].Herd
	kIdx := c.nextKIdx
	c.nextKIdx += 2
	if kmodel.HerdOf(kIdx) != oldHerd {
		kIdx++
		c.nextKIdx++
	}
	c.Kangaroos[i] = seed(kIdx, p)
}

func randomInRange(lo, hi *big.Int) *big.Int {
	span := new(big.Int).Sub(hi, lo)
	if span.Sign() <= 0 {
		return new(big.Int).Set(lo)
	}
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return new(big.Int).Set(lo)
	}
	return n.Add(n, lo)
}
