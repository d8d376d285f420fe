// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: resolve.go — collision resolver
//
// Purpose:
//   - Consumes dpstore.Collision events, computes the candidate discrete log
//     k = (tame.dist − wild.dist + wildOffset) mod n, and verifies k·G == P.
//     On success it publishes the key and signals the terminal FOUND state.
//     On failure it issues a reset directive for the offending WILD
//     kangaroo and keeps going — a wrong collision means the pair only
//     looked like a match at DP granularity, not that the search has failed.
// ─────────────────────────────────────────────────────────────────────────────

package resolve

import (
	"math/big"
	"time"

	"kangaroo/control"
	"kangaroo/curve"
	"kangaroo/dpstore"
	"kangaroo/kmodel"
)

// Resolver holds the fixed quantities needed to turn a DP-level collision
// into a verified discrete log.
type Resolver struct {
	Target     kmodel.Point
	WildOffset *big.Int

	// Resets carries the kIdx of a kangaroo that must be restarted after a
	// failed verification. Buffered so Resolve never blocks waiting for a
	// lane to drain it.
	Resets chan uint64

	Key *big.Int // set once, on success
}

// New builds a Resolver for a fixed target point and wild offset.
func New(target kmodel.Point, wildOffset *big.Int) *Resolver {
	return &Resolver{
		Target:     target,
		WildOffset: wildOffset,
		Resets:     make(chan uint64, 64),
	}
}

// Resolve evaluates one collision event. It returns the recovered key on
// success, or nil after queuing a reset directive on failure.
func (r *Resolver) Resolve(c dpstore.Collision) *big.Int {
	tame := c.TameDist.Big()
	wild := c.WildDist.Big()
	k := curve.AddModN(curve.SubModN(tame, wild), r.WildOffset)

	candidate := curve.ScalarBaseMult(k)
	if !curve.Equal(candidate, r.Target) {
		select {
		case r.Resets <- c.WildKIdx:
		default:
			// Reset queue momentarily full; the same kIdx will keep
			// re-emitting repeat DPs and get caught by the walk engine's
			// own dead-branch detector regardless.
		}
		return nil
	}

	r.Key = k
	control.SignalFound()
	return k
}

// Run drains store.Event until the engine stops or a key is found,
// dispatching each collision to Resolve.
func (r *Resolver) Run(store *dpstore.Store) *big.Int {
	for control.Running() {
		select {
		case c := <-store.Event:
			if k := r.Resolve(c); k != nil {
				return k
			}
		case <-time.After(200 * time.Millisecond):
		}
	}
	return r.Key
}
