// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: store.go — sharded concurrent DP store
//
// Purpose:
//   - The central hash table mapping an x-coordinate fingerprint to its
//     (distance, herd, kIdx) entry, detecting same-herd duplicates and
//     cross-herd collisions, and emitting collision events for (resolve).
//
// Concurrency:
//   - The store is sharded into 2^ShardBits top-level locks, selected by the
//     top bits of the bucket index, so Add contention scales with worker
//     count rather than DP rate — the single point this package exists to
//     get right.
// ─────────────────────────────────────────────────────────────────────────────

package dpstore

import (
	"sort"
	"sync"

	"kangaroo/constants"
	"kangaroo/kmodel"
)

// Kind is the closed set of outcomes Add can return — modeled as a tagged
// variant, never a bare integer code.
type Kind int

const (
	AddOK Kind = iota
	SameHerdDuplicate
	CrossHerdCollision
)

// entry is one stored DP, keyed within its bucket by suffix (see suffixOf).
type entry struct {
	suffix kmodel.Int
	dist   kmodel.Dist
	herd   kmodel.Herd
	kIdx   uint64
}

type bucket struct {
	entries []entry
}

type shard struct {
	mu      sync.Mutex
	buckets map[uint32]*bucket
}

// Collision is a cross-herd event ready for the Collision Resolver.
type Collision struct {
	TameDist, WildDist kmodel.Dist
	TameKIdx, WildKIdx uint64
}

// Store is the full sharded DP table.
type Store struct {
	bucketBits uint
	shardBits  uint
	shards     []shard

	mu    sync.Mutex // guards the counters below only
	ops   stats
	Event chan Collision
}

type stats struct {
	added              uint64
	sameHerdDuplicates uint64
	sameHerdCollisions uint64
	crossHerdEvents    uint64
}

// New builds a Store with 2^bucketBits buckets split across 2^shardBits
// shards. The event channel is buffered so Add never blocks waiting for
// the resolver to drain it.
func New(bucketBits, shardBits uint) *Store {
	s := &Store{
		bucketBits: bucketBits,
		shardBits:  shardBits,
		shards:     make([]shard, 1<<shardBits),
		Event:      make(chan Collision, 1024),
	}
	for i := range s.shards {
		s.shards[i].buckets = make(map[uint32]*bucket)
	}
	return s
}

// NewDefault builds a Store using constants.DefaultBucketBits/ShardBits.
func NewDefault() *Store {
	return New(constants.DefaultBucketBits, constants.DefaultShardBits)
}

func (s *Store) bucketIndex(x kmodel.Int) uint32 {
	// High bits of x select the bucket; x is MSB-first, so the top
	// bucketBits bits live in the high end of limb 0.
	return uint32(x[0] >> (64 - s.bucketBits))
}

func (s *Store) shardIndex(bucketIdx uint32) uint32 {
	return bucketIdx >> (s.bucketBits - s.shardBits)
}

// suffixOf returns the key used for the in-bucket comparator. It is the
// whole x, bucket-index bits included, so the comparator can remain a
// single lexicographic Cmp — correctness
// depends only on every entry in a bucket sharing the same high bits, which
// holds by construction.
func suffixOf(x kmodel.Int) kmodel.Int {
	return x
}

// Add inserts a distinguished point and returns the outcome kind. For
// CrossHerdCollision the resolved pair is delivered on s.Event (dropped if
// the channel is full).
func (s *Store) Add(dp kmodel.DP) Kind {
	herd := dp.Herd()
	bucketIdx := s.bucketIndex(dp.X)
	shIdx := s.shardIndex(bucketIdx)
	sh := &s.shards[shIdx]
	suffix := suffixOf(dp.X)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	b, ok := sh.buckets[bucketIdx]
	if !ok {
		b = &bucket{}
		sh.buckets[bucketIdx] = b
	}

	i := sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].suffix.Cmp(suffix) >= 0
	})

	if i < len(b.entries) && b.entries[i].suffix.Cmp(suffix) == 0 {
		existing := &b.entries[i]
		if existing.herd == herd {
			if existing.dist.Cmp(dp.Dist) == 0 {
				// True duplicate (e.g. a lane resending after reconnect).
				// Re-adding it must leave every observable unchanged from
				// a single Add — no counter bump, no mutation.
				return SameHerdDuplicate
			}
			s.bump(&s.ops.sameHerdCollisions)
			if dp.Dist.Cmp(existing.dist) < 0 {
				existing.dist = dp.Dist
				existing.kIdx = dp.KIdx
			}
			return SameHerdDuplicate
		}

		// Cross-herd collision: existing and the new DP disagree on herd.
		var tameDist, wildDist kmodel.Dist
		var tameKIdx, wildKIdx uint64
		if herd == kmodel.Tame {
			tameDist, tameKIdx = dp.Dist, dp.KIdx
			wildDist, wildKIdx = existing.dist, existing.kIdx
		} else {
			wildDist, wildKIdx = dp.Dist, dp.KIdx
			tameDist, tameKIdx = existing.dist, existing.kIdx
		}
		s.bump(&s.ops.crossHerdEvents)
		evt := Collision{TameDist: tameDist, WildDist: wildDist, TameKIdx: tameKIdx, WildKIdx: wildKIdx}
		select {
		case s.Event <- evt:
		default:
			// Event channel momentarily full; the resolver is falling
			// behind. Drop is safe: the entry stays in the store and the
			// same cross-herd pair will be re-observed on the next
			// matching Add (the detection is monotonic).
		}
		return CrossHerdCollision
	}

	// ADD_OK: insert at the sorted position.
	b.entries = append(b.entries, entry{})
	copy(b.entries[i+1:], b.entries[i:])
	b.entries[i] = entry{suffix: suffix, dist: dp.Dist, herd: herd, kIdx: dp.KIdx}
	s.bump(&s.ops.added)
	return AddOK
}

func (s *Store) bump(counter *uint64) {
	s.mu.Lock()
	*counter++
	s.mu.Unlock()
}

// ExportEntry is one stored DP, flattened for checkpointing: the suffix
// (the whole x) is carried together with its bucket index so it can be
// written and re-imported without reference to a live Store's internal
// bucketing.
type ExportEntry struct {
	BucketIdx uint32
	Suffix    kmodel.Int
	Dist      kmodel.Dist
	Herd      kmodel.Herd
	KIdx      uint64
}

// Export walks every shard and bucket, returning every stored entry grouped
// by bucket index. The result is sorted by bucket index so a checkpoint
// file's layout is deterministic across runs.
func (s *Store) Export() []ExportEntry {
	var out []ExportEntry
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for bucketIdx, b := range sh.buckets {
			for _, e := range b.entries {
				out = append(out, ExportEntry{
					BucketIdx: bucketIdx,
					Suffix:    e.suffix,
					Dist:      e.dist,
					Herd:      e.herd,
					KIdx:      e.kIdx,
				})
			}
		}
		sh.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BucketIdx != out[j].BucketIdx {
			return out[i].BucketIdx < out[j].BucketIdx
		}
		return out[i].Suffix.Cmp(out[j].Suffix) < 0
	})
	return out
}

// Import restores entries from a prior Export into a freshly constructed,
// empty Store. It bypasses the Add collision machinery: a checkpoint is
// trusted to already be collision-free, since it was written from a live
// Store's own (already-resolved) state.
func (s *Store) Import(entries []ExportEntry) {
	for _, e := range entries {
		shIdx := s.shardIndex(e.BucketIdx)
		sh := &s.shards[shIdx]
		sh.mu.Lock()
		b, ok := sh.buckets[e.BucketIdx]
		if !ok {
			b = &bucket{}
			sh.buckets[e.BucketIdx] = b
		}
		b.entries = append(b.entries, entry{suffix: e.Suffix, dist: e.Dist, herd: e.Herd, kIdx: e.KIdx})
		sh.mu.Unlock()
	}
	s.mu.Lock()
	s.ops.added += uint64(len(entries))
	s.mu.Unlock()
}

// Stats is a snapshot of the store's running counters, for the server's
// periodic statistics tick.
type Stats struct {
	Added              uint64
	SameHerdDuplicates uint64
	SameHerdCollisions uint64
	CrossHerdEvents    uint64
	BucketCount        int
}

// Snapshot returns the current counters and the number of non-empty
// buckets across all shards.
func (s *Store) Snapshot() Stats {
	s.mu.Lock()
	snap := Stats{
		Added:              s.ops.added,
		SameHerdDuplicates: s.ops.sameHerdDuplicates,
		SameHerdCollisions: s.ops.sameHerdCollisions,
		CrossHerdEvents:    s.ops.crossHerdEvents,
	}
	s.mu.Unlock()

	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		snap.BucketCount += len(sh.buckets)
		sh.mu.Unlock()
	}
	return snap
}
