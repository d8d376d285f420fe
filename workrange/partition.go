// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: partition.go — work partitioner
//
// Purpose:
//   - Splits the search interval into fixed-size WorkRanges and hands them
//     out per connecting worker, fingerprinted by CLIENT_ID so a worker that
//     reconnects gets its own range back rather than a fresh one. Ranges
//     whose worker has gone quiet past the grace period are reclaimed and
//     handed to the next new connection instead of carving further into
//     the interval.
// ─────────────────────────────────────────────────────────────────────────────

package workrange

import (
	"math/big"
	"sync"
	"time"

	"kangaroo/kmodel"
	"kangaroo/localidx"
	"kangaroo/pairidx"
)

type rangeEntry struct {
	Range       kmodel.WorkRange
	Fingerprint uint32
	LastSeen    time.Time
}

// Partitioner owns the interval cursor and the full set of handed-out
// ranges. One instance per search.
type Partitioner struct {
	mu sync.Mutex

	chunkSize *big.Int
	rangeEnd  *big.Int
	cursor    *big.Int

	entries   []*rangeEntry
	index     localidx.Hash
	reclaimed []int // indices into entries, available for a new fingerprint
}

// New creates a Partitioner covering [start, end) in chunkSize-wide slices,
// sized for up to maxWorkers concurrent ranges.
func New(start, end, chunkSize *big.Int, maxWorkers int) *Partitioner {
	return &Partitioner{
		chunkSize: new(big.Int).Set(chunkSize),
		rangeEnd:  new(big.Int).Set(end),
		cursor:    new(big.Int).Set(start),
		index:     localidx.New(maxWorkers),
	}
}

func fingerprintOf(clientID [16]byte) uint32 {
	fp := uint32(pairidx.MixClientID(clientID[:]))
	if fp == 0 {
		fp = 1 // 0 is localidx's empty-slot sentinel
	}
	return fp
}

// Assign returns the WorkRange for clientID: its existing range if it has
// one (identity preserved across reconnects), a reclaimed stale range if one
// is available, or a freshly carved chunk. ok is false once the interval is
// exhausted and nothing is reclaimable.
func (p *Partitioner) Assign(clientID [16]byte) (kmodel.WorkRange, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fp := fingerprintOf(clientID)
	if idx, ok := p.index.Get(fp); ok {
		e := p.entries[idx-1]
		e.LastSeen = time.Now()
		return e.Range, true
	}

	if len(p.reclaimed) > 0 {
		i := p.reclaimed[len(p.reclaimed)-1]
		p.reclaimed = p.reclaimed[:len(p.reclaimed)-1]
		e := p.entries[i]
		e.Fingerprint = fp
		e.LastSeen = time.Now()
		p.index.Put(fp, uint32(i+1))
		return e.Range, true
	}

	if p.cursor.Cmp(p.rangeEnd) >= 0 {
		return kmodel.WorkRange{}, false
	}
	start := new(big.Int).Set(p.cursor)
	end := new(big.Int).Add(start, p.chunkSize)
	if end.Cmp(p.rangeEnd) > 0 {
		end = new(big.Int).Set(p.rangeEnd)
	}
	p.cursor.Set(end)

	r := kmodel.WorkRange{
		Start: kmodel.IntFromBig(start),
		End:   kmodel.IntFromBig(end),
	}
	e := &rangeEntry{Range: r, Fingerprint: fp, LastSeen: time.Now()}
	p.entries = append(p.entries, e)
	p.index.Put(fp, uint32(len(p.entries)))
	return r, true
}

// Heartbeat refreshes the last-seen time for clientID's range, e.g. on a
// PING or a STATS message.
func (p *Partitioner) Heartbeat(clientID [16]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fp := fingerprintOf(clientID)
	if idx, ok := p.index.Get(fp); ok {
		p.entries[idx-1].LastSeen = time.Now()
	}
}

// MarkProgress updates the completed fraction for clientID's range (a STATS
// message's self-reported progress).
func (p *Partitioner) MarkProgress(clientID [16]byte, fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fp := fingerprintOf(clientID)
	if idx, ok := p.index.Get(fp); ok {
		p.entries[idx-1].Range.CompletedFraction = fraction
	}
}

// ReapStale scans every range and reclaims those whose worker has not been
// seen within grace, making them available to the next new connection via
// Assign instead of carving further into the interval. Returns the ranges
// reclaimed by this call; the server logs one line per reclaimed range.
func (p *Partitioner) ReapStale(grace time.Duration) []kmodel.WorkRange {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var reclaimed []kmodel.WorkRange
	for i, e := range p.entries {
		if now.Sub(e.LastSeen) >= grace && !alreadyReclaimed(p.reclaimed, i) {
			p.reclaimed = append(p.reclaimed, i)
			reclaimed = append(reclaimed, e.Range)
		}
	}
	return reclaimed
}

func alreadyReclaimed(reclaimed []int, i int) bool {
	for _, r := range reclaimed {
		if r == i {
			return true
		}
	}
	return false
}
