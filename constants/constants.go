// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Global engine tunables
//
// Purpose:
//   - Defines process-wide constants for the jump table, DP store sharding,
//     pipeline batching, and network timeouts.
//
// Notes:
//   - No runtime logic here — all values must be compile-time resolvable.
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Jump Table ──────────────────────────────────

const (
	// JumpTableSize is the number of precomputed jump points J[0..31].
	// 32 jumps keep the average stride near 2^16, giving ~√(π·W/2) expected
	// work for an interval of width W.
	JumpTableSize = 32

	// JumpSelectorBits is log2(JumpTableSize); the next jump is chosen by
	// the low 5 bits of the current x-coordinate.
	JumpSelectorBits = 5
)

// ─────────────────────────── DP Store Sharding ─────────────────────────────

const (
	// DefaultBucketBits sets H, the number of high bits of x used to select
	// a bucket. 2^20 buckets balances occupancy histogram resolution against
	// memory (each bucket header is a slice, grown on demand).
	DefaultBucketBits = 20

	// DefaultShardBits sets the number of top-level locks: 2^8 = 256 shards,
	// selected by the top ShardBits of the bucket index, so Add contention
	// scales with worker count rather than DP rate.
	DefaultShardBits = 8
)

// ───────────────────────── Dead-Branch Detection ───────────────────────────

const (
	// DeadBranchRingBits sizes the per-lane ring used to detect a kangaroo
	// re-emitting the same (x, dist) DP twice. 2^12 = 4096 entries is more
	// than the cohort size of any single lane.
	DeadBranchRingBits = 12

	// DeadBranchSafetyFactor bounds how far a kangaroo may wander (as a
	// multiple of 2·sqrt(W)) before it is considered stuck and reset.
	DeadBranchSafetyFactor = 64
)

// ─────────────────────────── Compute Lanes ─────────────────────────────────

const (
	// DefaultCohortSize is the number of kangaroos a single CPU lane walks,
	// split 50/50 TAME/WILD.
	DefaultCohortSize = 1024

	// DefaultDPBits is the distinguished-point difficulty used when a
	// deployment doesn't negotiate its own via ServerHello.
	DefaultDPBits = 20

	// LaneRingSize is the capacity of each lane's dpring, handing DPs off
	// to the async pipeline. Must be a power of two.
	LaneRingSize = 1 << 14

	// LaneKIdxStride reserves this many kIdx values per compute lane
	// (baseKIdx = laneIndex * LaneKIdxStride), so two lanes in the same
	// session never hand out the same kIdx — a RESET_KANGAROO always
	// targets exactly one kangaroo in exactly one lane. 2^32 per lane
	// leaves effectively unbounded headroom for Restart's incrementing
	// allocator within a lane's lifetime.
	LaneKIdxStride = 1 << 32

	// DefaultIntervalBits is the N field a client sends in its ClientHello:
	// the bit width of the chunk it is prepared to search before asking for
	// reassignment. The server's own chunk size (derived from its target
	// interval and worker count) takes precedence when the two disagree.
	DefaultIntervalBits = 24
)

// ────────────────────────── Async DP Pipeline ──────────────────────────────

const (
	// DefaultBatchMax is the largest batch pop_batch will assemble in one call.
	DefaultBatchMax = 4096

	// DefaultBatchingDelayMS is the length of each coalescing wait after the
	// first item arrives; waits repeat while the batch is not full and stop
	// after one that sees no new item.
	DefaultBatchingDelayMS = 50

	// DefaultPopTimeoutMS bounds how long pop_batch waits for the first item.
	DefaultPopTimeoutMS = 1000

	// QueueSoftBound triggers producer backpressure: while pipeline depth
	// exceeds this many DPs, the ring drainers pause, so lanes stall on
	// their full rings.
	QueueSoftBound = 1 << 20
)

// ───────────────────────────── Network Timing ──────────────────────────────

const (
	// DialTimeoutSeconds bounds the initial TCP connect.
	DialTimeoutSeconds = 30

	// IOTimeoutSeconds is not applied to any connection: frame reads and
	// writes carry no deadline, and a dead connection is noticed only when
	// a read or write returns an error.
	IOTimeoutSeconds = 30

	// ReassignGraceSeconds (T_grace) is how long the server waits for a
	// worker to report progress before reissuing its range.
	ReassignGraceSeconds = 120

	// StatsIntervalSeconds controls how often the server logs/persists
	// aggregate statistics.
	StatsIntervalSeconds = 10

	// BackoffInitialSeconds / BackoffCapSeconds bound the client's
	// exponential reconnect backoff (1s → 30s capped).
	BackoffInitialSeconds = 1
	BackoffCapSeconds     = 30

	// TransientRetryLimit is how many consecutive transient network
	// failures are tolerated before the error surfaces upward.
	TransientRetryLimit = 10

	// SocketBufferBytes is the SO_SNDBUF/SO_RCVBUF size requested on every
	// accepted connection, sized for a full DP_BATCH's worth of entries.
	SocketBufferBytes = 1 << 20
)

// ───────────────────────────── Wire Protocol ───────────────────────────────

const (
	// ProtocolMagic identifies the handshake frame; ASCII "KANG".
	ProtocolMagic uint32 = 0x4B414E47

	// ProtocolVersion is the single supported wire version.
	ProtocolVersion uint16 = 1

	// DPWireSize is the exact encoded size of one DistinguishedPoint entry:
	// x(32) + dist(24) + kIdx(8) + pad(4).
	DPWireSize = 68
)
