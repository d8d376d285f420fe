// control.go — shared cooperative-cancellation flags for the engine
// ============================================================================
// Every compute lane, the network sender, and the server's connection
// handlers poll these flags once per iteration instead of taking a lock.
// Two independent signals are tracked:
//
//   - running: cleared on graceful shutdown (CLI interrupt, STOP message,
//     drain-and-exit after a found key). Lanes exit promptly once cleared.
//   - found: set the instant the collision resolver verifies a key. Kept
//     separate from running so a lane can tell "we are stopping because we
//     won" from "we are stopping because the operator asked us to".
//
// Both are plain atomics rather than the WebSocket-ingress hot/cooldown
// pattern this package is descended from — a search engine has no idle
// traffic to debounce, just a single edge-triggered stop.
// ============================================================================

package control

import (
	"sync"
	"sync/atomic"
)

var (
	running uint32 = 1
	found   uint32

	// ShutdownWG is held by every long-lived goroutine that must finish its
	// own cleanup (closing a listener, flushing a checkpoint) before the
	// process exits. main's signal handler calls Shutdown, and main waits on
	// it before exiting.
	ShutdownWG sync.WaitGroup
)

// Start resets both flags to their initial running state. Used by tests and
// by long-lived processes that restart a search after a checkpoint load.
//
//go:nosplit
//go:inline
func Start() {
	atomic.StoreUint32(&running, 1)
	atomic.StoreUint32(&found, 0)
}

// Shutdown clears the running flag. Every lane and connection handler
// observes this on its next poll and unwinds.
//
//go:nosplit
//go:inline
func Shutdown() {
	atomic.StoreUint32(&running, 0)
}

// SignalFound marks the terminal FOUND(k) state and clears running, so
// every lane exits via the same path a graceful shutdown would use.
//
//go:nosplit
//go:inline
func SignalFound() {
	atomic.StoreUint32(&found, 1)
	atomic.StoreUint32(&running, 0)
}

// Running reports whether lanes should keep working.
//
//go:nosplit
//go:inline
func Running() bool {
	return atomic.LoadUint32(&running) != 0
}

// Found reports whether the terminal key was already recovered.
//
//go:nosplit
//go:inline
func Found() bool {
	return atomic.LoadUint32(&found) != 0
}

// Flags returns direct pointers to the two coordination words, for callers
// that want to poll without a function-call indirection in a tight loop.
func Flags() (runningFlag, foundFlag *uint32) {
	return &running, &found
}
