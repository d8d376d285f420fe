// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: recovery.go — client reconnect/backoff policy
//
// Purpose:
//   - Tracks consecutive transient-failure counts for the client's server
//     connection and computes the exponential backoff delay between
//     reconnect attempts, surfacing a fatal failure once the retry budget
//     is exhausted.
// ─────────────────────────────────────────────────────────────────────────────

package recovery

import (
	"errors"
	"time"

	"kangaroo/constants"
)

// ErrRetriesExhausted is returned once TransientRetryLimit consecutive
// failures have occurred without an intervening success.
var ErrRetriesExhausted = errors.New("recovery: transient retry limit exceeded")

// Backoff tracks consecutive transient-failure count and the delay to wait
// before the next reconnect attempt.
type Backoff struct {
	failures int
}

// NewBackoff returns a Backoff starting from zero failures.
func NewBackoff() *Backoff {
	return &Backoff{}
}

// Failed records one transient failure and returns the delay to wait before
// the next attempt, doubling from BackoffInitialSeconds and capping at
// BackoffCapSeconds. Once TransientRetryLimit consecutive failures have
// accumulated, it returns ErrRetriesExhausted instead — the caller must
// treat the connection as fatally lost.
func (b *Backoff) Failed() (time.Duration, error) {
	b.failures++
	if b.failures > constants.TransientRetryLimit {
		return 0, ErrRetriesExhausted
	}
	seconds := constants.BackoffInitialSeconds << uint(b.failures-1)
	if seconds > constants.BackoffCapSeconds {
		seconds = constants.BackoffCapSeconds
	}
	return time.Duration(seconds) * time.Second, nil
}

// Succeeded resets the failure count after a successful reconnect.
func (b *Backoff) Succeeded() {
	b.failures = 0
}

// Failures reports the current consecutive-failure count.
func (b *Backoff) Failures() int {
	return b.failures
}
