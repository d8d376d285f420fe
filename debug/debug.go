// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — cold-path logging helper
//
// Purpose:
//   - Logs infrequent error/state-change paths without pulling in the `log`
//     package's timestamp/flag machinery.
//   - Used only in cold paths: connection state changes, protocol violations,
//     checkpoint rotation, stats ticks.
//
// Notes:
//   - Avoids fmt.Sprintf; writes directly to stderr.
//
// Never invoke in hot loops — use only in failure diagnostics and state
// transitions, never in the per-jump walk step or the DP store's Add.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import "os"

// DropError logs prefix: err. If err is nil, logs just the prefix (used for
// cold-path state tags that carry no error value).
//
//go:nosplit
//go:inline
func DropError(prefix string, err error) {
	if err != nil {
		os.Stderr.WriteString(prefix + ": " + err.Error() + "\n")
		return
	}
	os.Stderr.WriteString(prefix + "\n")
}

// DropMessage logs prefix: message. Used for cold-path diagnostics:
// handshake completion, connection state changes, range reassignment.
//
//go:nosplit
//go:inline
func DropMessage(prefix, message string) {
	os.Stderr.WriteString(prefix + ": " + message + "\n")
}
