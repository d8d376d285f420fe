//go:build unix

// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: socket_unix.go — socket buffer tuning
//
// Purpose:
//   - Widens the kernel send/receive buffers on each accepted connection so a
//     burst DP_BATCH doesn't stall on socket backpressure ahead of the
//     Pipeline's own buffering.
// ─────────────────────────────────────────────────────────────────────────────

package server

import (
	"net"

	"golang.org/x/sys/unix"

	"kangaroo/constants"
)

func setSocketBuffers(tc *net.TCPConn) error {
	raw, err := tc.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, constants.SocketBufferBytes); err != nil {
			sockErr = err
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, constants.SocketBufferBytes); err != nil {
			sockErr = err
			return
		}
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}
