//go:build !unix

package server

import "net"

// setSocketBuffers is a no-op on non-unix platforms; golang.org/x/sys/unix
// has no equivalent surface there.
func setSocketBuffers(tc *net.TCPConn) error {
	return nil
}
