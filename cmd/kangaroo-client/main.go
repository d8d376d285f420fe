// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: main.go — client worker entry point
//
// Purpose:
//   - CLI surface: `-c -t -gpu -gpuId -w -wi`. Dials the server, negotiates
//     a range, runs CPU/GPU lanes, and reconnects with exponential backoff
//     on transient network failure.
// ─────────────────────────────────────────────────────────────────────────────

package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kangaroo/constants"
	"kangaroo/control"
	"kangaroo/debug"
	"kangaroo/kmodel"
	"kangaroo/recovery"
	"kangaroo/workerengine"
)

const (
	exitSuccess          = 0
	exitUsageError       = 1
	exitIOError          = 2
	exitProtocolError    = 3
	exitGracefulNoResult = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		serverAddr = flag.String("c", "", "server address, host[:port]")
		nThreads   = flag.Int("t", 1, "number of CPU compute lanes")
		useGPU     = flag.Bool("gpu", false, "enable the GPU lane")
		gpuID      = flag.Int("gpuId", 0, "GPU device index")
		_          = flag.String("w", "", "checkpoint file path (unused on the client; accepted for CLI symmetry with the server)")
		_          = flag.Int("wi", 300, "checkpoint interval in seconds (unused on the client)")
	)
	flag.Parse()

	if *serverAddr == "" {
		fmt.Fprintln(os.Stderr, "kangaroo-client: -c <host[:port]> is required")
		return exitUsageError
	}

	control.Start()
	setupSignalHandling()

	clientID := newClientID()
	backoff := recovery.NewBackoff()
	var pending []kmodel.DP // a batch retained across a dropped connection, resent once reconnected

	for control.Running() {
		conn, err := net.DialTimeout("tcp", *serverAddr, time.Duration(constants.DialTimeoutSeconds)*time.Second)
		if err != nil {
			debug.DropError("dial", err)
			if !waitOrStop(backoff) {
				fmt.Fprintln(os.Stderr, "kangaroo-client: giving up after repeated connection failures")
				return exitIOError
			}
			continue
		}

		sess, err := workerengine.Connect(conn, clientID, constants.DefaultIntervalBits, *nThreads)
		if err != nil {
			conn.Close()
			debug.DropError("handshake", err)
			if !waitOrStop(backoff) {
				fmt.Fprintln(os.Stderr, "kangaroo-client: giving up after repeated handshake failures")
				return exitProtocolError
			}
			continue
		}
		backoff.Succeeded()

		if *useGPU {
			debug.DropMessage("GPU", fmt.Sprintf("device %d requested but no kernel backend is built; running CPU lanes only", *gpuID))
		}

		if len(pending) > 0 {
			debug.DropMessage("RESEND", fmt.Sprintf("requeuing %d dp(s) held since the last disconnect", len(pending)))
			sess.Requeue(pending)
			pending = nil
		}

		if err := sess.Run(); err != nil {
			debug.DropError("session", err)
		}
		pending = sess.PendingBatch()
		conn.Close()

		if control.Found() || !control.Running() {
			break
		}
		if !waitOrStop(backoff) {
			fmt.Fprintln(os.Stderr, "kangaroo-client: giving up after repeated disconnects")
			return exitIOError
		}
	}

	control.ShutdownWG.Wait()
	if control.Found() {
		return exitSuccess
	}
	return exitGracefulNoResult
}

// waitOrStop sleeps for the next backoff interval and returns true, or
// returns false once the retry budget is exhausted.
func waitOrStop(b *recovery.Backoff) bool {
	delay, err := b.Failed()
	if err != nil {
		return false
	}
	<-time.After(delay)
	return control.Running()
}

func newClientID() [16]byte {
	var id [16]byte
	if _, err := rand.Read(id[:]); err != nil {
		debug.DropError("client id generation", err)
	}
	return id
}

func setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		debug.DropMessage("SIGNAL", "received interrupt, shutting down")
		control.Shutdown()
	}()
}
