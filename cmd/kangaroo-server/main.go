// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: main.go — server entry point
//
// Purpose:
//   - CLI surface: `-s -sp -d -w -wi -o`, plus the positional target file
//     (N and the public key). Phased startup mirroring the teacher's
//     main.go: parse, load, bind, serve, signal-handle, drain.
// ─────────────────────────────────────────────────────────────────────────────

package main

import (
	"flag"
	"fmt"
	"math/big"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kangaroo/checkpoint"
	"kangaroo/control"
	"kangaroo/debug"
	"kangaroo/kmodel"
	"kangaroo/server"
	"kangaroo/statsdb"
	"kangaroo/targetfile"
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
		enableServer       = flag.Bool("s", false, "enable server mode")
		port               = flag.Int("sp", 9000, "listen port")
		dpBits             = flag.Uint("d", 20, "distinguished point difficulty (low bits of x that must be zero)")
		checkpointPath     = flag.String("w", "", "checkpoint file path (resumed on start, rewritten at -wi interval)")
		checkpointInterval = flag.Int("wi", 300, "checkpoint write interval, seconds")
		resultPath         = flag.String("o", "result.json", "path to write the recovered key on success")
	)
	flag.Parse()

	if !*enableServer {
		fmt.Fprintln(os.Stderr, "kangaroo-server: -s is required")
		return exitUsageError
	}
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "kangaroo-server: usage: kangaroo-server -s [flags] <target-file>")
		return exitUsageError
	}

	target, err := targetfile.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "kangaroo-server: loading target file: %v\n", err)
		return exitIOError
	}

	rangeStart := big.NewInt(0)
	rangeEnd := new(big.Int).Lsh(big.NewInt(1), target.N)
	chunkSize := new(big.Int).Rsh(rangeEnd, 10) // ~1024 ranges across the interval
	if chunkSize.Sign() == 0 {
		chunkSize = big.NewInt(1)
	}
	wildOffset := new(big.Int).Rsh(rangeEnd, 1)

	srv := server.New(target.Point, wildOffset, rangeStart, rangeEnd, chunkSize, uint8(*dpBits), 4096)

	if *checkpointPath != "" {
		if _, entries, err := checkpoint.Load(*checkpointPath); err == nil {
			srv.Store.Import(entries)
			debug.DropMessage("CHECKPOINT", fmt.Sprintf("resumed %d entries from %s", len(entries), *checkpointPath))
		} else if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "kangaroo-server: loading checkpoint: %v\n", err)
			return exitIOError
		}
	}

	if db, err := statsdb.Open("stats.db"); err == nil {
		srv.Stats = db
		defer db.Close()
	} else {
		debug.DropError("stats db open", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "kangaroo-server: listen: %v\n", err)
		return exitIOError
	}
	debug.DropMessage("LISTEN", ln.Addr().String())

	control.Start()
	setupSignalHandling()

	if *checkpointPath != "" {
		go runCheckpointLoop(srv, *checkpointPath, target.N, uint8(*dpBits), wildOffset, time.Duration(*checkpointInterval)*time.Second)
	}

	srv.Serve(ln)
	control.ShutdownWG.Wait()

	if control.Found() {
		key := srv.Resolver.Key
		if key == nil {
			fmt.Fprintln(os.Stderr, "kangaroo-server: found flag set but no key recorded")
			return exitProtocolError
		}
		if err := statsdb.WriteResult(*resultPath, key, time.Now()); err != nil {
			fmt.Fprintf(os.Stderr, "kangaroo-server: writing result: %v\n", err)
			return exitIOError
		}
		return exitSuccess
	}
	return exitGracefulNoResult
}

func runCheckpointLoop(srv *server.Server, path string, rangeBits uint, dpBits uint8, wildOffset *big.Int, interval time.Duration) {
	control.ShutdownWG.Add(1)
	defer control.ShutdownWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	h := checkpoint.Header{
		RangeBits:  uint16(rangeBits),
		DPBits:     dpBits,
		Px:         srv.Target.X,
		Py:         srv.Target.Y,
		WildOffset: kmodel.IntFromBig(wildOffset),
	}
	for control.Running() {
		<-ticker.C
		if err := checkpoint.Save(path, h, srv.Store); err != nil {
			debug.DropError("checkpoint save", err)
		}
	}
	// Final checkpoint on graceful shutdown so no collected work is lost.
	if err := checkpoint.Save(path, h, srv.Store); err != nil {
		debug.DropError("final checkpoint save", err)
	}
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
