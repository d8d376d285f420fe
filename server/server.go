// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: server.go — server frontend
//
// Purpose:
//   - Server Frontend (component G): one accept loop, one handler goroutine
//     per connection, a shared DP Store and Work Partitioner behind it, and
//     a background collision resolver watching for the terminal FOUND(k)
//     state to broadcast STOP to every connected worker.
// ─────────────────────────────────────────────────────────────────────────────

package server

import (
	"math/big"
	"net"
	"sync"
	"time"

	"kangaroo/constants"
	"kangaroo/control"
	"kangaroo/debug"
	"kangaroo/dpstore"
	"kangaroo/kmodel"
	"kangaroo/resolve"
	"kangaroo/statsdb"
	"kangaroo/workrange"
)

// Server is the full server-side engine state shared across every
// connection handler.
type Server struct {
	Store       *dpstore.Store
	Partitioner *workrange.Partitioner
	Resolver    *resolve.Resolver
	Stats       *statsdb.DB // nil if stats persistence is disabled

	Target     kmodel.Point
	WildOffset *big.Int
	DPBits     uint8

	connsMu sync.Mutex
	conns   map[net.Conn]*sync.Mutex // per-connection write lock, guards interleaved WriteFrame calls

	dpReceived uint64 // atomic: total DPs received across all connections, rejected entries included
}

// New builds a Server over the given target/search parameters. interval is
// the [RangeStart, RangeEnd) search interval and chunkSize the size of each
// WorkRange handed out.
func New(target kmodel.Point, wildOffset, rangeStart, rangeEnd, chunkSize *big.Int, dpBits uint8, maxWorkers int) *Server {
	store := dpstore.NewDefault()
	return &Server{
		Store:       store,
		Partitioner: workrange.New(rangeStart, rangeEnd, chunkSize, maxWorkers),
		Resolver:    resolve.New(target, wildOffset),
		Target:      target,
		WildOffset:  wildOffset,
		DPBits:      dpBits,
		conns:       make(map[net.Conn]*sync.Mutex),
	}
}

// Serve runs the accept loop on ln until control.Shutdown is called or a
// key is found. It also starts the background collision resolver and the
// stale-range reaper.
func (s *Server) Serve(ln net.Listener) {
	control.ShutdownWG.Add(1)
	defer control.ShutdownWG.Done()

	go s.watchResolver()
	go s.reapStaleLoop()
	go s.RunStatsLoop()
	go s.broadcastResets()
	go closeOnShutdown(ln)

	for control.Running() {
		conn, err := ln.Accept()
		if err != nil {
			if !control.Running() {
				return
			}
			debug.DropError("accept", err)
			continue
		}
		wmu := s.track(conn)
		go func() {
			defer s.untrack(conn)
			handleConn(s, conn, wmu)
		}()
	}
}

// closeOnShutdown polls the running flag and closes ln the instant it
// clears, unblocking Accept so Serve can return.
func closeOnShutdown(ln net.Listener) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for control.Running() {
		<-ticker.C
	}
	ln.Close()
}

func (s *Server) track(c net.Conn) *sync.Mutex {
	wmu := &sync.Mutex{}
	s.connsMu.Lock()
	s.conns[c] = wmu
	s.connsMu.Unlock()
	return wmu
}

func (s *Server) untrack(c net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
	c.Close()
}

// watchResolver blocks on the resolver's event loop and, once a key is
// found, broadcasts STOP to every connected worker.
func (s *Server) watchResolver() {
	key := s.Resolver.Run(s.Store)
	if key == nil {
		return
	}
	debug.DropMessage("FOUND", key.Text(16))
	s.broadcastStop(key)
}

func (s *Server) broadcastStop(key *big.Int) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for c, wmu := range s.conns {
		sendStop(c, wmu, kmodel.IntFromBig(key))
	}
}

// broadcastResets forwards every kIdx the resolver wants reset to every
// connected worker; only the one whose cohort actually owns that kIdx acts
// on it, the rest silently ignore it — the server has no per-kIdx→worker
// mapping, so a broadcast is the simplest correct delivery.
func (s *Server) broadcastResets() {
	for control.Running() {
		select {
		case kIdx := <-s.Resolver.Resets:
			s.connsMu.Lock()
			for c, wmu := range s.conns {
				sendResetKangaroo(c, wmu, kIdx)
			}
			s.connsMu.Unlock()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// reapStaleLoop periodically reclaims ranges belonging to workers that have
// gone quiet past the grace period.
func (s *Server) reapStaleLoop() {
	ticker := time.NewTicker(time.Duration(constants.ReassignGraceSeconds) * time.Second / 2)
	defer ticker.Stop()
	for control.Running() {
		<-ticker.C
		reclaimed := s.Partitioner.ReapStale(time.Duration(constants.ReassignGraceSeconds) * time.Second)
		for range reclaimed {
			debug.DropMessage("REAP", "reclaimed a stale work range")
		}
	}
}
