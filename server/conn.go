// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: conn.go — per-connection handler
//
// Purpose:
//   - One goroutine per accepted connection: performs the handshake, hands
//     out a WorkRange, then services DP_BATCH/PING/STATS frames until the
//     connection drops or a STOP is sent.
// ─────────────────────────────────────────────────────────────────────────────

package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"kangaroo/debug"
	"kangaroo/kmodel"
	"kangaroo/protocol"
	"kangaroo/walk"
)

// ErrCorruptDP is logged when a DP_BATCH entry's x doesn't satisfy the
// negotiated dpMask: low bits that should be zero aren't, so the entry
// cannot have come from a kangaroo actually running at this difficulty.
var ErrCorruptDP = errors.New("server: dp batch entry does not satisfy the negotiated dp mask")

// writeFrame serializes WriteFrame calls against wmu so a background
// broadcast (STOP, RESET_KANGAROO) can never interleave its header/payload
// writes with this connection's own reply loop.
func writeFrame(conn net.Conn, wmu *sync.Mutex, msgType protocol.MsgType, payload []byte) error {
	wmu.Lock()
	defer wmu.Unlock()
	return protocol.WriteFrame(conn, msgType, payload)
}

func tuneSocket(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	tc.SetNoDelay(true)
	if err := setSocketBuffers(tc); err != nil {
		debug.DropError("socket tuning", err)
	}
}

func handleConn(s *Server, conn net.Conn, wmu *sync.Mutex) {
	tuneSocket(conn)
	conn.SetDeadline(time.Time{})

	hello, err := protocol.ReadClientHello(conn)
	if err != nil {
		debug.DropError("client hello", err)
		return
	}

	wr, ok := s.Partitioner.Assign(hello.ClientID)
	if !ok {
		wmu.Lock()
		protocol.WriteServerHello(conn, protocol.ServerHello{Accepted: 0})
		wmu.Unlock()
		return
	}

	reply := protocol.ServerHello{
		Accepted:   1,
		DPBits:     s.DPBits,
		Px:         s.Target.X,
		Py:         s.Target.Y,
		WildOffset: kmodel.IntFromBig(s.WildOffset),
		RangeStart: wr.Start,
		RangeEnd:   wr.End,
	}
	wmu.Lock()
	err = protocol.WriteServerHello(conn, reply)
	wmu.Unlock()
	if err != nil {
		debug.DropError("server hello", err)
		return
	}

	var lastSequence uint64
	for {
		msgType, payload, err := protocol.ReadFrame(conn)
		if err != nil {
			if err != io.EOF {
				debug.DropError("read frame", err)
			}
			return
		}
		s.Partitioner.Heartbeat(hello.ClientID)

		switch msgType {
		case protocol.MsgDPBatch:
			dps, err := protocol.DecodeDPBatch(payload)
			if err != nil {
				debug.DropError("decode dp batch", err)
				return
			}
			for _, dp := range dps {
				if !walk.IsDistinguished(dp.X, s.DPBits) {
					debug.DropError("dp batch", ErrCorruptDP)
					lastSequence++
					continue
				}
				s.Store.Add(dp)
				lastSequence++
			}
			atomic.AddUint64(&s.dpReceived, uint64(len(dps)))
			if err := writeFrame(conn, wmu, protocol.MsgDPAck, protocol.EncodeDPAck(lastSequence)); err != nil {
				debug.DropError("write dp ack", err)
				return
			}

		case protocol.MsgPing:
			ts, err := protocol.DecodePing(payload)
			if err != nil {
				debug.DropError("decode ping", err)
				return
			}
			if err := writeFrame(conn, wmu, protocol.MsgPing, protocol.EncodePing(ts)); err != nil {
				debug.DropError("write ping", err)
				return
			}

		case protocol.MsgStats:
			pushed, popped, _, err := protocol.DecodeStats(payload)
			if err != nil {
				debug.DropError("decode stats", err)
				return
			}
			if pushed > 0 {
				s.Partitioner.MarkProgress(hello.ClientID, float64(popped)/float64(pushed))
			}

		default:
			debug.DropError("unexpected message type", protocol.ErrProtocolViolation)
			return
		}
	}
}

func sendStop(conn net.Conn, wmu *sync.Mutex, key kmodel.Int) {
	if err := writeFrame(conn, wmu, protocol.MsgStop, protocol.EncodeStop(key)); err != nil {
		debug.DropError("send stop", err)
	}
}

func sendResetKangaroo(conn net.Conn, wmu *sync.Mutex, kIdx uint64) {
	if err := writeFrame(conn, wmu, protocol.MsgResetKangaroo, protocol.EncodeResetKangaroo(kIdx)); err != nil {
		debug.DropError("send reset kangaroo", err)
	}
}
