// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: worker.go — client worker session
//
// Purpose:
//   - Client Worker (component H): performs the handshake, launches one Lane
//     per requested worker count, drains each lane's ring into a shared
//     async Pipeline, and runs the network send/receive loops that batch
//     DP_BATCH frames out and RANGE_REASSIGN/RESET_KANGAROO/STOP frames in.
// ─────────────────────────────────────────────────────────────────────────────

package workerengine

import (
	"io"
	"net"
	"sync/atomic"
	"time"

	"kangaroo/constants"
	"kangaroo/control"
	"kangaroo/debug"
	"kangaroo/dppipeline"
	"kangaroo/dpring"
	"kangaroo/herd"
	"kangaroo/kmodel"
	"kangaroo/protocol"
)

// Session is one client's connection to the server plus the compute lanes
// searching the range it was assigned.
type Session struct {
	Conn     net.Conn
	ClientID [16]byte
	Hello    protocol.ServerHello

	lanes    []*CPULane
	rings    []*dpring.Ring
	pipeline *dppipeline.Pipeline
	stopped  int32 // atomic; set when receiveLoop ends or Run's sendLoop returns, read by drainRing and sendLoop

	pending []kmodel.DP // a batch popped but not written before the connection dropped
}

// Connect performs the handshake over conn and, on acceptance, builds the
// Lanes for the assigned range. numWorkers CPU lanes are created, each with
// DefaultCohortSize kangaroos.
func Connect(conn net.Conn, clientID [16]byte, intervalBits uint8, numWorkers int) (*Session, error) {
	if err := protocol.WriteClientHello(conn, protocol.ClientHello{ClientID: clientID, IntervalBits: intervalBits}); err != nil {
		return nil, err
	}
	hello, err := protocol.ReadServerHello(conn)
	if err != nil {
		return nil, err
	}
	if hello.Accepted == 0 {
		return nil, io.ErrUnexpectedEOF
	}

	target := kmodel.Point{X: hello.Px, Y: hello.Py}
	params := herd.Params{
		Target:     target,
		WildOffset: hello.WildOffset.Big(),
		RangeStart: hello.RangeStart.Big(),
		RangeEnd:   hello.RangeEnd.Big(),
	}

	s := &Session{
		Conn:     conn,
		ClientID: clientID,
		Hello:    hello,
		pipeline: dppipeline.New(),
	}
	for i := 0; i < numWorkers; i++ {
		baseKIdx := uint64(i) * constants.LaneKIdxStride
		s.lanes = append(s.lanes, NewCPULane(uint(hello.DPBits), params, constants.DefaultCohortSize, baseKIdx))
		s.rings = append(s.rings, dpring.New(constants.LaneRingSize))
	}
	return s, nil
}

// Run launches every lane, the ring drainers, and the network send/receive
// loops, blocking until control.Shutdown or the connection drops. On
// return, every lane and ring drainer belonging to this session has been
// told to stop; the receive loop exits once the caller closes the connection.
func (s *Session) Run() error {
	control.ShutdownWG.Add(1)
	defer control.ShutdownWG.Done()

	for i, lane := range s.lanes {
		go lane.Run(s.rings[i])
		go s.drainRing(s.rings[i], uint32(i))
	}

	go s.receiveLoop()
	err := s.sendLoop()

	atomic.StoreInt32(&s.stopped, 1)
	for _, lane := range s.lanes {
		lane.Stop()
	}
	return err
}

// Requeue pushes a batch retained from a prior, dropped connection back
// onto this session's pipeline so it goes out with the next DP_BATCH
// instead of being lost across a reconnect.
func (s *Session) Requeue(dps []kmodel.DP) {
	s.pipeline.PushBatch(dps, 0, 0)
}

// PendingBatch returns the batch sendLoop popped but failed to deliver, if
// any — the caller should Requeue it onto the next session it builds.
func (s *Session) PendingBatch() []kmodel.DP {
	return s.pending
}

// drainRing is the sole consumer of one lane's SPSC ring, forwarding every
// DP into the shared Pipeline.
func (s *Session) drainRing(ring *dpring.Ring, laneID uint32) {
	for control.Running() && atomic.LoadInt32(&s.stopped) == 0 {
		if s.pipeline.Depth() > constants.QueueSoftBound {
			time.Sleep(time.Millisecond)
			continue
		}
		dp, ok := ring.Pop()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		s.pipeline.Push(dp, laneID, 0)
	}
}

// sendLoop pulls batches off the Pipeline and ships them as DP_BATCH frames;
// it does not wait for DP_ACK between batches. A batch popped
// but not yet written when the connection drops is retained in s.pending
// rather than discarded, so the caller can hand it to Requeue on the next
// session.
func (s *Session) sendLoop() error {
	for control.Running() && atomic.LoadInt32(&s.stopped) == 0 {
		batch, ok := s.pipeline.PopBatch(
			constants.DefaultBatchMax,
			time.Duration(constants.DefaultPopTimeoutMS)*time.Millisecond,
			time.Duration(constants.DefaultBatchingDelayMS)*time.Millisecond,
		)
		if !ok {
			continue
		}
		if err := protocol.WriteFrame(s.Conn, protocol.MsgDPBatch, protocol.EncodeDPBatch(batch)); err != nil {
			s.pending = batch
			return err
		}
	}
	s.pipeline.RequestShutdown()
	return nil
}

// receiveLoop services frames the server pushes unsolicited: DP_ACK,
// RANGE_REASSIGN, RESET_KANGAROO, and STOP.
func (s *Session) receiveLoop() {
	for control.Running() {
		msgType, payload, err := protocol.ReadFrame(s.Conn)
		if err != nil {
			if err != io.EOF {
				debug.DropError("receive loop", err)
			}
			atomic.StoreInt32(&s.stopped, 1)
			return
		}
		switch msgType {
		case protocol.MsgDPAck:
			// Sequence accounting only; nothing to act on client-side.

		case protocol.MsgResetKangaroo:
			kIdx, err := protocol.DecodeResetKangaroo(payload)
			if err != nil {
				debug.DropError("decode reset kangaroo", err)
				continue
			}
			for _, lane := range s.lanes {
				lane.Reset(kIdx)
			}

		case protocol.MsgStop:
			key, err := protocol.DecodeStop(payload)
			if err != nil {
				debug.DropError("decode stop", err)
			} else {
				debug.DropMessage("STOP", key.Big().Text(16))
			}
			control.SignalFound()
			return

		case protocol.MsgRangeReassign:
			if _, _, err := protocol.DecodeRangeReassign(payload); err != nil {
				debug.DropError("decode range reassign", err)
			}
			// Re-ranging a live lane mid-search is not supported: the
			// worker disconnects and reconnects to pick up a fresh range.
			atomic.StoreInt32(&s.stopped, 1)
			return

		default:
			debug.DropError("unexpected message type", protocol.ErrProtocolViolation)
		}
	}
}
