package workerengine

import (
	"math/big"
	"net"
	"testing"
	"time"

	"kangaroo/control"
	"kangaroo/curve"
	"kangaroo/dppipeline"
	"kangaroo/kmodel"
	"kangaroo/protocol"
)

// fakeServer accepts one connection, replies with a ServerHello, then echoes
// back DP_ACK for every DP_BATCH it receives before sending STOP. If
// received is non-nil, every decoded batch is forwarded to it first.
func fakeServer(t *testing.T, ln net.Listener, rangeStart, rangeEnd *big.Int, received chan<- []kmodel.DP) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	if _, err := protocol.ReadClientHello(conn); err != nil {
		t.Errorf("server: read client hello: %v", err)
		return
	}
	target := curve.ScalarBaseMult(big.NewInt(777))
	reply := protocol.ServerHello{
		Accepted:   1,
		DPBits:     8,
		Px:         target.X,
		Py:         target.Y,
		WildOffset: kmodel.IntFromBig(big.NewInt(0)),
		RangeStart: kmodel.IntFromBig(rangeStart),
		RangeEnd:   kmodel.IntFromBig(rangeEnd),
	}
	if err := protocol.WriteServerHello(conn, reply); err != nil {
		t.Errorf("server: write server hello: %v", err)
		return
	}

	var lastSeq uint64
	for {
		msgType, payload, err := protocol.ReadFrame(conn)
		if err != nil {
			return
		}
		if msgType != protocol.MsgDPBatch {
			continue
		}
		dps, err := protocol.DecodeDPBatch(payload)
		if err != nil {
			t.Errorf("server: decode dp batch: %v", err)
			return
		}
		if received != nil {
			received <- dps
		}
		lastSeq += uint64(len(dps))
		protocol.WriteFrame(conn, protocol.MsgDPAck, protocol.EncodeDPAck(lastSeq))
		protocol.WriteFrame(conn, protocol.MsgStop, protocol.EncodeStop(kmodel.IntFromBig(big.NewInt(777))))
		return
	}
}

func TestConnectNegotiatesRange(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	rangeStart := big.NewInt(0)
	rangeEnd := big.NewInt(1 << 16)
	go fakeServer(t, ln, rangeStart, rangeEnd, nil)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var clientID [16]byte
	clientID[0] = 1
	sess, err := Connect(conn, clientID, 16, 2)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if sess.Hello.RangeStart.Big().Cmp(rangeStart) != 0 || sess.Hello.RangeEnd.Big().Cmp(rangeEnd) != 0 {
		t.Fatalf("unexpected negotiated range: [%v, %v)", sess.Hello.RangeStart.Big(), sess.Hello.RangeEnd.Big())
	}
	if len(sess.lanes) != 2 || len(sess.rings) != 2 {
		t.Fatalf("expected 2 lanes and 2 rings, got %d/%d", len(sess.lanes), len(sess.rings))
	}
}

func TestConnectFailsWhenServerRejects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		protocol.ReadClientHello(conn)
		protocol.WriteServerHello(conn, protocol.ServerHello{Accepted: 0})
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var clientID [16]byte
	if _, err := Connect(conn, clientID, 16, 1); err == nil {
		t.Fatalf("expected Connect to fail when the server rejects the handshake")
	}
}

func TestRunStopsOnServerStop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	rangeStart := big.NewInt(0)
	rangeEnd := big.NewInt(1 << 20)
	go fakeServer(t, ln, rangeStart, rangeEnd, nil)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var clientID [16]byte
	clientID[0] = 2
	sess, err := Connect(conn, clientID, 16, 1)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	control.Start()
	done := make(chan error, 1)
	go func() { done <- sess.Run() }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		control.Shutdown()
		t.Fatalf("Run did not return after the server sent STOP")
	}
	if !control.Found() {
		t.Fatalf("expected control.Found() after a STOP frame")
	}
}

// TestSendLoopRetainsBatchOnWriteFailure confirms a batch already popped off
// the pipeline isn't dropped when the write that would have sent it fails.
func TestSendLoopRetainsBatchOnWriteFailure(t *testing.T) {
	conn, peer := net.Pipe()
	peer.Close()
	conn.Close() // writes to our own closed half fail immediately and deterministically

	sess := &Session{Conn: conn, pipeline: dppipeline.New()}
	control.Start()
	defer control.Shutdown()

	dps := []kmodel.DP{
		{X: kmodel.IntFromBig(big.NewInt(11)), KIdx: 0},
		{X: kmodel.IntFromBig(big.NewInt(22)), KIdx: 1},
	}
	sess.pipeline.PushBatch(dps, 0, 0)

	if err := sess.sendLoop(); err == nil {
		t.Fatalf("expected sendLoop to report the write failure")
	}
	pending := sess.PendingBatch()
	if len(pending) != 2 {
		t.Fatalf("expected the unsent batch to be retained, got %d entries", len(pending))
	}
}

// TestReconnectResendsPendingBatch drives the full client-side reconnect
// path: a batch retained from a dropped connection is requeued onto the
// next session and actually reaches the server, matching the named
// reconnect-resend scenario.
func TestReconnectResendsPendingBatch(t *testing.T) {
	rangeStart := big.NewInt(0)
	rangeEnd := big.NewInt(1 << 20)
	var clientID [16]byte
	clientID[0] = 3

	// First session: connect, then drop the connection from the client
	// side before anything is sent, leaving a batch stranded in-flight.
	ln1, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln1.Close()
	go fakeServer(t, ln1, rangeStart, rangeEnd, nil)

	conn1, err := net.Dial("tcp", ln1.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	sess1, err := Connect(conn1, clientID, 16, 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	stranded := []kmodel.DP{
		{X: kmodel.IntFromBig(big.NewInt(101)), KIdx: 0},
		{X: kmodel.IntFromBig(big.NewInt(202)), KIdx: 1},
	}
	sess1.pipeline.PushBatch(stranded, 0, 0)

	control.Start()
	defer control.Shutdown()
	conn1.Close() // simulates the dropped connection
	if err := sess1.sendLoop(); err == nil {
		t.Fatalf("expected sendLoop to fail against the closed connection")
	}
	pending := sess1.PendingBatch()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending dp(s) after the drop, got %d", len(pending))
	}

	// Second session: reconnect, requeue the pending batch, and confirm
	// the server actually receives it.
	ln2, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln2.Close()
	received := make(chan []kmodel.DP, 1)
	go fakeServer(t, ln2, rangeStart, rangeEnd, received)

	conn2, err := net.Dial("tcp", ln2.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn2.Close()
	sess2, err := Connect(conn2, clientID, 16, 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	sess2.Requeue(pending)

	done := make(chan error, 1)
	go func() { done <- sess2.Run() }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		control.Shutdown()
		t.Fatalf("Run did not return after the server sent STOP")
	}

	select {
	case got := <-received:
		if len(got) != 2 || got[0].KIdx != 0 || got[1].KIdx != 1 {
			t.Fatalf("server received unexpected dps: %v", got)
		}
	default:
		t.Fatalf("server never received the requeued batch")
	}
}
