package server

import (
	"math/big"
	"net"
	"testing"
	"time"

	"kangaroo/control"
	"kangaroo/curve"
	"kangaroo/kmodel"
	"kangaroo/protocol"
)

func newTestServer(t *testing.T) (*Server, net.Listener) {
	t.Helper()
	target := curve.ScalarBaseMult(big.NewInt(12345))
	s := New(target, big.NewInt(0), big.NewInt(0), big.NewInt(1<<20), big.NewInt(1<<10), 8, 4)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	control.Start()
	go s.Serve(ln)
	return s, ln
}

func TestHandshakeAssignsRange(t *testing.T) {
	_, ln := newTestServer(t)
	defer func() {
		control.Shutdown()
		ln.Close()
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var clientID [16]byte
	clientID[0] = 0xAB
	if err := protocol.WriteClientHello(conn, protocol.ClientHello{ClientID: clientID, IntervalBits: 10}); err != nil {
		t.Fatalf("write client hello: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := protocol.ReadServerHello(conn)
	if err != nil {
		t.Fatalf("read server hello: %v", err)
	}
	if reply.Accepted != 1 {
		t.Fatalf("expected accepted=1, got %d", reply.Accepted)
	}
	if reply.RangeStart.Big().Cmp(big.NewInt(0)) != 0 || reply.RangeEnd.Big().Cmp(big.NewInt(1<<10)) != 0 {
		t.Fatalf("unexpected assigned range: [%v, %v)", reply.RangeStart.Big(), reply.RangeEnd.Big())
	}
}

func TestDPBatchIsAcknowledged(t *testing.T) {
	_, ln := newTestServer(t)
	defer func() {
		control.Shutdown()
		ln.Close()
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var clientID [16]byte
	clientID[0] = 0xCD
	protocol.WriteClientHello(conn, protocol.ClientHello{ClientID: clientID, IntervalBits: 10})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := protocol.ReadServerHello(conn); err != nil {
		t.Fatalf("read server hello: %v", err)
	}

	dps := []kmodel.DP{
		{X: kmodel.IntFromBig(big.NewInt(1)), Dist: kmodel.DistFromBig(big.NewInt(7)), KIdx: 0},
		{X: kmodel.IntFromBig(big.NewInt(2)), Dist: kmodel.DistFromBig(big.NewInt(9)), KIdx: 1},
	}
	if err := protocol.WriteFrame(conn, protocol.MsgDPBatch, protocol.EncodeDPBatch(dps)); err != nil {
		t.Fatalf("write dp batch: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := protocol.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read ack frame: %v", err)
	}
	if msgType != protocol.MsgDPAck {
		t.Fatalf("expected MsgDPAck, got %v", msgType)
	}
	seq, err := protocol.DecodeDPAck(payload)
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if seq != uint64(len(dps)) {
		t.Fatalf("expected lastSequence=%d, got %d", len(dps), seq)
	}
}

func TestDPBatchRejectsEntryViolatingDPMask(t *testing.T) {
	s, ln := newTestServer(t)
	defer func() {
		control.Shutdown()
		ln.Close()
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var clientID [16]byte
	clientID[0] = 0xEE
	protocol.WriteClientHello(conn, protocol.ClientHello{ClientID: clientID, IntervalBits: 10})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := protocol.ReadServerHello(conn); err != nil {
		t.Fatalf("read server hello: %v", err)
	}

	// newTestServer negotiates dpBits=8: low 8 bits of x must be zero.
	dps := []kmodel.DP{
		{X: kmodel.IntFromBig(big.NewInt(256)), Dist: kmodel.DistFromBig(big.NewInt(1)), KIdx: 0}, // 0x100: satisfies the mask
		{X: kmodel.IntFromBig(big.NewInt(1)), Dist: kmodel.DistFromBig(big.NewInt(2)), KIdx: 1},    // low bits set: corrupt
	}
	if err := protocol.WriteFrame(conn, protocol.MsgDPBatch, protocol.EncodeDPBatch(dps)); err != nil {
		t.Fatalf("write dp batch: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := protocol.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read ack frame: %v", err)
	}
	if msgType != protocol.MsgDPAck {
		t.Fatalf("expected MsgDPAck, got %v", msgType)
	}
	seq, err := protocol.DecodeDPAck(payload)
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if seq != uint64(len(dps)) {
		t.Fatalf("expected the ack to count both entries, got %d", seq)
	}

	time.Sleep(50 * time.Millisecond) // let the handler's Store.Add land
	entries := s.Store.Export()
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 stored entry, got %d", len(entries))
	}
}

func TestAssignRejectsOnceIntervalExhausted(t *testing.T) {
	target := curve.ScalarBaseMult(big.NewInt(999))
	s := New(target, big.NewInt(0), big.NewInt(0), big.NewInt(100), big.NewInt(100), 8, 1)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	control.Start()
	go s.Serve(ln)
	defer func() {
		control.Shutdown()
		ln.Close()
	}()

	dial := func(id byte) protocol.ServerHello {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()
		var clientID [16]byte
		clientID[0] = id
		protocol.WriteClientHello(conn, protocol.ClientHello{ClientID: clientID, IntervalBits: 10})
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		reply, err := protocol.ReadServerHello(conn)
		if err != nil {
			t.Fatalf("read server hello: %v", err)
		}
		return reply
	}

	first := dial(1)
	if first.Accepted != 1 {
		t.Fatalf("expected the first connection to be accepted")
	}
	second := dial(2)
	if second.Accepted != 0 {
		t.Fatalf("expected the second connection to be rejected: interval exhausted")
	}
}
