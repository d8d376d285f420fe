package protocol

import (
	"bytes"
	"testing"

	"kangaroo/kmodel"
)

func TestClientHelloRoundTrip(t *testing.T) {
	h := ClientHello{IntervalBits: 24}
	copy(h.ClientID[:], []byte("0123456789abcdef"))

	var buf bytes.Buffer
	if err := WriteClientHello(&buf, h); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadClientHello(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != h {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, h)
	}
}

func TestClientHelloRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0}) // bad magic
	buf.Write(make([]byte, 19))
	if _, err := ReadClientHello(&buf); err != ErrProtocolViolation {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}
}

func TestServerHelloRoundTrip(t *testing.T) {
	h := ServerHello{
		Accepted:   1,
		DPBits:     20,
		Px:         kmodel.Int{1, 2, 3, 4},
		Py:         kmodel.Int{5, 6, 7, 8},
		WildOffset: kmodel.Int{0, 0, 0, 9},
		RangeStart: kmodel.Int{0, 0, 0, 0},
		RangeEnd:   kmodel.Int{0xffffffffffffffff, 0, 0, 0},
	}
	var buf bytes.Buffer
	if err := WriteServerHello(&buf, h); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadServerHello(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != h {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, h)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{1, 2, 3, 4, 5}
	if err := WriteFrame(&buf, MsgPing, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	msgType, got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != MsgPing {
		t.Fatalf("msgType mismatch: got %v", msgType)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %v want %v", got, payload)
	}
}

func TestFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(MsgDPBatch))
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff}) // absurd length
	if _, _, err := ReadFrame(&buf); err != ErrProtocolViolation {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}
}

func TestDPRoundTrip(t *testing.T) {
	dp := kmodel.DP{
		X:    kmodel.Int{1, 2, 3, 4},
		Dist: kmodel.Dist{5, 6, 7},
		KIdx: 42,
	}
	enc := EncodeDP(dp)
	if len(enc) != 68 {
		t.Fatalf("expected 68 bytes, got %d", len(enc))
	}
	got := DecodeDP(enc[:])
	if got != dp {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, dp)
	}
}

func TestDPBatchRoundTrip(t *testing.T) {
	dps := []kmodel.DP{
		{X: kmodel.Int{1, 0, 0, 0}, Dist: kmodel.Dist{0, 0, 1}, KIdx: 2},
		{X: kmodel.Int{2, 0, 0, 0}, Dist: kmodel.Dist{0, 0, 2}, KIdx: 3},
	}
	payload := EncodeDPBatch(dps)
	wantLen := 4 + 68*len(dps)
	if len(payload) != wantLen {
		t.Fatalf("expected LENGTH=%d, got %d", wantLen, len(payload))
	}
	got, err := DecodeDPBatch(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(dps) {
		t.Fatalf("count mismatch: got %d want %d", len(got), len(dps))
	}
	for i := range dps {
		if got[i] != dps[i] {
			t.Fatalf("entry %d mismatch: got %+v want %+v", i, got[i], dps[i])
		}
	}
}

func TestDPBatchRejectsLengthMismatch(t *testing.T) {
	payload := EncodeDPBatch([]kmodel.DP{{X: kmodel.Int{1, 0, 0, 0}}})
	truncated := payload[:len(payload)-1]
	if _, err := DecodeDPBatch(truncated); err != ErrProtocolViolation {
		t.Fatalf("expected ErrProtocolViolation on length mismatch, got %v", err)
	}
}

func TestSimpleMessageRoundTrips(t *testing.T) {
	if got, err := DecodeDPAck(EncodeDPAck(12345)); err != nil || got != 12345 {
		t.Fatalf("DPAck round-trip failed: got %d err %v", got, err)
	}
	if got, err := DecodePing(EncodePing(98765)); err != nil || got != 98765 {
		t.Fatalf("Ping round-trip failed: got %d err %v", got, err)
	}
	if got, err := DecodeResetKangaroo(EncodeResetKangaroo(7)); err != nil || got != 7 {
		t.Fatalf("ResetKangaroo round-trip failed: got %d err %v", got, err)
	}

	start := kmodel.Int{1, 1, 1, 1}
	end := kmodel.Int{2, 2, 2, 2}
	gs, ge, err := DecodeRangeReassign(EncodeRangeReassign(start, end))
	if err != nil || gs != start || ge != end {
		t.Fatalf("RangeReassign round-trip failed: got %+v %+v err %v", gs, ge, err)
	}

	key := kmodel.Int{9, 9, 9, 9}
	gk, err := DecodeStop(EncodeStop(key))
	if err != nil || gk != key {
		t.Fatalf("Stop round-trip failed: got %+v err %v", gk, err)
	}

	p, o, c, err := DecodeStats(EncodeStats(1, 2, 3))
	if err != nil || p != 1 || o != 2 || c != 3 {
		t.Fatalf("Stats round-trip failed: got %d %d %d err %v", p, o, c, err)
	}
}
