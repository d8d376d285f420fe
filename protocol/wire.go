// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: wire.go — client/server wire protocol
//
// Purpose:
//   - The connect handshake and the seven steady-state FRAME message types,
//     encoded exactly as fixed big-endian byte layouts. No JSON, no
//     reflection: every message is a direct byte-for-byte encode/decode,
//     the same discipline the teacher's WebSocket frame reader uses for
//     its own wire format.
//
// Notes:
//   - A bad magic/version or an impossible declared length is a protocol
//     violation: the caller drops the connection rather than trying to
//     resynchronize.
// ─────────────────────────────────────────────────────────────────────────────

package protocol

import (
	"encoding/binary"
	"errors"
	"io"

	"kangaroo/constants"
	"kangaroo/kmodel"
)

// ErrProtocolViolation is returned for a bad magic/version or an impossible
// declared length. Callers must drop the connection, never try to resync.
var ErrProtocolViolation = errors.New("protocol: violation")

// MsgType identifies a steady-state frame payload.
type MsgType uint8

const (
	MsgDPBatch       MsgType = 0x01
	MsgDPAck         MsgType = 0x02
	MsgPing          MsgType = 0x03
	MsgRangeReassign MsgType = 0x04
	MsgResetKangaroo MsgType = 0x05
	MsgStop          MsgType = 0x06
	MsgStats         MsgType = 0x07
)

// maxFrameLength bounds a single declared FRAME length so a corrupt or
// hostile length field can't force an unbounded allocation. Sized generously
// above the largest legitimate DP_BATCH (DefaultBatchMax entries).
const maxFrameLength = 4 + constants.DPWireSize*constants.DefaultBatchMax*4

// --- Handshake ---------------------------------------------------------

// ClientHello is the C→S handshake payload.
type ClientHello struct {
	ClientID     [16]byte
	IntervalBits uint8
}

// WriteClientHello writes MAGIC | VERSION | CLIENT_ID(16) | N(1).
func WriteClientHello(w io.Writer, h ClientHello) error {
	var buf [4 + 2 + 16 + 1]byte
	binary.BigEndian.PutUint32(buf[0:4], constants.ProtocolMagic)
	binary.BigEndian.PutUint16(buf[4:6], uint16(constants.ProtocolVersion))
	copy(buf[6:22], h.ClientID[:])
	buf[22] = h.IntervalBits
	_, err := w.Write(buf[:])
	return err
}

// ReadClientHello reads and validates a ClientHello.
func ReadClientHello(r io.Reader) (ClientHello, error) {
	var buf [4 + 2 + 16 + 1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return ClientHello{}, err
	}
	if binary.BigEndian.Uint32(buf[0:4]) != constants.ProtocolMagic {
		return ClientHello{}, ErrProtocolViolation
	}
	if binary.BigEndian.Uint16(buf[4:6]) != uint16(constants.ProtocolVersion) {
		return ClientHello{}, ErrProtocolViolation
	}
	var h ClientHello
	copy(h.ClientID[:], buf[6:22])
	h.IntervalBits = buf[22]
	return h, nil
}

// ServerHello is the S→C handshake payload.
type ServerHello struct {
	Accepted   uint8
	DPBits     uint8
	Px, Py     kmodel.Int
	WildOffset kmodel.Int
	RangeStart kmodel.Int
	RangeEnd   kmodel.Int
}

const serverHelloSize = 4 + 2 + 1 + 1 + 32*5

// WriteServerHello writes MAGIC | VERSION | ACCEPTED | DP_BITS | P_x | P_y |
// WILD_OFFSET | RANGE_START | RANGE_END.
func WriteServerHello(w io.Writer, h ServerHello) error {
	var buf [serverHelloSize]byte
	binary.BigEndian.PutUint32(buf[0:4], constants.ProtocolMagic)
	binary.BigEndian.PutUint16(buf[4:6], uint16(constants.ProtocolVersion))
	buf[6] = h.Accepted
	buf[7] = h.DPBits
	off := 8
	for _, v := range []kmodel.Int{h.Px, h.Py, h.WildOffset, h.RangeStart, h.RangeEnd} {
		b := v.Bytes()
		copy(buf[off:off+32], b[:])
		off += 32
	}
	_, err := w.Write(buf[:])
	return err
}

// ReadServerHello reads and validates a ServerHello.
func ReadServerHello(r io.Reader) (ServerHello, error) {
	var buf [serverHelloSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return ServerHello{}, err
	}
	if binary.BigEndian.Uint32(buf[0:4]) != constants.ProtocolMagic {
		return ServerHello{}, ErrProtocolViolation
	}
	if binary.BigEndian.Uint16(buf[4:6]) != uint16(constants.ProtocolVersion) {
		return ServerHello{}, ErrProtocolViolation
	}
	h := ServerHello{Accepted: buf[6], DPBits: buf[7]}
	off := 8
	fields := []*kmodel.Int{&h.Px, &h.Py, &h.WildOffset, &h.RangeStart, &h.RangeEnd}
	for _, f := range fields {
		var b [32]byte
		copy(b[:], buf[off:off+32])
		*f = kmodel.IntFromBytes(b)
		off += 32
	}
	return h, nil
}

// --- Steady-state framing -----------------------------------------------

// WriteFrame writes MSG_TYPE(1) | LENGTH(4) | payload.
func WriteFrame(w io.Writer, msgType MsgType, payload []byte) error {
	var hdr [5]byte
	hdr[0] = byte(msgType)
	binary.BigEndian.PutUint32(hdr[1:5], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one frame and returns its type and payload.
func ReadFrame(r io.Reader) (MsgType, []byte, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(hdr[1:5])
	if length > maxFrameLength {
		return 0, nil, ErrProtocolViolation
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return MsgType(hdr[0]), payload, nil
}

// --- Payload codecs ------------------------------------------------------

// EncodeDP renders one DP as its 68-byte wire form: x(32) | dist(24) |
// kIdx(8) | pad(4).
func EncodeDP(dp kmodel.DP) [constants.DPWireSize]byte {
	var out [constants.DPWireSize]byte
	x := dp.X.Bytes()
	copy(out[0:32], x[:])
	d := dp.Dist.Bytes()
	copy(out[32:56], d[:])
	binary.BigEndian.PutUint64(out[56:64], dp.KIdx)
	return out
}

// DecodeDP parses a 68-byte wire DP. b must be exactly DPWireSize long.
func DecodeDP(b []byte) kmodel.DP {
	var xb [32]byte
	copy(xb[:], b[0:32])
	var db [24]byte
	copy(db[:], b[32:56])
	kIdx := binary.BigEndian.Uint64(b[56:64])
	return kmodel.DP{
		X:    kmodel.IntFromBytes(xb),
		Dist: kmodel.DistFromBytes(db),
		KIdx: kIdx,
	}
}

// EncodeDPBatch renders a MSG_DP_BATCH payload: COUNT(4) then COUNT entries.
func EncodeDPBatch(dps []kmodel.DP) []byte {
	out := make([]byte, 4+constants.DPWireSize*len(dps))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(dps)))
	off := 4
	for _, dp := range dps {
		enc := EncodeDP(dp)
		copy(out[off:off+constants.DPWireSize], enc[:])
		off += constants.DPWireSize
	}
	return out
}

// DecodeDPBatch parses a MSG_DP_BATCH payload, enforcing the fixed-size
// invariant: LENGTH must equal 4 + DPWireSize*COUNT.
func DecodeDPBatch(payload []byte) ([]kmodel.DP, error) {
	if len(payload) < 4 {
		return nil, ErrProtocolViolation
	}
	count := binary.BigEndian.Uint32(payload[0:4])
	want := 4 + constants.DPWireSize*int(count)
	if want != len(payload) {
		return nil, ErrProtocolViolation
	}
	dps := make([]kmodel.DP, count)
	off := 4
	for i := range dps {
		dps[i] = DecodeDP(payload[off : off+constants.DPWireSize])
		off += constants.DPWireSize
	}
	return dps, nil
}

// EncodeDPAck / DecodeDPAck — last_sequence(8).
func EncodeDPAck(lastSequence uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], lastSequence)
	return b[:]
}

func DecodeDPAck(payload []byte) (uint64, error) {
	if len(payload) != 8 {
		return 0, ErrProtocolViolation
	}
	return binary.BigEndian.Uint64(payload), nil
}

// EncodePing / DecodePing — timestamp(8), unix nanoseconds.
func EncodePing(timestamp int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(timestamp))
	return b[:]
}

func DecodePing(payload []byte) (int64, error) {
	if len(payload) != 8 {
		return 0, ErrProtocolViolation
	}
	return int64(binary.BigEndian.Uint64(payload)), nil
}

// EncodeRangeReassign / DecodeRangeReassign — start(32), end(32).
func EncodeRangeReassign(start, end kmodel.Int) []byte {
	out := make([]byte, 64)
	sb := start.Bytes()
	eb := end.Bytes()
	copy(out[0:32], sb[:])
	copy(out[32:64], eb[:])
	return out
}

func DecodeRangeReassign(payload []byte) (start, end kmodel.Int, err error) {
	if len(payload) != 64 {
		return kmodel.Int{}, kmodel.Int{}, ErrProtocolViolation
	}
	var sb, eb [32]byte
	copy(sb[:], payload[0:32])
	copy(eb[:], payload[32:64])
	return kmodel.IntFromBytes(sb), kmodel.IntFromBytes(eb), nil
}

// EncodeResetKangaroo / DecodeResetKangaroo — kIdx(8).
func EncodeResetKangaroo(kIdx uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], kIdx)
	return b[:]
}

func DecodeResetKangaroo(payload []byte) (uint64, error) {
	if len(payload) != 8 {
		return 0, ErrProtocolViolation
	}
	return binary.BigEndian.Uint64(payload), nil
}

// EncodeStop / DecodeStop — found_key(32).
func EncodeStop(key kmodel.Int) []byte {
	b := key.Bytes()
	return b[:]
}

func DecodeStop(payload []byte) (kmodel.Int, error) {
	if len(payload) != 32 {
		return kmodel.Int{}, ErrProtocolViolation
	}
	var b [32]byte
	copy(b[:], payload)
	return kmodel.IntFromBytes(b), nil
}

// EncodeStats / DecodeStats — pushed(8), popped(8), ops_count(8).
func EncodeStats(pushed, popped, opsCount uint64) []byte {
	b := make([]byte, 24)
	binary.BigEndian.PutUint64(b[0:8], pushed)
	binary.BigEndian.PutUint64(b[8:16], popped)
	binary.BigEndian.PutUint64(b[16:24], opsCount)
	return b
}

func DecodeStats(payload []byte) (pushed, popped, opsCount uint64, err error) {
	if len(payload) != 24 {
		return 0, 0, 0, ErrProtocolViolation
	}
	return binary.BigEndian.Uint64(payload[0:8]),
		binary.BigEndian.Uint64(payload[8:16]),
		binary.BigEndian.Uint64(payload[16:24]),
		nil
}
