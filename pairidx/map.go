// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: map.go — CLIENT_ID fingerprinting
//
// Purpose:
//   - Reduces a worker's 16-byte CLIENT_ID (from the handshake) to a single
//     uint64 fingerprint, used to key the server's per-worker range index.
// ─────────────────────────────────────────────────────────────────────────────

package pairidx

import (
	"math/bits"
	"unsafe"
)

const (
	prime64_1 = 0x9E3779B185EBCA87
	prime64_2 = 0xC2B2AE3D27D4EB4F
)

// MixClientID reduces an arbitrary-length byte key (in practice, a 16-byte
// CLIENT_ID) to a 64-bit fingerprint via an xxHash-style mix.
//
//go:nosplit
func MixClientID(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	p := unsafe.Pointer(&b[0])
	n := uint16(len(b))
	h := uint64(n) * prime64_1

	switch {
	case n <= 8:
		v := load64Tail(p, n)
		h = bits.RotateLeft64(v*prime64_2, 31) * prime64_1
	case n <= 16:
		v0 := *(*uint64)(p)
		v1 := load64Tail(unsafe.Add(p, uintptr(n)-8), 8)
		h = bits.RotateLeft64(v0^bits.RotateLeft64(v1*prime64_2, 27), 31) * prime64_1
	default:
		p8 := uintptr(p)
		for rem := n; rem >= 8; rem -= 8 {
			v := *(*uint64)(unsafe.Pointer(p8))
			p8 += 8
			h ^= bits.RotateLeft64(v*prime64_2, 31)
			h = bits.RotateLeft64(h, 27) * prime64_1
		}
		if tail := n & 7; tail != 0 {
			t := load64Tail(unsafe.Pointer(p8), tail)
			h ^= bits.RotateLeft64(t*prime64_2, 11)
			h = bits.RotateLeft64(h, 7) * prime64_1
		}
	}

	h ^= h >> 33
	h *= prime64_2
	h ^= h >> 29
	h *= prime64_1
	h ^= h >> 32
	return h
}

// load64Tail reads up to 8 bytes starting at p, zero-extended, without
// reading past the n valid bytes — used for the sub-word tail of a key
// whose length isn't a multiple of 8.
//
//go:nosplit
func load64Tail(p unsafe.Pointer, n uint16) uint64 {
	var buf [8]byte
	src := unsafe.Slice((*byte)(p), n)
	copy(buf[:], src)
	return *(*uint64)(unsafe.Pointer(&buf[0]))
}
