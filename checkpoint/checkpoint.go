// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: checkpoint.go — DP store checkpoint file format
//
// Purpose:
//   - Serializes a dpstore.Store's entries to disk so a server can resume a
//     search across a restart instead of losing every distinguished point
//     collected so far. Rewritten atomically (write-to-temp, then rename)
//     at the configured interval, never in place.
// ─────────────────────────────────────────────────────────────────────────────

package checkpoint

import (
	"encoding/binary"
	"errors"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"

	"kangaroo/dpstore"
	"kangaroo/kmodel"
)

// ErrCorrupt is returned when a checkpoint's magic/version don't match or
// its trailer digest doesn't verify.
var ErrCorrupt = errors.New("checkpoint: corrupt file")

const (
	magic   uint32 = 0x4B414E47
	version uint16 = 1
)

// Header carries the fixed search parameters a resumed run needs, matching
// what the handshake's ServerHello also conveys.
type Header struct {
	RangeBits  uint16
	DPBits     uint8
	Px, Py     kmodel.Int
	WildOffset kmodel.Int
}

const headerSize = 4 + 2 + 2 + 1 + 32*3

const entrySize = 32 + 24 + 8 // suffix, dist, kIdx

// Save atomically writes store's full state to path: a temp file is written
// and fsynced, then renamed over the destination, so a crash mid-write never
// leaves a half-written checkpoint in place.
func Save(path string, h Header, store *dpstore.Store) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer os.Remove(tmp) // no-op once the rename below succeeds

	digest, err := blake2b.New256(nil)
	if err != nil {
		f.Close()
		return err
	}
	w := io.MultiWriter(f, digest)

	if err := writeHeader(w, h); err != nil {
		f.Close()
		return err
	}

	entries := store.Export()
	buckets := groupByBucket(entries)

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(buckets)))
	if _, err := w.Write(countBuf[:]); err != nil {
		f.Close()
		return err
	}

	for _, b := range buckets {
		if err := writeBucket(w, b); err != nil {
			f.Close()
			return err
		}
	}

	if _, err := f.Write(digest.Sum(nil)); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads and verifies a checkpoint file, returning its header and the
// entries ready for dpstore.Store.Import.
func Load(path string) (Header, []dpstore.ExportEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Header{}, nil, err
	}
	if len(raw) < blake2b.Size256 {
		return Header{}, nil, ErrCorrupt
	}
	body, trailer := raw[:len(raw)-blake2b.Size256], raw[len(raw)-blake2b.Size256:]

	sum := blake2b.Sum256(body)
	if !equalBytes(sum[:], trailer) {
		return Header{}, nil, ErrCorrupt
	}

	r := &byteReader{buf: body}
	h, err := readHeader(r)
	if err != nil {
		return Header{}, nil, err
	}

	bucketCount, err := r.u32()
	if err != nil {
		return Header{}, nil, err
	}

	var entries []dpstore.ExportEntry
	for i := uint32(0); i < bucketCount; i++ {
		bucketIdx, err := r.u32()
		if err != nil {
			return Header{}, nil, err
		}
		entryCount, err := r.u32()
		if err != nil {
			return Header{}, nil, err
		}
		for j := uint32(0); j < entryCount; j++ {
			e, err := readEntry(r, bucketIdx)
			if err != nil {
				return Header{}, nil, err
			}
			entries = append(entries, e)
		}
	}
	return h, entries, nil
}

func writeHeader(w io.Writer, h Header) error {
	var buf [headerSize]byte
	binary.BigEndian.PutUint32(buf[0:4], magic)
	binary.BigEndian.PutUint16(buf[4:6], version)
	binary.BigEndian.PutUint16(buf[6:8], h.RangeBits)
	buf[8] = h.DPBits
	off := 9
	for _, v := range []kmodel.Int{h.Px, h.Py, h.WildOffset} {
		b := v.Bytes()
		copy(buf[off:off+32], b[:])
		off += 32
	}
	_, err := w.Write(buf[:])
	return err
}

func readHeader(r *byteReader) (Header, error) {
	buf, err := r.take(headerSize)
	if err != nil {
		return Header{}, err
	}
	if binary.BigEndian.Uint32(buf[0:4]) != magic {
		return Header{}, ErrCorrupt
	}
	if binary.BigEndian.Uint16(buf[4:6]) != version {
		return Header{}, ErrCorrupt
	}
	h := Header{
		RangeBits: binary.BigEndian.Uint16(buf[6:8]),
		DPBits:    buf[8],
	}
	off := 9
	fields := []*kmodel.Int{&h.Px, &h.Py, &h.WildOffset}
	for _, f := range fields {
		var b [32]byte
		copy(b[:], buf[off:off+32])
		*f = kmodel.IntFromBytes(b)
		off += 32
	}
	return h, nil
}

type bucketGroup struct {
	idx     uint32
	entries []dpstore.ExportEntry
}

// groupByBucket relies on Export's own (bucketIdx, suffix) ordering, so it
// only needs to notice bucket boundaries, never re-sort.
func groupByBucket(entries []dpstore.ExportEntry) []bucketGroup {
	var groups []bucketGroup
	for _, e := range entries {
		if len(groups) == 0 || groups[len(groups)-1].idx != e.BucketIdx {
			groups = append(groups, bucketGroup{idx: e.BucketIdx})
		}
		g := &groups[len(groups)-1]
		g.entries = append(g.entries, e)
	}
	return groups
}

func writeBucket(w io.Writer, b bucketGroup) error {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], b.idx)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(b.entries)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	for _, e := range b.entries {
		var buf [entrySize]byte
		suf := e.Suffix.Bytes()
		copy(buf[0:32], suf[:])
		d := e.Dist.Bytes()
		copy(buf[32:56], d[:])
		binary.BigEndian.PutUint64(buf[56:64], e.KIdx)
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

func readEntry(r *byteReader, bucketIdx uint32) (dpstore.ExportEntry, error) {
	buf, err := r.take(entrySize)
	if err != nil {
		return dpstore.ExportEntry{}, err
	}
	var sufB [32]byte
	copy(sufB[:], buf[0:32])
	var distB [24]byte
	copy(distB[:], buf[32:56])
	kIdx := binary.BigEndian.Uint64(buf[56:64])
	suffix := kmodel.IntFromBytes(sufB)
	return dpstore.ExportEntry{
		BucketIdx: bucketIdx,
		Suffix:    suffix,
		Dist:      kmodel.DistFromBytes(distB),
		Herd:      kmodel.HerdOf(kIdx),
		KIdx:      kIdx,
	}, nil
}

// byteReader is a minimal bounds-checked cursor over an in-memory buffer.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, ErrCorrupt
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
