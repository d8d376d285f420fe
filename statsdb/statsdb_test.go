package statsdb

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"kangaroo/dpstore"
)

func TestRecordAndLatest(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "stats.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	now := time.Unix(1000, 0)
	s := dpstore.Stats{Added: 5, SameHerdDuplicates: 1, CrossHerdEvents: 2, BucketCount: 3}
	if err := db.Record(now, s, 10, 8); err != nil {
		t.Fatalf("Record: %v", err)
	}

	ts, got, pushed, popped, ok, err := db.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !ok {
		t.Fatalf("expected a recorded row")
	}
	if !ts.Equal(now) {
		t.Fatalf("ts mismatch: got %v want %v", ts, now)
	}
	if got != s || pushed != 10 || popped != 8 {
		t.Fatalf("stats mismatch: got %+v pushed=%d popped=%d", got, pushed, popped)
	}
}

func TestLatestOnEmptyDB(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "empty.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	_, _, _, _, ok, err := db.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false on an empty table")
	}
}

func TestWriteResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.json")
	key := big.NewInt(0xdeadbeef)
	foundAt := time.Unix(2000, 0).UTC()

	if err := WriteResult(path, key, foundAt); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
}
