// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: statsdb.go — periodic stats persistence and result output
//
// Purpose:
//   - Records each periodic server stats tick (component G, every
//     StatsIntervalSeconds) as a row in a local sqlite database, and writes
//     the final FOUND(k) result to the `-o` JSON output file on success.
// ─────────────────────────────────────────────────────────────────────────────

package statsdb

import (
	"database/sql"
	"math/big"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"

	"kangaroo/dpstore"
)

// DB wraps the sqlite connection used for the server's stats history.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if absent) the sqlite file at path and ensures the
// stats table exists.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS stats (
	ts                   INTEGER NOT NULL,
	added                INTEGER NOT NULL,
	same_herd_duplicates INTEGER NOT NULL,
	same_herd_collisions INTEGER NOT NULL,
	cross_herd_events    INTEGER NOT NULL,
	bucket_count         INTEGER NOT NULL,
	pushed               INTEGER NOT NULL,
	popped               INTEGER NOT NULL
)`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

// Record inserts one stats tick.
func (db *DB) Record(ts time.Time, s dpstore.Stats, pushed, popped uint64) error {
	_, err := db.conn.Exec(
		`INSERT INTO stats (ts, added, same_herd_duplicates, same_herd_collisions, cross_herd_events, bucket_count, pushed, popped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.Unix(), s.Added, s.SameHerdDuplicates, s.SameHerdCollisions, s.CrossHerdEvents, s.BucketCount, pushed, popped,
	)
	return err
}

// Latest returns the most recently recorded stats tick, or ok=false if none
// have been recorded yet.
func (db *DB) Latest() (ts time.Time, s dpstore.Stats, pushed, popped uint64, ok bool, err error) {
	row := db.conn.QueryRow(
		`SELECT ts, added, same_herd_duplicates, same_herd_collisions, cross_herd_events, bucket_count, pushed, popped
		 FROM stats ORDER BY ts DESC LIMIT 1`,
	)
	var unixTS int64
	scanErr := row.Scan(&unixTS, &s.Added, &s.SameHerdDuplicates, &s.SameHerdCollisions, &s.CrossHerdEvents, &s.BucketCount, &pushed, &popped)
	if scanErr == sql.ErrNoRows {
		return time.Time{}, dpstore.Stats{}, 0, 0, false, nil
	}
	if scanErr != nil {
		return time.Time{}, dpstore.Stats{}, 0, 0, false, scanErr
	}
	return time.Unix(unixTS, 0), s, pushed, popped, true, nil
}

// Close closes the underlying sqlite connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Result is the `-o` output file's schema: the recovered discrete log and
// when it was found.
type Result struct {
	Key     string    `json:"key"`
	FoundAt time.Time `json:"found_at"`
}

// WriteResult marshals a Result for key and writes it to path.
func WriteResult(path string, key *big.Int, foundAt time.Time) error {
	r := Result{Key: key.Text(16), FoundAt: foundAt}
	data, err := sonnet.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
