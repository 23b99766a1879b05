package timeseries

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

const createDDL = `
CREATE TABLE IF NOT EXISTS points (
	path  TEXT NOT NULL,
	value REAL NOT NULL,
	ts    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_points_path_ts ON points(path, ts);
`

// SQLiteStore is a local-development Store backed by an append-only SQLite
// table, using the same pragma discipline as the durable relational store.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) a time-series database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open time-series db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}
	if _, err := db.Exec(createDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Record(path string, value float64, unixTs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO points (path, value, ts) VALUES (?, ?, ?)`, path, value, unixTs)
	return err
}

func (s *SQLiteStore) LatestTimestamp(path string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ts int64
	err := s.db.QueryRow(`SELECT ts FROM points WHERE path = ? ORDER BY ts DESC LIMIT 1`, path).Scan(&ts)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return ts, true, nil
}

func (s *SQLiteStore) LatestValue(path string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v float64
	err := s.db.QueryRow(`SELECT value FROM points WHERE path = ? ORDER BY ts DESC LIMIT 1`, path).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (s *SQLiteStore) SumRange(pattern string, sinceUnixTs, untilUnixTs int64) (float64, error) {
	like := strings.ReplaceAll(pattern, "*", "%")

	s.mu.Lock()
	defer s.mu.Unlock()
	var sum sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT SUM(value) FROM points WHERE path LIKE ? AND ts >= ? AND ts < ?`, like, sinceUnixTs, untilUnixTs,
	).Scan(&sum)
	if err != nil {
		return 0, err
	}
	return sum.Float64, nil
}
