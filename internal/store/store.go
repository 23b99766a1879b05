package store

import (
	"database/sql"
	"sync"
)

// Store wraps the durable SQLite database and provides transactional CRUD
// for nodes, inbounds, connections, and subscriptions. All writes are
// serialized by an internal mutex, matching the single-writer WAL setup in
// OpenDB: one connection, one writer at a time.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens path, applies migrations, and returns a ready Store.
func New(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open, already-migrated database, such as an
// in-memory one (":memory:"), without running migrations.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}
