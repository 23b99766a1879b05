package timeseries

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ts.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_LatestTimestamp(t *testing.T) {
	s := newTestStore(t)
	path := "dev.host1.uuid-1.heartbeat"

	if _, ok, err := s.LatestTimestamp(path); err != nil || ok {
		t.Fatalf("expected no data yet, ok=%v err=%v", ok, err)
	}

	if err := s.Record(path, 1, 100); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record(path, 1, 200); err != nil {
		t.Fatalf("record: %v", err)
	}

	ts, ok, err := s.LatestTimestamp(path)
	if err != nil || !ok {
		t.Fatalf("expected latest ts, ok=%v err=%v", ok, err)
	}
	if ts != 200 {
		t.Errorf("expected ts=200, got %d", ts)
	}
}

func TestSQLiteStore_SumRange_WildcardPattern(t *testing.T) {
	s := newTestStore(t)

	if err := s.Record("dev.host1.conn-1.uplink", 1000, 100); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record("dev.host2.conn-1.uplink", 2000, 200); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record("dev.host1.conn-1.uplink", 500, 50); err != nil {
		t.Fatalf("record: %v", err)
	}

	sum, err := s.SumRange("dev.*.conn-1.uplink", 100, 300)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 3000 {
		t.Errorf("expected sum=3000 (excluding the ts=50 point), got %v", sum)
	}
}

func TestSQLiteStore_SumRange_ExcludesPointsAtOrAfterUpperBound(t *testing.T) {
	s := newTestStore(t)

	if err := s.Record("dev.host1.conn-1.uplink", 1000, 100); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record("dev.host1.conn-1.uplink", 4000, 300); err != nil {
		t.Fatalf("record: %v", err)
	}

	sum, err := s.SumRange("dev.*.conn-1.uplink", 100, 300)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 1000 {
		t.Errorf("expected sum=1000 (excluding the ts=300 point at the upper bound), got %v", sum)
	}
}
