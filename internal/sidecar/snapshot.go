package sidecar

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// snapshotVersion is the on-disk format version, carried in every snapshot
// so a future incompatible layout change can be detected rather than
// silently misparsed.
const snapshotVersion = 1

type snapshotEntry struct {
	ConnID string `cbor:"id"`
	Token  string `cbor:"token"`
}

// snapshotFile is the archive written by WriteSnapshot and read by
// LoadSnapshot: a format version, the unix timestamp the snapshot was taken
// at (used as the cold-start delta query's since-cursor), and the indexed
// entries.
type snapshotFile struct {
	Version   int             `cbor:"version"`
	Timestamp int64           `cbor:"timestamp"`
	Entries   []snapshotEntry `cbor:"entries"`
}

// LoadSnapshot reads and decodes the snapshot at path. The retrieval pack
// carries no portable mmap library (the spec's "memory-map it" is this
// sidecar's one stdlib-only component — see design notes), so this is a
// single buffered read; at sidecar-process-restart frequency and the sizes
// a token index reaches, that cost is immaterial next to the network round
// trip cold start makes anyway.
func LoadSnapshot(path string) (*snapshotFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var snap snapshotFile
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("sidecar: decode snapshot %s: %w", path, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("sidecar: snapshot %s has version %d, want %d", path, snap.Version, snapshotVersion)
	}
	return &snap, nil
}

// WriteSnapshot serializes the sidecar's current index to path via a
// temp-file-then-rename so a reader never observes a partially written file
// and the live snapshot is never truncated (§4.3.3).
func (s *Sidecar) WriteSnapshot(path string) error {
	snap := snapshotFile{
		Version:   snapshotVersion,
		Timestamp: time.Now().Unix(),
		Entries:   s.snapshotEntries(),
	}

	data, err := cbor.Marshal(snap)
	if err != nil {
		return fmt.Errorf("sidecar: encode snapshot: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("sidecar: write temp snapshot %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("sidecar: rename snapshot into place: %w", err)
	}
	return nil
}

// RunSnapshotLoop re-serializes the index to path on a fixed interval until
// stopped.
func (s *Sidecar) RunSnapshotLoop(path string, interval time.Duration) *SnapshotLoop {
	l := &SnapshotLoop{
		loop: newLoop(interval, func() {
			if err := s.WriteSnapshot(path); err != nil {
				logSnapshotError(path, err)
			}
		}),
	}
	l.loop.Start()
	return l
}

// SnapshotLoop wraps the background snapshot job; Stop blocks until any
// in-flight write completes.
type SnapshotLoop struct {
	loop *loop
}

func (l *SnapshotLoop) Stop() { l.loop.Stop() }

func logSnapshotError(path string, err error) {
	fmt.Fprintf(os.Stderr, "sidecar: snapshot write to %s failed: %v\n", filepath.Clean(path), err)
}
