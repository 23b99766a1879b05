package sidecar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/frkn-dev/pony/internal/agent"
	"github.com/frkn-dev/pony/internal/model"
)

// ColdStart implements §4.3.1: load the on-disk snapshot if one exists, then
// ask the orchestrator to publish every Hysteria2 connection touched since
// the snapshot's timestamp and wait for that delta to arrive through the
// already-running subscriber (s must already be subscribed via Subscribe
// before this is called). With no snapshot present this degrades to a full
// republish (lastUpdate 0 means "since the beginning"). ctx's deadline
// bounds the wait; the caller (cmd/sidecar) is expected to pass one.
//
// The request only triggers publication; the orchestrator's response is a
// bare ack and carries no connection data, matching the original's
// publish-then-ack handling (internal/api.HandleListConnections) rather than
// parsing a connection list out of the HTTP body.
func (s *Sidecar) ColdStart(ctx context.Context, snapshotPath string, client *agent.RESTClient) error {
	var since int64
	snap, err := LoadSnapshot(snapshotPath)
	switch {
	case err == nil:
		s.loadEntries(snap.Entries)
		since = snap.Timestamp
		log.Printf("sidecar: loaded snapshot %s with %d entries from %d", snapshotPath, len(snap.Entries), since)
	case errors.Is(err, os.ErrNotExist):
		log.Printf("sidecar: no snapshot at %s, cold starting from scratch", snapshotPath)
	default:
		return fmt.Errorf("sidecar: load snapshot: %w", err)
	}

	delta := s.armDelta()

	if err := client.RequestConnectionDelta(ctx, s.env, model.ProtoHysteria2, since); err != nil {
		return fmt.Errorf("sidecar: delta catch-up: %w", err)
	}

	select {
	case <-delta:
		log.Printf("sidecar: cold start complete, %d connections indexed after delta catch-up", s.Len())
	case <-ctx.Done():
		log.Printf("sidecar: cold start: no delta batch received before %v, starting with %d connections from snapshot", ctx.Err(), s.Len())
	}
	return nil
}
