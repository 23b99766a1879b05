package orchestrator

import (
	"testing"
	"time"

	"github.com/frkn-dev/pony/internal/model"
)

func TestHealthLoop_OfflineWhenHeartbeatMissing(t *testing.T) {
	o := newTestOrchestrator(t)
	seedNode(t, o, "dev", "n1", false)

	h := NewHealthLoop(o)
	h.tick()

	n, _ := o.GetNode("dev", "n1")
	if n.Status != model.NodeOffline {
		t.Fatalf("expected Offline with no heartbeat, got %s", n.Status)
	}
}

func TestHealthLoop_OnlineWhenHeartbeatFresh(t *testing.T) {
	o := newTestOrchestrator(t)
	seedNode(t, o, "dev", "n1", false)

	if err := o.Timeseries.Record("dev.host-n1.n1.heartbeat", 1, time.Now().Unix()); err != nil {
		t.Fatalf("record heartbeat: %v", err)
	}

	h := NewHealthLoop(o)
	h.tick()

	n, _ := o.GetNode("dev", "n1")
	if n.Status != model.NodeOnline {
		t.Fatalf("expected Online with fresh heartbeat, got %s", n.Status)
	}
}

func TestHealthLoop_OnlineGoesOfflineAfterTimeout(t *testing.T) {
	o := newTestOrchestrator(t)
	seedNode(t, o, "dev", "n1", false)

	stale := time.Now().Add(-2 * o.Env.HealthTimeout).Unix()
	if err := o.Timeseries.Record("dev.host-n1.n1.heartbeat", 1, stale); err != nil {
		t.Fatalf("record heartbeat: %v", err)
	}

	h := NewHealthLoop(o)
	h.tick()

	n, _ := o.GetNode("dev", "n1")
	if n.Status != model.NodeOffline {
		t.Fatalf("expected Offline after stale heartbeat, got %s", n.Status)
	}
}
