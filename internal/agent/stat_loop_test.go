package agent

import (
	"context"
	"testing"

	"github.com/frkn-dev/pony/internal/dataplane"
	"github.com/frkn-dev/pony/internal/model"
)

func TestCollectConnStat_JoinsUplinkDownlinkOnline(t *testing.T) {
	a, _, stats := newTestAgent()
	email := account("conn-1")
	stats.stats[dataplane.UserTrafficStat(email, dataplane.Uplink)] = 100
	stats.stats[dataplane.UserTrafficStat(email, dataplane.Downlink)] = 200
	stats.online[dataplane.UserOnlineStat(email)] = 1

	stat, err := a.collectConnStat(context.Background(), model.Connection{ID: "conn-1"})
	if err != nil {
		t.Fatalf("collectConnStat: %v", err)
	}
	if stat.Uplink != 100 || stat.Downlink != 200 || !stat.Online {
		t.Errorf("stat = %+v", stat)
	}
}

func TestCollectConnStat_PropagatesError(t *testing.T) {
	a, _, stats := newTestAgent()
	stats.statErr = errFakeStat

	if _, err := a.collectConnStat(context.Background(), model.Connection{ID: "conn-1"}); err == nil {
		t.Fatal("expected error from collectConnStat")
	}
}

func TestCollectInboundStat_SetsNodeCounters(t *testing.T) {
	a, handler, stats := newTestAgent()
	tag := model.ProtoVmess
	a.node.Inbounds[tag] = model.Inbound{Tag: tag}
	stats.stats[dataplane.InboundTrafficStat(tag, dataplane.Uplink)] = 10
	stats.stats[dataplane.InboundTrafficStat(tag, dataplane.Downlink)] = 20
	handler.counts[tag] = 3

	a.collectInboundStat(context.Background(), tag)

	ib := a.Node().Inbounds[tag]
	if ib.Uplink != 10 || ib.Downlink != 20 || ib.ConnCount != 3 {
		t.Errorf("inbound = %+v", ib)
	}
}

func TestCollectInboundStat_ErrorLeavesCountersUnchanged(t *testing.T) {
	a, _, stats := newTestAgent()
	tag := model.ProtoVmess
	a.node.Inbounds[tag] = model.Inbound{Tag: tag, Uplink: 5}
	stats.statErr = errFakeStat

	a.collectInboundStat(context.Background(), tag)

	if a.Node().Inbounds[tag].Uplink != 5 {
		t.Errorf("expected counters unchanged on error, got %+v", a.Node().Inbounds[tag])
	}
}

func TestStatTick_StagesFailedConnectionPushForRetry(t *testing.T) {
	a, _, stats := newTestAgent()
	email := account("conn-1")
	stats.online[dataplane.UserOnlineStat(email)] = 0
	a.cache.PutConnection(model.Connection{ID: "conn-1"})

	// The RESTClient points at an address nothing listens on, so any push
	// attempt fails and must be staged; confirm the tick doesn't panic and
	// returns the connection for retry.
	a.rest = NewRESTClient("http://127.0.0.1:1", "")

	failed := a.statTick(context.Background(), nil)
	if len(failed) != 1 || failed[0].id != "conn-1" {
		t.Fatalf("expected conn-1 staged for retry, got %+v", failed)
	}
}

func TestStatTick_SkipsDeletedConnections(t *testing.T) {
	a, _, _ := newTestAgent()
	a.rest = NewRESTClient("http://127.0.0.1:1", "")
	a.cache.PutConnection(model.Connection{ID: "conn-1", IsDeleted: true})

	failed := a.statTick(context.Background(), nil)
	if len(failed) != 0 {
		t.Fatalf("expected deleted connection skipped, got %+v", failed)
	}
}
