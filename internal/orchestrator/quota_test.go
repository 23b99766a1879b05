package orchestrator

import (
	"testing"
	"time"

	"github.com/frkn-dev/pony/internal/model"
)

func TestQuotaLoop_ExpiresOverLimitTrial(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Env.DefaultTrialDailyLimitMB = 1 // 1 MB

	req := CreateConnectionRequest{ID: "c1", Env: "dev", ProtoTag: model.ProtoMtproto, IsTrial: true}
	if status, err := o.CreateConnection(req); err != nil || status != model.StatusOk {
		t.Fatalf("create: status=%s err=%v", status, err)
	}

	// 2 MB of uplink, well over the 1 MB default limit.
	if err := o.Timeseries.Record("dev.host.c1.uplink", 2*bytesPerMB, time.Now().Unix()); err != nil {
		t.Fatalf("record uplink: %v", err)
	}

	NewQuotaLoop(o).tick()

	conn, _ := o.GetConnection("c1")
	if conn.Status != model.ConnectionExpired {
		t.Fatalf("expected Expired, got %s", conn.Status)
	}
}

func TestQuotaLoop_LeavesUnderLimitTrialActive(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Env.DefaultTrialDailyLimitMB = 1000

	req := CreateConnectionRequest{ID: "c1", Env: "dev", ProtoTag: model.ProtoMtproto, IsTrial: true}
	if _, err := o.CreateConnection(req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := o.Timeseries.Record("dev.host.c1.uplink", 1024, time.Now().Unix()); err != nil {
		t.Fatalf("record uplink: %v", err)
	}

	NewQuotaLoop(o).tick()

	conn, _ := o.GetConnection("c1")
	if conn.Status != model.ConnectionActive {
		t.Fatalf("expected Active, got %s", conn.Status)
	}
}

func TestQuotaLoop_IgnoresUsageOutsideCurrent24hWindow(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Env.DefaultTrialDailyLimitMB = 1 // 1 MB

	req := CreateConnectionRequest{ID: "c1", Env: "dev", ProtoTag: model.ProtoMtproto, IsTrial: true}
	if _, err := o.CreateConnection(req); err != nil {
		t.Fatalf("create: %v", err)
	}
	conn, _ := o.GetConnection("c1")

	// Day 0 stayed under the 1 MB limit on its own. A later day, still
	// under the 1 MB limit on its own, would only push the unbounded
	// lifetime sum over the limit; it must not count against the current
	// 24h window that started at ModifiedAt.
	day0 := conn.ModifiedAt.Add(1 * time.Hour).Unix()
	day1 := conn.ModifiedAt.Add(25 * time.Hour).Unix()
	if err := o.Timeseries.Record("dev.host.c1.uplink", 800*1024, day0); err != nil {
		t.Fatalf("record day0 uplink: %v", err)
	}
	if err := o.Timeseries.Record("dev.host.c1.uplink", 800*1024, day1); err != nil {
		t.Fatalf("record day1 uplink: %v", err)
	}

	NewQuotaLoop(o).tick()

	got, _ := o.GetConnection("c1")
	if got.Status != model.ConnectionActive {
		t.Fatalf("expected Active (next-day usage must not count toward this window), got %s", got.Status)
	}
}

func TestReactivationLoop_ReactivatesOldExpiredTrial(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Env.QuotaReactivationAfter = time.Hour

	req := CreateConnectionRequest{ID: "c1", Env: "dev", ProtoTag: model.ProtoMtproto, IsTrial: true, DailyLimitMB: 1}
	if _, err := o.CreateConnection(req); err != nil {
		t.Fatalf("create: %v", err)
	}

	old := time.Now().Add(-2 * time.Hour).UnixNano()
	if err := o.Store.ExpireTrialConnection("c1", old); err != nil {
		t.Fatalf("expire: %v", err)
	}
	conn, _ := o.GetConnection("c1")
	conn.Status = model.ConnectionExpired
	o.Cache.PutConnection(conn)

	NewReactivationLoop(o).tick()

	got, _ := o.GetConnection("c1")
	if got.Status != model.ConnectionActive {
		t.Fatalf("expected reactivated to Active, got %s", got.Status)
	}
}
