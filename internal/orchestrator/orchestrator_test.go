package orchestrator

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/frkn-dev/pony/internal/cache"
	"github.com/frkn-dev/pony/internal/config"
	"github.com/frkn-dev/pony/internal/model"
	"github.com/frkn-dev/pony/internal/store"
	"github.com/frkn-dev/pony/internal/timeseries"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "fleet.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ts, err := timeseries.NewSQLiteStore(filepath.Join(t.TempDir(), "ts.db"))
	if err != nil {
		t.Fatalf("new timeseries store: %v", err)
	}
	t.Cleanup(func() { ts.Close() })

	env := &config.EnvConfig{
		HealthInterval:           time.Minute,
		HealthTimeout:            90 * time.Second,
		QuotaInterval:            time.Minute,
		QuotaReactivationAfter:   24 * time.Hour,
		DefaultTrialDailyLimitMB: 1000,
	}

	return New(st, cache.New(), ts, nil, env)
}

func seedNode(t *testing.T, o *Orchestrator, env, id string, withWireguard bool) model.Node {
	t.Helper()

	n := model.Node{
		ID:       id,
		Env:      env,
		Hostname: "host-" + id,
		Cores:    4,
		MaxBandwidthBps: 1_000_000_000,
		Inbounds: map[model.ProtoTag]model.Inbound{},
	}
	if withWireguard {
		n.Inbounds[model.ProtoWireguard] = model.Inbound{
			Tag:  model.ProtoWireguard,
			Port: 51820,
			Wireguard: &model.WireguardSettings{
				PubKey:  "node-pub",
				PrivKey: "node-priv",
				Network: mustPrefix("10.0.0.0/24"),
				Address: mustAddr("10.0.0.1"),
				Port:    51820,
			},
		}
	}

	status, err := o.RegisterNode(n)
	if err != nil {
		t.Fatalf("register node: %v", err)
	}
	if status != model.StatusOk {
		t.Fatalf("expected StatusOk registering node, got %s", status)
	}
	n, _ = o.GetNode(env, id)
	return n
}
