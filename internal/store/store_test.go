package store

import (
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/frkn-dev/pony/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testNode(env, id string) model.Node {
	return model.Node{
		ID:      id,
		Env:     env,
		Hostname: "host-" + id,
		Address: netip.MustParseAddr("10.1.0.1"),
		Cores:   4,
		Status:  model.NodeOnline,
		Inbounds: map[model.ProtoTag]model.Inbound{
			model.ProtoWireguard: {
				Tag:  model.ProtoWireguard,
				Port: 51820,
				Wireguard: &model.WireguardSettings{
					PubKey:  "pub",
					PrivKey: "priv",
					Network: netip.MustParsePrefix("10.0.0.0/24"),
					Address: netip.MustParseAddr("10.0.0.1"),
					Port:    51820,
				},
			},
		},
	}
}

func TestStore_UpsertNode_CreateThenUpdate(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UnixNano()

	created, err := s.UpsertNode(testNode("dev", "n1"), now)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !created {
		t.Fatal("expected created=true on first upsert")
	}

	n := testNode("dev", "n1")
	n.Hostname = "renamed"
	created, err = s.UpsertNode(n, now+1)
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if created {
		t.Fatal("expected created=false on second upsert")
	}

	got, err := s.GetNode("dev", "n1")
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if got.Hostname != "renamed" {
		t.Errorf("expected renamed hostname, got %q", got.Hostname)
	}
	if _, ok := got.Inbounds[model.ProtoWireguard]; !ok {
		t.Errorf("expected wireguard inbound to survive round trip")
	}
}

func TestStore_ConnectionLifecycle(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UnixNano()

	c := model.Connection{
		ID:    "conn-1",
		Env:   "dev",
		Proto: model.ShadowsocksProto{Password: "initial"},
	}
	if err := s.InsertConnection(c, now); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.InsertConnection(c, now); err == nil {
		t.Fatal("expected conflict on duplicate insert")
	}

	newPw := "changed"
	updated, changed, err := s.UpdateConnectionFields("conn-1", model.UpdateConnectionRequest{Password: &newPw}, now+1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !changed {
		t.Fatal("expected changed=true")
	}
	ss := updated.Proto.(model.ShadowsocksProto)
	if ss.Password != "changed" {
		t.Errorf("expected password changed, got %q", ss.Password)
	}

	_, changed, err = s.UpdateConnectionFields("conn-1", model.UpdateConnectionRequest{Password: &newPw}, now+2)
	if err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if changed {
		t.Fatal("expected NotModified (changed=false) for identical password")
	}

	wasDeleted, err := s.SoftDeleteConnection("conn-1", now+3)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if wasDeleted {
		t.Fatal("expected wasAlreadyDeleted=false on first delete")
	}

	wasDeleted, err = s.SoftDeleteConnection("conn-1", now+4)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if !wasDeleted {
		t.Fatal("expected wasAlreadyDeleted=true on second delete")
	}
}

func TestStore_WireguardAddressTracking(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UnixNano()

	for i, addr := range []string{"10.0.0.2", "10.0.0.3"} {
		c := model.Connection{
			ID:  "wg-" + addr,
			Env: "dev",
			Proto: model.WireguardProto{
				Param:  model.WgParam{Address: netip.MustParseAddr(addr)},
				NodeID: "n1",
			},
		}
		if err := s.InsertConnection(c, now+int64(i)); err != nil {
			t.Fatalf("insert %s: %v", addr, err)
		}
	}

	addrs, err := s.ListWireguardAddressesForNode("n1")
	if err != nil {
		t.Fatalf("list addresses: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(addrs))
	}

	counts, err := s.CountWireguardByNode("dev")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["n1"] != 2 {
		t.Errorf("expected load 2 for n1, got %d", counts["n1"])
	}
}

func TestStore_SubscriptionLifecycle(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	sub := model.Subscription{ID: "sub-1", ExpiresAt: now.Add(24 * time.Hour)}
	if err := s.UpsertSubscription(sub, now.UnixNano()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetSubscription("sub-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsActive(now) {
		t.Error("expected active subscription")
	}

	if err := s.SoftDeleteSubscription("sub-1", now.UnixNano()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = s.GetSubscription("sub-1")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got.IsActive(now) {
		t.Error("expected inactive subscription after soft delete")
	}
}
