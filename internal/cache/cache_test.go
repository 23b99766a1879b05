package cache

import (
	"net/netip"
	"testing"

	"github.com/frkn-dev/pony/internal/model"
)

func TestCache_NodesRoundTrip(t *testing.T) {
	c := New()
	n := model.Node{ID: "n1", Env: "dev", Hostname: "host-1"}
	c.PutNode(n)

	got, ok := c.GetNode(n.Key())
	if !ok {
		t.Fatal("expected node to be present")
	}
	if got.Hostname != "host-1" {
		t.Errorf("expected hostname host-1, got %q", got.Hostname)
	}

	if len(c.NodesInEnv("dev")) != 1 {
		t.Errorf("expected 1 node in env dev")
	}
	if len(c.NodesInEnv("prod")) != 0 {
		t.Errorf("expected 0 nodes in env prod")
	}

	c.DeleteNode(n.Key())
	if _, ok := c.GetNode(n.Key()); ok {
		t.Error("expected node to be gone after delete")
	}
}

func TestCache_WireguardLoadAndAddresses(t *testing.T) {
	c := New()
	mk := func(id, nodeID, addr string) model.Connection {
		return model.Connection{
			ID:  id,
			Env: "dev",
			Proto: model.WireguardProto{
				NodeID: nodeID,
				Param:  model.WgParam{Address: netip.MustParseAddr(addr)},
			},
		}
	}

	c.PutConnection(mk("c1", "n1", "10.0.0.2"))
	c.PutConnection(mk("c2", "n1", "10.0.0.3"))
	c.PutConnection(mk("c3", "n2", "10.0.1.2"))

	deleted := mk("c4", "n1", "10.0.0.4")
	deleted.IsDeleted = true
	c.PutConnection(deleted)

	loads := c.WireguardLoad("dev")
	if loads["n1"] != 2 {
		t.Errorf("expected load 2 for n1, got %d", loads["n1"])
	}
	if loads["n2"] != 1 {
		t.Errorf("expected load 1 for n2, got %d", loads["n2"])
	}

	addrs := c.WireguardAddressesForNode("n1")
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addresses for n1, got %d", len(addrs))
	}

	taken := model.WgParam{Address: netip.MustParseAddr("10.0.0.2")}
	if !c.WireguardAddressTaken("n1", taken) {
		t.Error("expected 10.0.0.2 to be taken on n1")
	}
	free := model.WgParam{Address: netip.MustParseAddr("10.0.0.5")}
	if c.WireguardAddressTaken("n1", free) {
		t.Error("expected 10.0.0.5 to be free on n1")
	}
	// A deleted connection's address must not count as taken.
	if c.WireguardAddressTaken("n1", model.WgParam{Address: netip.MustParseAddr("10.0.0.4")}) {
		t.Error("expected soft-deleted address 10.0.0.4 to be free")
	}
}

func TestCache_DoSerializesCompoundReadThenWrite(t *testing.T) {
	c := New()
	c.PutConnection(model.Connection{
		ID:    "c1",
		Env:   "dev",
		Proto: model.WireguardProto{NodeID: "n1", Param: model.WgParam{Address: netip.MustParseAddr("10.0.0.2")}},
	})

	var nextAddr netip.Addr
	c.Do(func(c *Cache) {
		addrs := c.WireguardAddressesForNode("n1")
		max := netip.MustParseAddr("10.0.0.1")
		for _, p := range addrs {
			if p.Address.Compare(max) > 0 {
				max = p.Address
			}
		}
		next := max.As4()
		next[3]++
		nextAddr = netip.AddrFrom4(next)
		c.PutConnection(model.Connection{
			ID:    "c2",
			Env:   "dev",
			Proto: model.WireguardProto{NodeID: "n1", Param: model.WgParam{Address: nextAddr}},
		})
	})

	if nextAddr.String() != "10.0.0.3" {
		t.Errorf("expected allocated address 10.0.0.3, got %s", nextAddr)
	}
	if len(c.WireguardAddressesForNode("n1")) != 2 {
		t.Error("expected 2 addresses for n1 after Do")
	}
}

func TestCache_Subscriptions(t *testing.T) {
	c := New()
	sub := model.Subscription{ID: "s1"}
	c.PutSubscription(sub)

	if _, ok := c.GetSubscription("s1"); !ok {
		t.Fatal("expected subscription present")
	}
	if c.SubscriptionCount() != 1 {
		t.Errorf("expected count 1, got %d", c.SubscriptionCount())
	}
	c.DeleteSubscription("s1")
	if _, ok := c.GetSubscription("s1"); ok {
		t.Error("expected subscription gone after delete")
	}
}
