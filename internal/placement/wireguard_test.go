package placement

import (
	"net/netip"
	"testing"

	"github.com/frkn-dev/pony/internal/cache"
	"github.com/frkn-dev/pony/internal/model"
)

func wgNode(id, env, baseAddr string) model.Node {
	return model.Node{
		ID:  id,
		Env: env,
		Inbounds: map[model.ProtoTag]model.Inbound{
			model.ProtoWireguard: {
				Tag: model.ProtoWireguard,
				Wireguard: &model.WireguardSettings{
					Network: netip.MustParsePrefix("10.0.0.0/24"),
					Address: netip.MustParseAddr(baseAddr),
				},
			},
		},
	}
}

func TestSelectLeastLoadedNode_PicksFewerConnections(t *testing.T) {
	c := cache.New()
	c.PutNode(wgNode("n1", "dev", "10.0.0.1"))
	c.PutNode(wgNode("n2", "dev", "10.0.0.1"))

	c.PutConnection(model.Connection{
		ID:    "c1",
		Env:   "dev",
		Proto: model.WireguardProto{NodeID: "n1", Param: model.WgParam{Address: netip.MustParseAddr("10.0.0.2")}},
	})

	got, err := SelectLeastLoadedNode(c, "dev")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.ID != "n2" {
		t.Errorf("expected n2 (load 0) to win over n1 (load 1), got %s", got.ID)
	}
}

func TestSelectLeastLoadedNode_NoCandidates(t *testing.T) {
	c := cache.New()
	c.PutNode(model.Node{ID: "n1", Env: "dev"}) // no wireguard inbound
	if _, err := SelectLeastLoadedNode(c, "dev"); err != ErrNoCandidateNode {
		t.Fatalf("expected ErrNoCandidateNode, got %v", err)
	}
}

func TestAllocateAddress_FirstAndSubsequent(t *testing.T) {
	c := cache.New()
	node := wgNode("n1", "dev", "10.0.0.1")
	c.PutNode(node)

	first, err := AllocateAddress(c, node)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if first.String() != "10.0.0.2" {
		t.Errorf("expected first address 10.0.0.2, got %s", first)
	}

	c.PutConnection(model.Connection{
		ID:    "c1",
		Env:   "dev",
		Proto: model.WireguardProto{NodeID: "n1", Param: model.WgParam{Address: first}},
	})

	second, err := AllocateAddress(c, node)
	if err != nil {
		t.Fatalf("allocate second: %v", err)
	}
	if second.String() != "10.0.0.3" {
		t.Errorf("expected second address 10.0.0.3, got %s", second)
	}
}

func TestValidateExplicitParam(t *testing.T) {
	c := cache.New()
	node := wgNode("n1", "dev", "10.0.0.1")
	c.PutNode(node)
	c.PutConnection(model.Connection{
		ID:    "c1",
		Env:   "dev",
		Proto: model.WireguardProto{NodeID: "n1", Param: model.WgParam{Address: netip.MustParseAddr("10.0.0.2")}},
	})

	taken := model.WgParam{Address: netip.MustParseAddr("10.0.0.2")}
	if err := ValidateExplicitParam(c, node, taken, 32); err != ErrAddressTaken {
		t.Errorf("expected ErrAddressTaken, got %v", err)
	}

	outside := model.WgParam{Address: netip.MustParseAddr("10.0.1.5")}
	if err := ValidateExplicitParam(c, node, outside, 32); err != ErrAddressOutOfNetwork {
		t.Errorf("expected ErrAddressOutOfNetwork, got %v", err)
	}

	free := model.WgParam{Address: netip.MustParseAddr("10.0.0.9")}
	if err := ValidateExplicitParam(c, node, free, 32); err != nil {
		t.Errorf("expected valid param to pass, got %v", err)
	}

	if err := ValidateExplicitParam(c, node, free, 40); err != ErrCIDRTooWide {
		t.Errorf("expected ErrCIDRTooWide, got %v", err)
	}
}

func TestGenerateKeypair_ProducesDistinctBase64Keys(t *testing.T) {
	k1, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	k2, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if k1.Priv == k2.Priv || k1.Pub == k2.Pub {
		t.Error("expected distinct keys across calls")
	}
	if k1.Priv == "" || k1.Pub == "" {
		t.Error("expected non-empty keys")
	}
}
