package agent

import (
	"net/netip"
	"testing"

	"github.com/frkn-dev/pony/internal/config"
	"github.com/frkn-dev/pony/internal/dataplane"
	"github.com/frkn-dev/pony/internal/model"
)

func TestNodeID_StableAcrossCalls(t *testing.T) {
	a := nodeID("dev", "host-1")
	b := nodeID("dev", "host-1")
	if a != b {
		t.Fatalf("nodeID not stable: %q vs %q", a, b)
	}
}

func TestNodeID_DiffersByEnvOrHostname(t *testing.T) {
	base := nodeID("dev", "host-1")
	if nodeID("prod", "host-1") == base {
		t.Error("expected different env to produce a different id")
	}
	if nodeID("dev", "host-2") == base {
		t.Error("expected different hostname to produce a different id")
	}
}

func TestBuildNode_UsesConfiguredAddressWithoutRouteProbe(t *testing.T) {
	cfg := &config.AgentFileConfig{
		Env:       "dev",
		Hostname:  "host-1",
		Interface: "eth0",
		Address:   netip.MustParseAddr("203.0.113.5"),
	}
	dpCfg := &dataplane.Config{Inbounds: []dataplane.InboundConfig{{Tag: model.ProtoVmess, Port: 443}}}

	node, wg, err := buildNode(cfg, dpCfg)
	if err != nil {
		t.Fatalf("buildNode: %v", err)
	}
	if node.Address.String() != "203.0.113.5" {
		t.Errorf("Address = %s", node.Address)
	}
	if node.Env != "dev" || node.Hostname != "host-1" {
		t.Errorf("node = %+v", node)
	}
	if _, ok := node.Inbounds[model.ProtoVmess]; !ok {
		t.Error("expected vmess inbound merged in")
	}
	if wg == nil {
		t.Error("expected a non-nil wireguard client even with no interface configured")
	}
	if _, hasWG := node.Inbounds[model.ProtoWireguard]; hasWG {
		t.Error("expected no wireguard inbound when WireguardFileConfig.Interface is empty")
	}
	if node.ID != nodeID("dev", "host-1") {
		t.Errorf("node.ID = %q, want stable id", node.ID)
	}
}

func TestBuildNode_MergesWireguardInterface(t *testing.T) {
	cfg := &config.AgentFileConfig{
		Env:     "dev",
		Address: netip.MustParseAddr("203.0.113.5"),
		Wireguard: config.WireguardFileConfig{
			Interface: "wg0",
			PubKey:    "pub",
			Port:      51820,
		},
	}
	dpCfg := &dataplane.Config{Inbounds: []dataplane.InboundConfig{{Tag: model.ProtoVmess, Port: 443}}}

	node, _, err := buildNode(cfg, dpCfg)
	if err != nil {
		t.Fatalf("buildNode: %v", err)
	}
	wgIb, ok := node.Inbounds[model.ProtoWireguard]
	if !ok || wgIb.Wireguard == nil || wgIb.Wireguard.Interface != "wg0" {
		t.Errorf("expected wireguard inbound merged, got %+v", node.Inbounds)
	}
}
