package dataplane

import (
	"net/netip"
	"testing"
)

func TestLocalWireguardClient_AddRemovePeer(t *testing.T) {
	c := NewLocalWireguardClient()
	allowed := netip.MustParsePrefix("10.0.0.2/32")

	if err := c.AddPeer("wg0", "pub1", allowed); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	if err := c.AddPeer("wg0", "pub1", allowed); err != ErrPeerExists {
		t.Fatalf("expected ErrPeerExists, got %v", err)
	}

	peers, err := c.ListPeers("wg0")
	if err != nil {
		t.Fatalf("ListPeers: %v", err)
	}
	if len(peers) != 1 || peers[0].PublicKey != "pub1" {
		t.Fatalf("unexpected peers: %+v", peers)
	}

	if err := c.RemovePeer("wg0", "pub1"); err != nil {
		t.Fatalf("RemovePeer: %v", err)
	}
	if err := c.RemovePeer("wg0", "pub1"); err != ErrPeerNotFound {
		t.Fatalf("expected ErrPeerNotFound, got %v", err)
	}
}

func TestLocalWireguardClient_RemoveFromUnknownInterface(t *testing.T) {
	c := NewLocalWireguardClient()
	if err := c.RemovePeer("wg1", "pub1"); err != ErrPeerNotFound {
		t.Fatalf("expected ErrPeerNotFound, got %v", err)
	}
}
