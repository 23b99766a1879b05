package dataplane

import (
	"fmt"
	"net/netip"
	"sync"
)

// ErrPeerExists is returned by AddPeer when a peer with the given public key
// is already present on the interface, matching §4.2.2's "if peer already
// exists, fail".
var ErrPeerExists = fmt.Errorf("dataplane: peer already exists")

// ErrPeerNotFound is returned by RemovePeer when no such peer is present.
var ErrPeerNotFound = fmt.Errorf("dataplane: peer not found")

// Peer is one WireGuard peer entry as reported by ListPeers.
type Peer struct {
	PublicKey string
	AllowedIP netip.Prefix
}

// WireguardClient is the opaque local WireGuard interface driver (§1: "accept
// as an opaque peer CRUD API"). The kernel/userspace interface itself is out
// of scope; this is the seam the node agent's subscriber calls into.
type WireguardClient interface {
	AddPeer(iface, pubKey string, allowedIP netip.Prefix) error
	RemovePeer(iface, pubKey string) error
	ListPeers(iface string) ([]Peer, error)
}

// localWireguardClient tracks peers per interface in memory. It stands in
// for the real kernel/userspace driver, which this module treats as opaque;
// callers needing an actual interface need only satisfy WireguardClient.
type localWireguardClient struct {
	mu    sync.Mutex
	peers map[string]map[string]netip.Prefix // iface -> pubkey -> allowed IP
}

// NewLocalWireguardClient returns an in-memory WireguardClient.
func NewLocalWireguardClient() WireguardClient {
	return &localWireguardClient{peers: make(map[string]map[string]netip.Prefix)}
}

func (c *localWireguardClient) AddPeer(iface, pubKey string, allowedIP netip.Prefix) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ifacePeers, ok := c.peers[iface]
	if !ok {
		ifacePeers = make(map[string]netip.Prefix)
		c.peers[iface] = ifacePeers
	}
	if _, exists := ifacePeers[pubKey]; exists {
		return ErrPeerExists
	}
	ifacePeers[pubKey] = allowedIP
	return nil
}

func (c *localWireguardClient) RemovePeer(iface, pubKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ifacePeers, ok := c.peers[iface]
	if !ok {
		return ErrPeerNotFound
	}
	if _, exists := ifacePeers[pubKey]; !exists {
		return ErrPeerNotFound
	}
	delete(ifacePeers, pubKey)
	return nil
}

func (c *localWireguardClient) ListPeers(iface string) ([]Peer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ifacePeers := c.peers[iface]
	peers := make([]Peer, 0, len(ifacePeers))
	for pub, allowed := range ifacePeers {
		peers = append(peers, Peer{PublicKey: pub, AllowedIP: allowed})
	}
	return peers, nil
}
