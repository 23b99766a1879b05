// Package placement implements WireGuard peer placement: least-loaded node
// selection and CIDR-aware address allocation (spec.md §4.1.3).
package placement

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/netip"

	"github.com/frkn-dev/pony/internal/cache"
	"github.com/frkn-dev/pony/internal/model"
)

var (
	// ErrNoCandidateNode means no node in the requested env advertises a
	// WireGuard inbound.
	ErrNoCandidateNode = errors.New("no node with a wireguard inbound in this env")
	// ErrAddressTaken means the caller-supplied address is already bound to
	// another connection on the same node.
	ErrAddressTaken = errors.New("address already taken for this node")
	// ErrAddressOutOfNetwork means an address (caller-supplied or
	// allocated) falls outside the node's WireGuard network CIDR.
	ErrAddressOutOfNetwork = errors.New("address out of node network")
	// ErrCIDRTooWide rejects a caller-supplied prefix length above /32.
	ErrCIDRTooWide = errors.New("cidr must be 0..=32")
	// ErrNodeMissingWireguard means the node exists but has no WireGuard
	// inbound, so it cannot host a peer.
	ErrNodeMissingWireguard = errors.New("node has no wireguard inbound")
)

// SelectLeastLoadedNode picks the candidate node in env with a WireGuard
// inbound and the fewest non-deleted WireGuard connections. Ties are broken
// uniformly at random. Returns ErrNoCandidateNode if env has no such node.
//
// Callers should invoke this inside c.Do or c.View so the load snapshot it
// reads cannot be invalidated by a concurrent placement before the caller
// commits its own connection.
func SelectLeastLoadedNode(c *cache.Cache, env string) (model.Node, error) {
	var candidates []model.Node
	c.RangeNodes(func(n model.Node) bool {
		if n.Env == env {
			if _, ok := n.Inbounds[model.ProtoWireguard]; ok {
				candidates = append(candidates, n)
			}
		}
		return true
	})
	if len(candidates) == 0 {
		return model.Node{}, ErrNoCandidateNode
	}

	loads := c.WireguardLoad(env)
	minLoad := -1
	var least []model.Node
	for _, n := range candidates {
		load := loads[n.ID]
		switch {
		case minLoad == -1 || load < minLoad:
			minLoad = load
			least = []model.Node{n}
		case load == minLoad:
			least = append(least, n)
		}
	}

	if len(least) == 1 {
		return least[0], nil
	}
	idx, err := randomIndex(len(least))
	if err != nil {
		return model.Node{}, err
	}
	return least[idx], nil
}

// ResolveNode validates an explicit node_id for a WireGuard connection
// request: it must exist, belong to env, and advertise a WireGuard inbound.
func ResolveNode(c *cache.Cache, env, nodeID string) (model.Node, error) {
	var found model.Node
	var ok bool
	c.RangeNodes(func(n model.Node) bool {
		if n.ID == nodeID {
			found, ok = n, true
			return false
		}
		return true
	})
	if !ok {
		return model.Node{}, fmt.Errorf("%w: node_id %q", ErrNoCandidateNode, nodeID)
	}
	if found.Env != env {
		return model.Node{}, fmt.Errorf("%w: node_id %q is in a different env", ErrNoCandidateNode, nodeID)
	}
	if _, hasWG := found.Inbounds[model.ProtoWireguard]; !hasWG {
		return model.Node{}, ErrNodeMissingWireguard
	}
	return found, nil
}

// ValidateExplicitParam checks a caller-supplied WgParam against the
// uniqueness and network-membership invariants of §3/§8, without mutating
// the cache. Run inside c.Do/c.View for a consistent read.
func ValidateExplicitParam(c *cache.Cache, node model.Node, param model.WgParam, cidrBits int) error {
	if cidrBits > 32 {
		return ErrCIDRTooWide
	}
	if c.WireguardAddressTaken(node.ID, param) {
		return ErrAddressTaken
	}
	wg := node.Inbounds[model.ProtoWireguard].Wireguard
	if wg == nil {
		return ErrNodeMissingWireguard
	}
	if !wg.Network.Contains(param.Address) {
		return ErrAddressOutOfNetwork
	}
	return nil
}

// AllocateAddress picks the next free address for node: one past the
// maximum of the node's existing WireGuard connection addresses, or the
// interface's base address if it has none. Run inside c.Do/c.View so the
// existing-address read and the caller's subsequent insert are atomic.
func AllocateAddress(c *cache.Cache, node model.Node) (netip.Addr, error) {
	wg := node.Inbounds[model.ProtoWireguard].Wireguard
	if wg == nil {
		return netip.Addr{}, ErrNodeMissingWireguard
	}

	max := wg.Address
	for _, p := range c.WireguardAddressesForNode(node.ID) {
		if p.Address.Compare(max) > 0 {
			max = p.Address
		}
	}

	next, err := nextAddr(max)
	if err != nil {
		return netip.Addr{}, err
	}
	if !wg.Network.Contains(next) {
		return netip.Addr{}, ErrAddressOutOfNetwork
	}
	return next, nil
}

func nextAddr(a netip.Addr) (netip.Addr, error) {
	if !a.Is4() {
		return netip.Addr{}, fmt.Errorf("only IPv4 WireGuard addresses are supported, got %s", a)
	}
	b := a.As4()
	for i := 3; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return netip.AddrFrom4(b), nil
		}
		b[i] = 0
	}
	return netip.Addr{}, fmt.Errorf("address space exhausted incrementing past %s", a)
}

// GenerateKeypair returns a fresh base64-encoded X25519 keypair for a new
// WireGuard peer (§4.1.3 "generate a fresh X25519 keypair").
func GenerateKeypair() (model.Keys, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return model.Keys{}, fmt.Errorf("generate wireguard keypair: %w", err)
	}
	return model.Keys{
		Priv: base64.StdEncoding.EncodeToString(priv.Bytes()),
		Pub:  base64.StdEncoding.EncodeToString(priv.PublicKey().Bytes()),
	}, nil
}

func randomIndex(n int) (int, error) {
	bi, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("select random placement candidate: %w", err)
	}
	return int(bi.Int64()), nil
}
