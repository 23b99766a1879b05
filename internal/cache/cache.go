// Package cache implements the in-memory view described in spec.md §3
// ("Memory cache layout"): sets of Node/Connection/Subscription, shared by
// all three process roles but parameterized by which entities a role
// populates. The orchestrator fills all three maps from the durable store at
// startup; the agent keeps only its own node and that node's connections;
// the sidecar keeps only its own node and Hysteria2 connections.
//
// Per-key reads and writes go through xsync.Map, which is already safe for
// concurrent use without an external lock. The coarse sync.RWMutex exists
// only for operations that must observe or mutate more than one key
// atomically — WireGuard address uniqueness and least-loaded placement
// (§4.1.3) — matching the "single readers-writer lock per process" policy
// of §5 for those compound paths.
package cache

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/frkn-dev/pony/internal/model"
)

// Cache holds the three entity maps for one process. The zero value is not
// usable; construct with New.
type Cache struct {
	nodes         *xsync.Map[model.NodeKey, model.Node]
	connections   *xsync.Map[string, model.Connection]
	subscriptions *xsync.Map[string, model.Subscription]

	mu sync.RWMutex
}

// New returns an empty Cache ready to be populated by a full reload
// (orchestrator), a snapshot+tail (sidecar), or a sync request (agent).
func New() *Cache {
	return &Cache{
		nodes:         xsync.NewMap[model.NodeKey, model.Node](),
		connections:   xsync.NewMap[string, model.Connection](),
		subscriptions: xsync.NewMap[string, model.Subscription](),
	}
}

// Do runs fn while holding the write lock. Use it for any sequence that
// reads one or more entries and then decides what to write based on what it
// saw — placement, address allocation, uniqueness checks — where a lock-free
// single-key map operation would not be atomic across the sequence.
func (c *Cache) Do(fn func(c *Cache)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// View runs fn while holding the read lock, for read-only sequences that
// must see a consistent snapshot across multiple keys (e.g. computing load
// counts while no placement write can interleave).
func (c *Cache) View(fn func(c *Cache)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c)
}
