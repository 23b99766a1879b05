// Package agent implements the node agent (§4.2): startup/registration,
// the pub/sub event subscriber that reconciles the local proxy dataplane and
// WireGuard interface, the stat loop, and telemetry emission.
package agent

import (
	"sync"

	"github.com/frkn-dev/pony/internal/cache"
	"github.com/frkn-dev/pony/internal/config"
	"github.com/frkn-dev/pony/internal/dataplane"
	"github.com/frkn-dev/pony/internal/model"
	"github.com/frkn-dev/pony/internal/pubsub"
)

// Agent holds one node agent process's runtime state.
type Agent struct {
	cfg *config.AgentFileConfig

	mu   sync.RWMutex
	node model.Node

	cache *cache.Cache // connections only; agent has no node/subscription cache

	handler dataplane.HandlerClient
	stats   dataplane.StatsClient
	wg      dataplane.WireguardClient

	rest *RESTClient
	sub  *pubsub.Subscriber
}

// Node returns a snapshot of the agent's local Node record.
func (a *Agent) Node() model.Node {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.node
}

// setInboundCounters updates one inbound's rolling counters in place.
func (a *Agent) setInboundCounters(tag model.ProtoTag, uplink, downlink uint64, connCount int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ib, ok := a.node.Inbounds[tag]
	if !ok {
		return
	}
	ib.Uplink, ib.Downlink, ib.ConnCount = uplink, downlink, connCount
	a.node.Inbounds[tag] = ib
}
