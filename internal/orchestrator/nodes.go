package orchestrator

import (
	"fmt"

	"github.com/frkn-dev/pony/internal/model"
)

// RegisterNode upserts a node and its inbounds (4.1.1). Node registration
// never emits a pub/sub event: Message is conn_id-keyed and has no node
// lifecycle variant, so agents learn about new nodes only by being told
// their own identity directly at startup (4.2.1).
func (o *Orchestrator) RegisterNode(n model.Node) (model.OperationStatus, error) {
	if err := validateEnv(n.Env); err != nil {
		return model.StatusBadRequest, err
	}
	if n.ID == "" {
		return model.StatusBadRequest, fmt.Errorf("node id must not be empty")
	}
	if wg, ok := n.Inbounds[model.ProtoWireguard]; ok && wg.Wireguard != nil {
		if wg.Wireguard.Network.Bits() > 32 {
			return model.StatusBadRequest, fmt.Errorf("wireguard network cidr must be <= /32")
		}
	}
	if n.Status == "" {
		n.Status = model.NodeOnline
	}

	created, err := o.Store.UpsertNode(n, nowNs())
	if err != nil {
		return model.StatusBadRequest, fmt.Errorf("register node: %w", err)
	}

	o.Cache.PutNode(n)

	if created {
		return model.StatusOk, nil
	}
	return model.StatusUpdated, nil
}

// GetNode returns a cached node by (env, id).
func (o *Orchestrator) GetNode(env, id string) (model.Node, bool) {
	return o.Cache.GetNode(model.NodeKey{Env: env, ID: id})
}

// ListNodes returns every cached node in env, used by GET /nodes.
func (o *Orchestrator) ListNodes(env string) []model.Node {
	return o.Cache.NodesInEnv(env)
}
