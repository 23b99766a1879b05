package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/frkn-dev/pony/internal/cache"
	"github.com/frkn-dev/pony/internal/model"
	"github.com/frkn-dev/pony/internal/placement"
	"github.com/frkn-dev/pony/internal/store"
)

// CreateConnectionRequest is the caller-supplied shape for CreateConnection.
// Only the fields relevant to ProtoTag are consulted.
type CreateConnectionRequest struct {
	ID             string
	Env            string
	SubscriptionID string
	ProtoTag       model.ProtoTag

	Password string // Shadowsocks only

	NodeID   string         // Wireguard: explicit placement; empty selects least-loaded
	WgParam  *model.WgParam // Wireguard: pre-generated key+address; nil allocates fresh
	CIDRBits int            // Wireguard: prefix length accompanying WgParam; 0 means 32

	Hysteria2Token string

	IsTrial      bool
	DailyLimitMB uint64
}

// CreateConnection runs the write pipeline (4.1.1) for a new connection,
// including WireGuard placement and address allocation (4.1.3) when
// req.ProtoTag is Wireguard.
func (o *Orchestrator) CreateConnection(req CreateConnectionRequest) (model.OperationStatus, error) {
	if err := validateEnv(req.Env); err != nil {
		return model.StatusBadRequest, err
	}
	if req.ID == "" {
		return model.StatusBadRequest, fmt.Errorf("connection id must not be empty")
	}
	if req.SubscriptionID != "" {
		if _, ok := o.Cache.GetSubscription(req.SubscriptionID); !ok {
			return model.StatusBadRequest, fmt.Errorf("subscription %q not found", req.SubscriptionID)
		}
	}
	if _, exists := o.Cache.GetConnection(req.ID); exists {
		return model.StatusAlreadyExist, nil
	}

	if req.ProtoTag == model.ProtoWireguard {
		return o.createWireguardConnection(req)
	}

	proto, err := protoFromRequest(req)
	if err != nil {
		return model.StatusBadRequest, err
	}

	conn := model.Connection{
		ID:             req.ID,
		Env:            req.Env,
		SubscriptionID: req.SubscriptionID,
		Proto:          proto,
		Status:         model.ConnectionActive,
		IsTrial:        req.IsTrial,
		DailyLimitMB:   req.DailyLimitMB,
	}

	now := nowNs()
	if err := o.Store.InsertConnection(conn, now); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.StatusAlreadyExist, nil
		}
		return model.StatusBadRequest, fmt.Errorf("create connection: %w", err)
	}
	conn.CreatedAt = time.Unix(0, now).UTC()
	conn.ModifiedAt = conn.CreatedAt

	o.Cache.PutConnection(conn)
	o.publish(req.Env, proto, messageForConnection(model.ActionCreate, conn))

	return model.StatusOk, nil
}

func protoFromRequest(req CreateConnectionRequest) (model.Proto, error) {
	switch req.ProtoTag {
	case model.ProtoShadowsocks:
		if req.Password == "" {
			return nil, fmt.Errorf("password is required for shadowsocks")
		}
		return model.ShadowsocksProto{Password: req.Password}, nil
	case model.ProtoHysteria2:
		return model.Hysteria2Proto{Token: req.Hysteria2Token}, nil
	case model.ProtoMtproto:
		return model.MtprotoProto{}, nil
	case model.ProtoVlessTCPReality, model.ProtoVlessGRPCReality, model.ProtoVlessXHTTPReality, model.ProtoVmess:
		return model.XrayProto{ProtoTag: req.ProtoTag}, nil
	default:
		return nil, fmt.Errorf("unknown proto tag %q", req.ProtoTag)
	}
}

// createWireguardConnection runs placement, address allocation, the store
// write, and the cache write as one sequence guarded by Cache.Do: the load
// snapshot and address-uniqueness check placement reads must stay valid
// until this connection is actually committed, or two concurrent requests
// could both be handed the same address (4.1.3).
func (o *Orchestrator) createWireguardConnection(req CreateConnectionRequest) (model.OperationStatus, error) {
	var (
		proto     model.WireguardProto
		status    model.OperationStatus
		opErr     error
		published model.Connection
	)

	o.Cache.Do(func(c *cache.Cache) {
		var node model.Node
		if req.NodeID != "" {
			node, opErr = placement.ResolveNode(c, req.Env, req.NodeID)
		} else {
			node, opErr = placement.SelectLeastLoadedNode(c, req.Env)
		}
		if opErr != nil {
			status = model.StatusNotFound
			return
		}

		var param model.WgParam
		if req.WgParam != nil {
			cidr := req.CIDRBits
			if cidr == 0 {
				cidr = 32
			}
			if opErr = placement.ValidateExplicitParam(c, node, *req.WgParam, cidr); opErr != nil {
				status = model.StatusBadRequest
				return
			}
			param = *req.WgParam
		} else {
			addr, err := placement.AllocateAddress(c, node)
			if err != nil {
				opErr, status = err, model.StatusBadRequest
				return
			}
			keys, err := placement.GenerateKeypair()
			if err != nil {
				opErr, status = err, model.StatusBadRequest
				return
			}
			param = model.WgParam{Keys: keys, Address: addr}
		}

		proto = model.WireguardProto{Param: param, NodeID: node.ID}
		conn := model.Connection{
			ID:             req.ID,
			Env:            req.Env,
			SubscriptionID: req.SubscriptionID,
			Proto:          proto,
			Status:         model.ConnectionActive,
			IsTrial:        req.IsTrial,
			DailyLimitMB:   req.DailyLimitMB,
		}

		now := nowNs()
		if err := o.Store.InsertConnection(conn, now); err != nil {
			if errors.Is(err, store.ErrConflict) {
				status = model.StatusAlreadyExist
			} else {
				opErr, status = err, model.StatusBadRequest
			}
			return
		}
		conn.CreatedAt = time.Unix(0, now).UTC()
		conn.ModifiedAt = conn.CreatedAt

		c.PutConnection(conn)
		status = model.StatusOk
		published = conn
	})

	if opErr != nil {
		return status, opErr
	}
	if status == model.StatusOk {
		o.publish(req.Env, proto, messageForConnection(model.ActionCreate, published))
	}
	return status, nil
}

// UpdateConnection applies a partial update per the rules in 4.1.2.
func (o *Orchestrator) UpdateConnection(id string, req model.UpdateConnectionRequest) (model.OperationStatus, error) {
	current, ok := o.Cache.GetConnection(id)
	if !ok {
		return model.StatusNotFound, nil
	}
	if current.IsDeleted {
		if req.IsDeleted == nil || !*req.IsDeleted {
			return model.StatusNotFound, nil
		}
		return model.StatusNotModified, nil
	}
	if req.Password != nil {
		if _, ok := current.Proto.(model.ShadowsocksProto); !ok {
			return model.StatusBadRequest, fmt.Errorf("password may only be set for shadowsocks connections")
		}
	}

	updated, changed, err := o.Store.UpdateConnectionFields(id, req, nowNs())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.StatusNotFound, nil
		}
		return model.StatusBadRequest, err
	}
	if !changed {
		return model.StatusNotModified, nil
	}

	o.Cache.PutConnection(updated)
	o.publish(updated.Env, updated.Proto, messageForConnection(model.ActionUpdate, updated))
	return model.StatusUpdated, nil
}

// DeleteConnection soft-deletes a connection and publishes a Delete event.
func (o *Orchestrator) DeleteConnection(id string) (model.OperationStatus, error) {
	current, ok := o.Cache.GetConnection(id)
	if !ok {
		return model.StatusNotFound, nil
	}
	if current.IsDeleted {
		return model.StatusDeletedPreviously, nil
	}

	wasAlreadyDeleted, err := o.Store.SoftDeleteConnection(id, nowNs())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.StatusNotFound, nil
		}
		return model.StatusBadRequest, err
	}
	if wasAlreadyDeleted {
		return model.StatusDeletedPreviously, nil
	}

	current.IsDeleted = true
	o.Cache.PutConnection(current)
	o.publish(current.Env, current.Proto, messageForConnection(model.ActionDelete, current))
	return model.StatusOk, nil
}

// GetConnection returns a cached connection by id.
func (o *Orchestrator) GetConnection(id string) (model.Connection, bool) {
	return o.Cache.GetConnection(id)
}

// UpdateConnectionStat applies an agent stat-loop report (§4.2.3) to the
// cache and store. This is deliberately not routed through UpdateConnection:
// a stat report is not a content mutation (it carries no OperationStatus
// outcome beyond UpdatedStat/NotFound) and must never publish a lifecycle
// event back out, or the agent that just reported the stat would receive
// its own report back as an Update message.
func (o *Orchestrator) UpdateConnectionStat(id string, stat model.ConnStat) (model.OperationStatus, error) {
	current, ok := o.Cache.GetConnection(id)
	if !ok {
		return model.StatusNotFound, nil
	}

	if err := o.Store.UpdateConnectionStat(id, stat.Uplink, stat.Downlink, stat.Online); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.StatusNotFound, nil
		}
		return model.StatusBadRequest, err
	}

	current.Stat = stat
	o.Cache.PutConnection(current)
	return model.StatusUpdatedStat, nil
}
