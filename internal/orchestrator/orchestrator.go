// Package orchestrator implements the control-plane write pipeline, WireGuard
// placement glue, event publication, and the health/quota background loops
// (spec.md §4.1). It is the one package that holds a durable store, a cache,
// a time-series store, and a pub/sub publisher together as collaborators.
package orchestrator

import (
	"fmt"
	"log"
	"time"

	"github.com/frkn-dev/pony/internal/cache"
	"github.com/frkn-dev/pony/internal/config"
	"github.com/frkn-dev/pony/internal/model"
	"github.com/frkn-dev/pony/internal/pubsub"
	"github.com/frkn-dev/pony/internal/store"
	"github.com/frkn-dev/pony/internal/timeseries"
	"github.com/frkn-dev/pony/internal/wire"
)

// Orchestrator wires together every collaborator the write pipeline,
// placement, and background loops depend on. One instance lives per process.
type Orchestrator struct {
	Store      *store.Store
	Cache      *cache.Cache
	Timeseries timeseries.Store
	Publisher  *pubsub.Publisher
	Env        *config.EnvConfig
}

// New builds an Orchestrator from its collaborators.
func New(st *store.Store, c *cache.Cache, ts timeseries.Store, pub *pubsub.Publisher, env *config.EnvConfig) *Orchestrator {
	return &Orchestrator{Store: st, Cache: c, Timeseries: ts, Publisher: pub, Env: env}
}

func nowNs() int64 { return time.Now().UnixNano() }

// publish encodes msg as a single-message batch and sends it on the topic
// derived from env/proto (4.1.4). It is fire-and-forget: a publish error is
// logged, never returned, matching the publisher's no-delivery-receipts
// contract.
func (o *Orchestrator) publish(env string, proto model.Proto, msg model.Message) {
	if o.Publisher == nil {
		return
	}
	topic := model.Topic(env, proto)
	encoded, err := wire.EncodeBatch(model.Batch{msg})
	if err != nil {
		log.Printf("orchestrator: encode event for connection %s: %v", msg.ConnID, err)
		return
	}
	o.Publisher.Publish(topic, encoded)
}

// PublishConnectionDelta answers GET /connections?proto=&env=&last_update=
// (§4.3.1) by publishing the matching connections as a single batch on env's
// topic instead of returning them in the HTTP response: every matching
// connection is re-encoded as a Create message (a full current-state
// resync, not a replay of the action that actually produced it), matching
// the original's as_create_message handling. The caller (the auth sidecar's
// cold start) absorbs the batch through its ordinary subscriber path.
func (o *Orchestrator) PublishConnectionDelta(f store.ConnectionFilters) error {
	conns, err := o.Store.ListConnections(f)
	if err != nil {
		return err
	}
	if len(conns) == 0 || o.Publisher == nil {
		return nil
	}

	batch := make(model.Batch, 0, len(conns))
	for _, conn := range conns {
		if conn.IsDeleted {
			continue
		}
		batch = append(batch, messageForConnection(model.ActionCreate, conn))
	}
	if len(batch) == 0 {
		return nil
	}

	encoded, err := wire.EncodeBatch(batch)
	if err != nil {
		return fmt.Errorf("orchestrator: encode connection delta for env %s: %w", f.Env, err)
	}
	o.Publisher.Publish(f.Env, encoded)
	return nil
}

// messageForConnection builds the wire Message for a connection lifecycle
// event, filling in the proto-specific optional fields (4.1.4).
func messageForConnection(action model.Action, conn model.Connection) model.Message {
	msg := model.Message{ConnID: conn.ID, Action: action, ProtoTag: conn.Proto.Tag()}

	switch p := conn.Proto.(type) {
	case model.ShadowsocksProto:
		msg.Password = &p.Password
	case model.WireguardProto:
		param := p.Param
		msg.WgParam = &param
	case model.Hysteria2Proto:
		msg.Hysteria2Token = &p.Token
	}

	if conn.ExpiredAt != nil {
		msg.ExpiresAt = conn.ExpiredAt
	}
	if conn.SubscriptionID != "" {
		msg.SubscriptionID = &conn.SubscriptionID
	}
	return msg
}
