package agent

import (
	"context"
	"log"
	"net/netip"
	"time"

	"github.com/frkn-dev/pony/internal/dataplane"
	"github.com/frkn-dev/pony/internal/model"
	"github.com/frkn-dev/pony/internal/pubsub"
	"github.com/frkn-dev/pony/internal/wire"
)

// interBatchYield is the pause the subscriber takes between deliveries so a
// burst of events doesn't starve the stat and telemetry loops (§4.2.2).
const interBatchYield = 10 * time.Millisecond

// RunSubscriber starts the event subscriber on the agent's own node id, its
// env, and the broadcast "all" topic (§4.2.2), blocking until ctx is done.
func (a *Agent) RunSubscriber(ctx context.Context, pubsubAddr string) error {
	node := a.Node()
	a.sub = pubsub.NewSubscriber(pubsubAddr, []string{node.ID, node.Env, model.TopicAll}, a.handleFrame)
	return a.sub.Run(ctx)
}

func (a *Agent) handleFrame(topic string, payload []byte) {
	batch, err := wire.DecodeBatch(payload)
	if err != nil {
		log.Printf("agent: dropping batch on topic %q: %v", topic, err)
		return
	}

	for i := range batch {
		a.dispatch(batch[i])
	}
	time.Sleep(interBatchYield)
}

func (a *Agent) dispatch(msg model.Message) {
	ctx := context.Background()

	switch msg.Action {
	case model.ActionCreate, model.ActionUpdate:
		a.reconcileUpsert(ctx, msg)
	case model.ActionDelete:
		a.reconcileDelete(ctx, msg)
	case model.ActionResetStat:
		a.reconcileResetStat(ctx, msg)
	default:
		log.Printf("agent: unknown action %q for connection %s, dropping", msg.Action, msg.ConnID)
	}
}

func (a *Agent) reconcileUpsert(ctx context.Context, msg model.Message) {
	if _, exists := a.cache.GetConnection(msg.ConnID); exists && msg.Action == model.ActionCreate {
		log.Printf("agent: warning: Create for existing connection %s is a no-op", msg.ConnID)
		return
	}

	if msg.ProtoTag == model.ProtoWireguard {
		a.reconcileWireguardUpsert(msg)
		return
	}

	acct := dataplane.Account{Email: account(msg.ConnID), Tag: msg.ProtoTag}
	if msg.Password != nil {
		acct.Password = *msg.Password
	}
	if err := a.handler.AlterInbound(ctx, msg.ProtoTag, dataplane.AlterOp{AddUser: &acct}); err != nil {
		log.Printf("agent: AlterInbound add user for %s: %v", msg.ConnID, err)
		return
	}

	a.cache.PutConnection(connectionFromMessage(a.Node().Env, msg))
}

func (a *Agent) reconcileWireguardUpsert(msg model.Message) {
	node := a.Node()
	wgInbound, ok := node.Inbounds[model.ProtoWireguard]
	if !ok || wgInbound.Wireguard == nil {
		log.Printf("agent: warning: wireguard create for %s with no local wireguard interface configured", msg.ConnID)
		return
	}
	if msg.WgParam == nil {
		log.Printf("agent: warning: wireguard create for %s with no wg_param", msg.ConnID)
		return
	}

	allowedIP := netip.PrefixFrom(msg.WgParam.Address, msg.WgParam.Address.BitLen())
	if err := a.wg.AddPeer(wgInbound.Wireguard.Interface, msg.WgParam.Keys.Pub, allowedIP); err != nil {
		log.Printf("agent: add wireguard peer for %s: %v", msg.ConnID, err)
		return
	}

	conn := connectionFromMessage(node.Env, msg)
	conn.Proto = model.WireguardProto{Param: *msg.WgParam, NodeID: node.ID}
	a.cache.PutConnection(conn)
}

func (a *Agent) reconcileDelete(ctx context.Context, msg model.Message) {
	conn, ok := a.cache.GetConnection(msg.ConnID)
	if !ok {
		return // Delete on an absent entry is silent (§7).
	}

	if msg.ProtoTag == model.ProtoWireguard {
		if wg, isWg := conn.WireguardParam(); isWg {
			node := a.Node()
			if ib, ok := node.Inbounds[model.ProtoWireguard]; ok && ib.Wireguard != nil {
				if err := a.wg.RemovePeer(ib.Wireguard.Interface, wg.Param.Keys.Pub); err != nil {
					log.Printf("agent: remove wireguard peer for %s: %v", msg.ConnID, err)
				}
			}
		}
	} else {
		if err := a.handler.AlterInbound(ctx, msg.ProtoTag, dataplane.AlterOp{RemoveUser: account(msg.ConnID)}); err != nil {
			log.Printf("agent: AlterInbound remove user for %s: %v", msg.ConnID, err)
		}
	}

	a.cache.DeleteConnection(msg.ConnID)
}

func (a *Agent) reconcileResetStat(ctx context.Context, msg model.Message) {
	for _, dir := range []dataplane.Direction{dataplane.Uplink, dataplane.Downlink} {
		if _, err := a.stats.GetStats(ctx, dataplane.UserTrafficStat(account(msg.ConnID), dir), true); err != nil {
			log.Printf("agent: reset stat %s/%s: %v", msg.ConnID, dir, err)
		}
	}
}

// account derives the dataplane account email from a connection id (§4.2.2).
func account(connID string) string {
	return connID + "@pony"
}

func connectionFromMessage(env string, msg model.Message) model.Connection {
	conn := model.Connection{
		ID:     msg.ConnID,
		Env:    env,
		Status: model.ConnectionActive,
	}
	if msg.SubscriptionID != nil {
		conn.SubscriptionID = *msg.SubscriptionID
	}
	if msg.ExpiresAt != nil {
		conn.ExpiredAt = msg.ExpiresAt
	}

	switch {
	case msg.ProtoTag == model.ProtoWireguard && msg.WgParam != nil:
		conn.Proto = model.WireguardProto{Param: *msg.WgParam}
	case msg.ProtoTag == model.ProtoShadowsocks && msg.Password != nil:
		conn.Proto = model.ShadowsocksProto{Password: *msg.Password}
	case msg.ProtoTag == model.ProtoHysteria2 && msg.Hysteria2Token != nil:
		conn.Proto = model.Hysteria2Proto{Token: *msg.Hysteria2Token}
	case msg.ProtoTag == model.ProtoMtproto:
		conn.Proto = model.MtprotoProto{}
	default:
		conn.Proto = model.XrayProto{ProtoTag: msg.ProtoTag}
	}
	return conn
}
