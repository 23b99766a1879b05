package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/frkn-dev/pony/internal/cache"
	"github.com/frkn-dev/pony/internal/config"
	"github.com/frkn-dev/pony/internal/dataplane"
	"github.com/frkn-dev/pony/internal/model"
	"github.com/google/uuid"
)

// Start runs §4.2.1: load the dataplane config, dial both dataplane gRPC
// endpoints, build the local Node record, and register it with the
// orchestrator. It returns the constructed Agent so the caller can start the
// subscriber, stat, and telemetry loops (step 5) once registration succeeds.
//
// Per §4.2.1, a registration failure is fatal to the agent process; Start
// returns the error and leaves panicking at startup to the caller (cmd/agent).
func Start(ctx context.Context, cfg *config.AgentFileConfig) (*Agent, error) {
	dpCfg, err := dataplane.LoadConfig(cfg.DataplaneConfigPath)
	if err != nil {
		return nil, fmt.Errorf("agent startup: %w", err)
	}

	handler, err := dataplane.NewHandlerClient(cfg.Dataplane.HandlerAddress)
	if err != nil {
		return nil, fmt.Errorf("agent startup: dial handler service: %w", err)
	}
	stats, err := dataplane.NewStatsClient(cfg.Dataplane.StatsAddress)
	if err != nil {
		return nil, fmt.Errorf("agent startup: dial stats service: %w", err)
	}

	node, wgClient, err := buildNode(cfg, dpCfg)
	if err != nil {
		return nil, fmt.Errorf("agent startup: %w", err)
	}

	a := &Agent{
		cfg:     cfg,
		node:    node,
		cache:   cache.New(),
		handler: handler,
		stats:   stats,
		wg:      wgClient,
		rest:    NewRESTClient(cfg.Orchestrator.APIAddress, cfg.Orchestrator.BearerToken),
	}

	if err := a.rest.RegisterNode(ctx, node); err != nil {
		return nil, fmt.Errorf("agent startup: register node: %w", err)
	}

	return a, nil
}

// buildNode implements §4.2.1 step 3: env, hostname, interface from the
// config file, IPv4 address from the config file or, when unset, via the
// default route probe, inbounds merged from dataplane config + WireGuard
// settings.
func buildNode(cfg *config.AgentFileConfig, dpCfg *dataplane.Config) (model.Node, dataplane.WireguardClient, error) {
	hostname := cfg.Hostname
	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return model.Node{}, nil, fmt.Errorf("resolve hostname: %w", err)
		}
		hostname = h
	}

	addr := cfg.Address
	if !addr.IsValid() {
		a, err := defaultRouteAddress()
		if err != nil {
			return model.Node{}, nil, err
		}
		addr = a
	}

	var wgSettings *model.WireguardSettings
	var wgClient dataplane.WireguardClient = dataplane.NewLocalWireguardClient()
	if cfg.Wireguard.Interface != "" {
		wgSettings = &model.WireguardSettings{
			PubKey:    cfg.Wireguard.PubKey,
			PrivKey:   cfg.Wireguard.PrivKey,
			Interface: cfg.Wireguard.Interface,
			Network:   cfg.Wireguard.Network,
			Address:   cfg.Wireguard.Address,
			Port:      cfg.Wireguard.Port,
		}
	}

	node := model.Node{
		ID:        nodeID(cfg.Env, hostname),
		Env:       cfg.Env,
		Hostname:  hostname,
		Address:   addr,
		Interface: cfg.Interface,
		Inbounds:  dataplane.MergeInbounds(dpCfg, wgSettings),
	}
	return node, wgClient, nil
}

// nodeIDNamespace scopes the name-derived node UUID to this system, so it
// never collides with a caller-supplied UUID namespace elsewhere.
var nodeIDNamespace = uuid.MustParse("6f6e0f2e-9f2b-4a5a-9a0f-2a9a6e6f6f6e")

// nodeID derives a stable identity from (env, hostname): registration must
// be idempotent across agent restarts on the same host, so the id cannot be
// randomly generated per process.
func nodeID(env, hostname string) string {
	return uuid.NewSHA1(nodeIDNamespace, []byte(env+"/"+hostname)).String()
}
