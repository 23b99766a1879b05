package config

import (
	"fmt"
	"net/netip"

	"github.com/BurntSushi/toml"
)

// Load decodes a TOML file at path into v, which must be a pointer to one of
// the *FileConfig types below. cmd/agent and cmd/sidecar take -c/--config
// <toml> pointing at a file in this shape; cmd/orchestrator takes no config
// file and reads its settings from EnvConfig only.
func Load(path string, v any) error {
	if _, err := toml.DecodeFile(path, v); err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	return nil
}

// OrchestratorFileConfig is a TOML document shape for orchestrator identity
// and policy. cmd/orchestrator does not load it: the orchestrator runs on
// EnvConfig alone, and nothing reads these fields.
type OrchestratorFileConfig struct {
	Env string `toml:"env"`

	Health HealthFileConfig `toml:"health"`
	Quota  QuotaFileConfig  `toml:"quota"`
}

// HealthFileConfig holds health-loop settings within OrchestratorFileConfig.
// It overrides nothing: the health loop takes its interval and timeout from
// EnvConfig.
type HealthFileConfig struct {
	Interval Duration `toml:"interval"`
	Timeout  Duration `toml:"timeout"`
}

// QuotaFileConfig holds quota-loop settings within OrchestratorFileConfig.
// It overrides nothing: the quota loops take their settings from EnvConfig.
type QuotaFileConfig struct {
	Interval         Duration `toml:"interval"`
	ReactivationAfter Duration `toml:"reactivation_after"`
	DefaultDailyLimitMB uint64 `toml:"default_daily_limit_mb"`
}

// AgentFileConfig is the node agent's -c/--config TOML document: local
// dataplane identity, matching §4.2.1's "load local dataplane config file".
type AgentFileConfig struct {
	Env       string `toml:"env"`
	Hostname  string `toml:"hostname"`
	Interface string `toml:"interface"`
	Address   netip.Addr `toml:"address"`

	Orchestrator OrchestratorEndpoint `toml:"orchestrator"`
	Dataplane    DataplaneEndpoints   `toml:"dataplane"`
	Wireguard    WireguardFileConfig  `toml:"wireguard"`
	Telemetry    TelemetryEndpoint    `toml:"telemetry"`

	// DataplaneConfigPath points at the YAML inbound-listener file §4.2.1
	// step 1 loads (internal/dataplane.LoadConfig), separate from this TOML
	// document itself.
	DataplaneConfigPath string `toml:"dataplane_config_path"`

	StatInterval      Duration `toml:"stat_interval"`
	TelemetryInterval Duration `toml:"telemetry_interval"`

	// DebugListenAddress and DebugToken configure the optional debug
	// WebSocket (§6); DebugListenAddress left empty disables it.
	DebugListenAddress string `toml:"debug_listen_address"`
	DebugToken         string `toml:"debug_token"`
}

// OrchestratorEndpoint is how an agent or sidecar reaches the orchestrator's
// REST API and pub/sub publisher.
type OrchestratorEndpoint struct {
	APIAddress    string `toml:"api_address"`
	BearerToken   string `toml:"bearer_token"`
	PubsubAddress string `toml:"pubsub_address"`
}

// DataplaneEndpoints are the opaque gRPC addresses of the proxy dataplane's
// handler and stats services (§1 "accept as an opaque HandlerService").
type DataplaneEndpoints struct {
	HandlerAddress string `toml:"handler_address"`
	StatsAddress   string `toml:"stats_address"`
}

// WireguardFileConfig is the agent's local WireGuard interface identity,
// merged into its Node record at startup (§4.2.1 step 3).
type WireguardFileConfig struct {
	Interface string       `toml:"interface"`
	PubKey    string       `toml:"pubkey"`
	PrivKey   string       `toml:"privkey"`
	Network   netip.Prefix `toml:"network"`
	Address   netip.Addr   `toml:"address"`
	Port      int          `toml:"port"`
}

// TelemetryEndpoint is the Graphite-style TCP collector address the agent
// ships newline-delimited metric lines to (§4.2.4).
type TelemetryEndpoint struct {
	Address string `toml:"address"`
}

// SidecarFileConfig is the auth sidecar's -c/--config TOML document.
type SidecarFileConfig struct {
	Env          string `toml:"env"`
	ListenAddress string `toml:"listen_address"`

	Orchestrator OrchestratorEndpoint `toml:"orchestrator"`

	SnapshotPath     string   `toml:"snapshot_path"`
	SnapshotInterval Duration `toml:"snapshot_interval"`
}
