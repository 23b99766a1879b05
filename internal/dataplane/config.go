package dataplane

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/frkn-dev/pony/internal/model"
)

// Config is the node agent's local dataplane config file (§4.2.1 step 1):
// the Xray-backed inbound listeners running on this node. WireGuard settings
// are supplied separately by the agent's TOML file
// (internal/config.AgentFileConfig) and merged in by MergeInbounds; neither
// file carries Hysteria2 obfuscation settings.
type Config struct {
	Inbounds []InboundConfig `yaml:"inbounds"`
}

// InboundConfig is one Xray-backed listener entry.
type InboundConfig struct {
	Tag            model.ProtoTag `yaml:"tag"`
	Port           int            `yaml:"port"`
	StreamSettings string         `yaml:"stream_settings,omitempty"`
	MtprotoSecret  string         `yaml:"mtproto_secret,omitempty"`
}

// LoadConfig reads and validates the dataplane config file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataplane: read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("dataplane: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dataplane: invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate rejects a config with no inbounds, a bad port, or a duplicate tag.
func (c *Config) Validate() error {
	if len(c.Inbounds) == 0 {
		return fmt.Errorf("at least one inbound is required")
	}
	seen := make(map[model.ProtoTag]struct{}, len(c.Inbounds))
	for _, ib := range c.Inbounds {
		if ib.Tag == "" {
			return fmt.Errorf("inbound tag must not be empty")
		}
		if ib.Tag == model.ProtoWireguard {
			return fmt.Errorf("wireguard inbounds are configured via the agent TOML file, not the dataplane config")
		}
		if ib.Port <= 0 || ib.Port > 65535 {
			return fmt.Errorf("inbound %s: port %d out of range", ib.Tag, ib.Port)
		}
		if _, dup := seen[ib.Tag]; dup {
			return fmt.Errorf("duplicate inbound tag %s", ib.Tag)
		}
		seen[ib.Tag] = struct{}{}
	}
	return nil
}

// MergeInbounds builds the full inbound set for a Node record (§4.2.1 step
// 3): the dataplane-configured Xray listeners plus, when present, the local
// WireGuard interface as a Wireguard-tagged inbound.
func MergeInbounds(cfg *Config, wg *model.WireguardSettings) map[model.ProtoTag]model.Inbound {
	inbounds := make(map[model.ProtoTag]model.Inbound, len(cfg.Inbounds)+1)
	for _, ib := range cfg.Inbounds {
		inbounds[ib.Tag] = model.Inbound{
			Tag:            ib.Tag,
			Port:           ib.Port,
			StreamSettings: ib.StreamSettings,
			MtprotoSecret:  ib.MtprotoSecret,
		}
	}
	if wg != nil {
		inbounds[model.ProtoWireguard] = model.Inbound{
			Tag:       model.ProtoWireguard,
			Port:      wg.Port,
			Wireguard: wg,
		}
	}
	return inbounds
}
