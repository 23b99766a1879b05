package model

import (
	"net/netip"
	"time"
)

// ProtoTag names the wire protocol family of an inbound or connection.
type ProtoTag string

const (
	ProtoVlessTCPReality  ProtoTag = "VlessTcpReality"
	ProtoVlessGRPCReality ProtoTag = "VlessGrpcReality"
	ProtoVlessXHTTPReality ProtoTag = "VlessXhttpReality"
	ProtoVmess            ProtoTag = "Vmess"
	ProtoShadowsocks      ProtoTag = "Shadowsocks"
	ProtoHysteria2        ProtoTag = "Hysteria2"
	ProtoWireguard        ProtoTag = "Wireguard"
	ProtoMtproto          ProtoTag = "Mtproto"
)

// Node is a physical or virtual proxy host. Identity is (Env, ID); a node id
// appears at most once within an env.
type Node struct {
	ID              string             `json:"id"`
	Env             string             `json:"env"`
	Hostname        string             `json:"hostname"`
	Address         netip.Addr         `json:"address"`
	Interface       string             `json:"interface"`
	Label           string             `json:"label"`
	Cores           int                `json:"cores"`
	MaxBandwidthBps uint64             `json:"max_bandwidth_bps"`
	Status          NodeStatus         `json:"status"`
	Inbounds        map[ProtoTag]Inbound `json:"inbounds"`
	CreatedAt       time.Time          `json:"created_at"`
	ModifiedAt      time.Time          `json:"modified_at"`
}

// Key returns the (env, id) composite identity used by the orchestrator cache.
func (n Node) Key() NodeKey {
	return NodeKey{Env: n.Env, ID: n.ID}
}

// NodeKey is the composite cache key for a Node.
type NodeKey struct {
	Env string
	ID  string
}

// WireguardSettings describes a node's WireGuard inbound parameters.
type WireguardSettings struct {
	PubKey    string       `json:"pubkey"`
	PrivKey   string       `json:"privkey"`
	Interface string       `json:"interface"`
	Network   netip.Prefix `json:"network"`
	Address   netip.Addr   `json:"address"`
	Port      int          `json:"port"`
	DNS       []netip.Addr `json:"dns,omitempty"`
}

// Hysteria2Settings describes a node's Hysteria2 inbound parameters.
type Hysteria2Settings struct {
	Obfs string `json:"obfs,omitempty"`
}

// Inbound is a dataplane listener on a node.
type Inbound struct {
	Tag             ProtoTag           `json:"tag"`
	Port            int                `json:"port"`
	StreamSettings  string             `json:"stream_settings,omitempty"`
	Uplink          uint64             `json:"uplink"`
	Downlink        uint64             `json:"downlink"`
	ConnCount       int                `json:"conn_count"`
	Wireguard       *WireguardSettings `json:"wireguard,omitempty"`
	Hysteria2       *Hysteria2Settings `json:"hysteria2,omitempty"`
	MtprotoSecret   string             `json:"mtproto_secret,omitempty"`
}
