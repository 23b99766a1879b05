package model

import (
	"net/netip"
	"time"
)

// ConnStat holds the rolling traffic counters for a Connection.
type ConnStat struct {
	Uplink   uint64 `json:"uplink"`
	Downlink uint64 `json:"downlink"`
	Online   bool   `json:"online"`
}

// Keys is an X25519 keypair, base64-encoded, for a WireGuard peer.
type Keys struct {
	Priv string `json:"priv"`
	Pub  string `json:"pub"`
}

// WgParam is the WireGuard-specific portion of a Connection with proto=Wireguard.
type WgParam struct {
	Keys    Keys       `json:"keys"`
	Address netip.Addr `json:"address"`
}

// Proto is the tagged sum of connection protocol variants. Every
// implementation carries only data: the interface exists to let callers
// switch on Tag() without a type assertion chain for the common case, while
// full dispatch still uses a type switch on the concrete variant.
type Proto interface {
	Tag() ProtoTag
}

// XrayProto covers Xray-backed protocols whose credential is the connection
// id itself (account email "<uuid>@pony"); no per-protocol secret is stored
// beyond the tag.
type XrayProto struct {
	ProtoTag ProtoTag `json:"tag"`
}

func (p XrayProto) Tag() ProtoTag { return p.ProtoTag }

// ShadowsocksProto carries a caller-chosen password.
type ShadowsocksProto struct {
	Password string `json:"password"`
}

func (ShadowsocksProto) Tag() ProtoTag { return ProtoShadowsocks }

// WireguardProto binds a peer to exactly one node.
type WireguardProto struct {
	Param  WgParam `json:"param"`
	NodeID string  `json:"node_id"`
}

func (WireguardProto) Tag() ProtoTag { return ProtoWireguard }

// Hysteria2Proto carries the token the auth sidecar validates.
type Hysteria2Proto struct {
	Token string `json:"token"`
}

func (Hysteria2Proto) Tag() ProtoTag { return ProtoHysteria2 }

// MtprotoProto is a pass-through variant with no additional data.
type MtprotoProto struct{}

func (MtprotoProto) Tag() ProtoTag { return ProtoMtproto }

// ConnectionStatus tracks trial-quota lifecycle state, independent of
// IsDeleted (a soft-deleted connection is terminal regardless of status).
type ConnectionStatus string

const (
	ConnectionActive  ConnectionStatus = "Active"
	ConnectionExpired ConnectionStatus = "Expired"
)

// Connection is a provisioned user credential bound to a protocol.
type Connection struct {
	ID             string           `json:"id"`
	Env            string           `json:"env"`
	SubscriptionID string           `json:"subscription_id,omitempty"`
	Proto          Proto            `json:"proto"`
	Stat           ConnStat         `json:"stat"`
	Status         ConnectionStatus `json:"status"`
	IsTrial        bool             `json:"is_trial"`
	DailyLimitMB   uint64           `json:"daily_limit_mb,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	ModifiedAt     time.Time        `json:"modified_at"`
	ExpiredAt      *time.Time       `json:"expired_at,omitempty"`
	IsDeleted      bool             `json:"is_deleted"`
}

// WireguardParam returns the WireGuard parameters if Proto is WireguardProto.
func (c Connection) WireguardParam() (WireguardProto, bool) {
	wg, ok := c.Proto.(WireguardProto)
	return wg, ok
}

// UpdateConnectionRequest carries the optional fields of a partial connection
// update; nil fields are left unchanged.
type UpdateConnectionRequest struct {
	Password  *string    `json:"password,omitempty"`
	IsDeleted *bool      `json:"is_deleted,omitempty"`
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
}
