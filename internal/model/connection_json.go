package model

import (
	"encoding/json"
	"time"
)

// connectionWire is Connection's on-the-wire shape: Proto's concrete variant
// cannot be recovered from raw JSON without a discriminant, so MarshalJSON
// flattens it into proto_tag plus whichever variant-specific fields apply,
// and UnmarshalJSON reverses that based on proto_tag.
type connectionWire struct {
	ID             string           `json:"id"`
	Env            string           `json:"env"`
	SubscriptionID string           `json:"subscription_id,omitempty"`
	ProtoTag       ProtoTag         `json:"proto_tag"`
	Password       string           `json:"password,omitempty"`
	WgParam        *WgParam         `json:"wg_param,omitempty"`
	WgNodeID       string           `json:"wg_node_id,omitempty"`
	Hysteria2Token string           `json:"hysteria2_token,omitempty"`
	Stat           ConnStat         `json:"stat"`
	Status         ConnectionStatus `json:"status"`
	IsTrial        bool             `json:"is_trial"`
	DailyLimitMB   uint64           `json:"daily_limit_mb,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	ModifiedAt     time.Time        `json:"modified_at"`
	ExpiredAt      *time.Time       `json:"expired_at,omitempty"`
	IsDeleted      bool             `json:"is_deleted"`
}

func (c Connection) MarshalJSON() ([]byte, error) {
	w := connectionWire{
		ID:             c.ID,
		Env:            c.Env,
		SubscriptionID: c.SubscriptionID,
		Stat:           c.Stat,
		Status:         c.Status,
		IsTrial:        c.IsTrial,
		DailyLimitMB:   c.DailyLimitMB,
		CreatedAt:      c.CreatedAt,
		ModifiedAt:     c.ModifiedAt,
		ExpiredAt:      c.ExpiredAt,
		IsDeleted:      c.IsDeleted,
	}
	if c.Proto != nil {
		w.ProtoTag = c.Proto.Tag()
	}
	switch p := c.Proto.(type) {
	case ShadowsocksProto:
		w.Password = p.Password
	case WireguardProto:
		param := p.Param
		w.WgParam = &param
		w.WgNodeID = p.NodeID
	case Hysteria2Proto:
		w.Hysteria2Token = p.Token
	case XrayProto:
		w.ProtoTag = p.ProtoTag
	}
	return json.Marshal(w)
}

func (c *Connection) UnmarshalJSON(data []byte) error {
	var w connectionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Connection{
		ID:             w.ID,
		Env:            w.Env,
		SubscriptionID: w.SubscriptionID,
		Stat:           w.Stat,
		Status:         w.Status,
		IsTrial:        w.IsTrial,
		DailyLimitMB:   w.DailyLimitMB,
		CreatedAt:      w.CreatedAt,
		ModifiedAt:     w.ModifiedAt,
		ExpiredAt:      w.ExpiredAt,
		IsDeleted:      w.IsDeleted,
	}
	switch w.ProtoTag {
	case ProtoShadowsocks:
		c.Proto = ShadowsocksProto{Password: w.Password}
	case ProtoWireguard:
		var param WgParam
		if w.WgParam != nil {
			param = *w.WgParam
		}
		c.Proto = WireguardProto{Param: param, NodeID: w.WgNodeID}
	case ProtoHysteria2:
		c.Proto = Hysteria2Proto{Token: w.Hysteria2Token}
	case ProtoMtproto:
		c.Proto = MtprotoProto{}
	case "":
		c.Proto = nil
	default:
		c.Proto = XrayProto{ProtoTag: w.ProtoTag}
	}
	return nil
}
