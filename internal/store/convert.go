package store

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"

	"github.com/frkn-dev/pony/internal/model"
)

func encodeDNS(dns []netip.Addr) string {
	strs := make([]string, len(dns))
	for i, a := range dns {
		strs[i] = a.String()
	}
	data, _ := json.Marshal(strs)
	return string(data)
}

func decodeDNS(raw string) ([]netip.Addr, error) {
	if raw == "" {
		return nil, nil
	}
	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		return nil, fmt.Errorf("decode wg_dns_json: %w", err)
	}
	out := make([]netip.Addr, 0, len(strs))
	for _, s := range strs {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("decode wg_dns_json addr %q: %w", s, err)
		}
		out = append(out, a)
	}
	return out, nil
}

type inboundRow struct {
	tag            string
	port           int
	streamSettings string
	uplink         uint64
	downlink       uint64
	connCount      int
	wgPubkey       string
	wgPrivkey      string
	wgInterface    string
	wgNetwork      string
	wgAddress      string
	wgPort         int
	wgDNSJSON      string
	hysteria2Obfs  string
	mtprotoSecret  string
}

func inboundToRow(ib model.Inbound) (inboundRow, error) {
	row := inboundRow{
		tag:            string(ib.Tag),
		port:           ib.Port,
		streamSettings: ib.StreamSettings,
		uplink:         ib.Uplink,
		downlink:       ib.Downlink,
		connCount:      ib.ConnCount,
	}
	if ib.Wireguard != nil {
		wg := ib.Wireguard
		row.wgPubkey = wg.PubKey
		row.wgPrivkey = wg.PrivKey
		row.wgInterface = wg.Interface
		row.wgNetwork = wg.Network.String()
		row.wgAddress = wg.Address.String()
		row.wgPort = wg.Port
		row.wgDNSJSON = encodeDNS(wg.DNS)
	}
	if ib.Hysteria2 != nil {
		row.hysteria2Obfs = ib.Hysteria2.Obfs
	}
	row.mtprotoSecret = ib.MtprotoSecret
	return row, nil
}

func rowToInbound(row inboundRow) (model.Inbound, error) {
	ib := model.Inbound{
		Tag:            model.ProtoTag(row.tag),
		Port:           row.port,
		StreamSettings: row.streamSettings,
		Uplink:         row.uplink,
		Downlink:       row.downlink,
		ConnCount:      row.connCount,
		MtprotoSecret:  row.mtprotoSecret,
	}
	if row.wgNetwork != "" {
		network, err := netip.ParsePrefix(row.wgNetwork)
		if err != nil {
			return ib, fmt.Errorf("parse wg_network %q: %w", row.wgNetwork, err)
		}
		address, err := netip.ParseAddr(row.wgAddress)
		if err != nil {
			return ib, fmt.Errorf("parse wg_address %q: %w", row.wgAddress, err)
		}
		dns, err := decodeDNS(row.wgDNSJSON)
		if err != nil {
			return ib, err
		}
		ib.Wireguard = &model.WireguardSettings{
			PubKey:    row.wgPubkey,
			PrivKey:   row.wgPrivkey,
			Interface: row.wgInterface,
			Network:   network,
			Address:   address,
			Port:      row.wgPort,
			DNS:       dns,
		}
	}
	if row.hysteria2Obfs != "" {
		ib.Hysteria2 = &model.Hysteria2Settings{Obfs: row.hysteria2Obfs}
	}
	return ib, nil
}

// protoToColumns decomposes a Connection.Proto into the flat columns used by
// the connections table, per the design notes' "total mapping keyed on proto
// + presence of wg_*, password, token columns".
func protoToColumns(p model.Proto) (protoTag, password, wgPrivkey, wgPubkey, wgAddress, wgNodeID, token string) {
	switch v := p.(type) {
	case model.XrayProto:
		return string(v.ProtoTag), "", "", "", "", "", ""
	case model.ShadowsocksProto:
		return string(model.ProtoShadowsocks), v.Password, "", "", "", "", ""
	case model.WireguardProto:
		return string(model.ProtoWireguard), "", v.Param.Keys.Priv, v.Param.Keys.Pub, v.Param.Address.String(), v.NodeID, ""
	case model.Hysteria2Proto:
		return string(model.ProtoHysteria2), "", "", "", "", "", v.Token
	case model.MtprotoProto:
		return string(model.ProtoMtproto), "", "", "", "", "", ""
	default:
		return "", "", "", "", "", "", ""
	}
}

func columnsToProto(protoTag, password, wgPrivkey, wgPubkey, wgAddress, wgNodeID, token string) (model.Proto, error) {
	switch model.ProtoTag(protoTag) {
	case model.ProtoShadowsocks:
		return model.ShadowsocksProto{Password: password}, nil
	case model.ProtoWireguard:
		addr, err := netip.ParseAddr(wgAddress)
		if err != nil {
			return nil, fmt.Errorf("parse connection wg_address %q: %w", wgAddress, err)
		}
		return model.WireguardProto{
			Param:  model.WgParam{Keys: model.Keys{Priv: wgPrivkey, Pub: wgPubkey}, Address: addr},
			NodeID: wgNodeID,
		}, nil
	case model.ProtoHysteria2:
		return model.Hysteria2Proto{Token: token}, nil
	case model.ProtoMtproto:
		return model.MtprotoProto{}, nil
	default:
		// Any remaining tag is an Xray-family protocol: credential is the
		// connection id itself, no extra column data.
		if strings.TrimSpace(protoTag) == "" {
			return nil, fmt.Errorf("empty proto_tag")
		}
		return model.XrayProto{ProtoTag: model.ProtoTag(protoTag)}, nil
	}
}
