package model

import "testing"

func TestTopic_Wireguard_UsesNodeID(t *testing.T) {
	p := WireguardProto{NodeID: "node-1"}
	if got := Topic("dev", p); got != "node-1" {
		t.Fatalf("expected topic node-1, got %q", got)
	}
}

func TestTopic_NonWireguard_UsesEnv(t *testing.T) {
	cases := []Proto{
		XrayProto{ProtoTag: ProtoVmess},
		ShadowsocksProto{Password: "p"},
		Hysteria2Proto{Token: "t"},
		MtprotoProto{},
	}
	for _, p := range cases {
		if got := Topic("dev", p); got != "dev" {
			t.Fatalf("proto %T: expected topic dev, got %q", p, got)
		}
	}
}

func TestOperationStatus_IsSuccess(t *testing.T) {
	success := []OperationStatus{StatusOk, StatusUpdated}
	notSuccess := []OperationStatus{
		StatusAlreadyExist, StatusNotModified, StatusNotFound,
		StatusBadRequest, StatusDeletedPreviously, StatusUpdatedStat,
	}
	for _, s := range success {
		if !s.IsSuccess() {
			t.Errorf("%s: expected success", s)
		}
	}
	for _, s := range notSuccess {
		if s.IsSuccess() {
			t.Errorf("%s: expected not success", s)
		}
	}
}
