package dataplane

import "testing"

func TestStatNames(t *testing.T) {
	if got, want := UserTrafficStat("abc@pony", Uplink), "user>>>abc@pony>>>traffic>>>uplink"; got != want {
		t.Fatalf("UserTrafficStat: got %q, want %q", got, want)
	}
	if got, want := UserOnlineStat("abc@pony"), "user>>>abc@pony>>>online"; got != want {
		t.Fatalf("UserOnlineStat: got %q, want %q", got, want)
	}
	if got, want := InboundTrafficStat("Vmess", Downlink), "inbound>>>Vmess>>>traffic>>>downlink"; got != want {
		t.Fatalf("InboundTrafficStat: got %q, want %q", got, want)
	}
}
