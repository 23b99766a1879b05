package agent

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/frkn-dev/pony/internal/config"
	"github.com/frkn-dev/pony/internal/model"
)

func TestSanitizeLabel(t *testing.T) {
	if got := sanitizeLabel("eth0.100"); got != "eth0_100" {
		t.Errorf("sanitizeLabel() = %q", got)
	}
	if got := sanitizeLabel("eth0"); got != "eth0" {
		t.Errorf("sanitizeLabel() = %q", got)
	}
}

func TestSendTelemetryLines_WritesEachLine(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var lines []string
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		received <- lines
	}()

	a := &Agent{cfg: &config.AgentFileConfig{Telemetry: config.TelemetryEndpoint{Address: ln.Addr().String()}}}
	lines := []string{"dev.host.mem.total 100 1\n", "dev.host.heartbeat 1 1\n"}
	if err := a.sendTelemetryLines(context.Background(), lines); err != nil {
		t.Fatalf("sendTelemetryLines: %v", err)
	}
	ln.Close()

	got := <-received
	if len(got) != 2 {
		t.Fatalf("expected 2 lines received, got %d: %v", len(got), got)
	}
	if !strings.HasPrefix(got[0], "dev.host.mem.total") {
		t.Errorf("line[0] = %q", got[0])
	}
}

func TestSendTelemetryLines_EmptyIsNoop(t *testing.T) {
	a := &Agent{cfg: &config.AgentFileConfig{Telemetry: config.TelemetryEndpoint{Address: "127.0.0.1:1"}}}
	if err := a.sendTelemetryLines(context.Background(), nil); err != nil {
		t.Fatalf("expected no-op for empty lines, got %v", err)
	}
}

func TestSendTelemetryLines_DialErrorPropagates(t *testing.T) {
	a := &Agent{cfg: &config.AgentFileConfig{Telemetry: config.TelemetryEndpoint{Address: "127.0.0.1:0"}}}
	if err := a.sendTelemetryLines(context.Background(), []string{"x 1 1\n"}); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestCollectTelemetryLines_IncludesHeartbeatAndConnStats(t *testing.T) {
	a, _, _ := newTestAgent()
	a.node.Hostname = "host-1"
	a.cache.PutConnection(model.Connection{ID: "conn-1", Stat: model.ConnStat{Uplink: 5, Downlink: 10, Online: true}})

	lines, err := a.collectTelemetryLines(context.Background())
	if err != nil {
		t.Fatalf("collectTelemetryLines: %v", err)
	}

	var sawHeartbeat, sawConnStat bool
	for _, line := range lines {
		if strings.Contains(line, ".heartbeat ") {
			sawHeartbeat = true
		}
		if strings.Contains(line, "conn-1.conn_stat.uplink") {
			sawConnStat = true
		}
	}
	if !sawHeartbeat {
		t.Error("expected a heartbeat line")
	}
	if !sawConnStat {
		t.Error("expected a conn-1 stat line")
	}
}
