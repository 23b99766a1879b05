package agent

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/frkn-dev/pony/internal/model"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	gopsnet "github.com/shirou/gopsutil/v4/net"
)

// defaultTelemetryInterval is used when the agent's TOML config leaves
// telemetry_interval unset.
const defaultTelemetryInterval = 15 * time.Second

// RunTelemetryLoop computes host-level metric records on a fixed interval
// and ships them as newline-delimited Graphite lines over TCP to the
// collector address (§4.2.4). It blocks until ctx is done.
func (a *Agent) RunTelemetryLoop(ctx context.Context) error {
	interval := a.cfg.TelemetryInterval.Std()
	if interval <= 0 {
		interval = defaultTelemetryInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.telemetryTick(ctx); err != nil {
				log.Printf("agent: telemetry tick: %v", err)
			}
		}
	}
}

func (a *Agent) telemetryTick(ctx context.Context) error {
	lines, err := a.collectTelemetryLines(ctx)
	if err != nil {
		return err
	}
	return a.sendTelemetryLines(ctx, lines)
}

// collectTelemetryLines builds every record named in §4.2.4: per-NIC
// bandwidth, per-CPU usage, load average, memory, per-inbound counters
// already held on the Node record, per-connection counters from the
// connection cache, and one heartbeat.
func (a *Agent) collectTelemetryLines(ctx context.Context) ([]string, error) {
	node := a.Node()
	prefix := fmt.Sprintf("%s.%s", node.Env, node.Hostname)
	now := time.Now().Unix()
	var lines []string

	emit := func(path string, value float64) {
		lines = append(lines, fmt.Sprintf("%s.%s %g %d\n", prefix, path, value, now))
	}

	ioCounters, err := gopsnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("agent: read network counters: %w", err)
	}
	for _, c := range ioCounters {
		emit(fmt.Sprintf("network.%s.tx_bps", sanitizeLabel(c.Name)), float64(c.BytesSent))
		emit(fmt.Sprintf("network.%s.rx_bps", sanitizeLabel(c.Name)), float64(c.BytesRecv))
	}

	percentages, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return nil, fmt.Errorf("agent: read cpu usage: %w", err)
	}
	for i, pct := range percentages {
		emit(fmt.Sprintf("cpu_usage.%d.percentage", i), pct)
	}

	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: read load average: %w", err)
	}
	emit("loadavg.1m", avg.Load1)
	emit("loadavg.5m", avg.Load5)
	emit("loadavg.15m", avg.Load15)

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: read memory: %w", err)
	}
	emit("mem.total", float64(vm.Total))
	emit("mem.free", float64(vm.Free))
	emit("mem.used", float64(vm.Used))
	emit("mem.available", float64(vm.Available))

	for tag, ib := range node.Inbounds {
		emit(fmt.Sprintf("%s.inbound_stat.uplink", tag), float64(ib.Uplink))
		emit(fmt.Sprintf("%s.inbound_stat.downlink", tag), float64(ib.Downlink))
		emit(fmt.Sprintf("%s.inbound_stat.user_count", tag), float64(ib.ConnCount))
	}

	a.cache.RangeConnections(func(conn model.Connection) bool {
		onlineVal := 0.0
		if conn.Stat.Online {
			onlineVal = 1
		}
		emit(fmt.Sprintf("%s.conn_stat.uplink", conn.ID), float64(conn.Stat.Uplink))
		emit(fmt.Sprintf("%s.conn_stat.downlink", conn.ID), float64(conn.Stat.Downlink))
		emit(fmt.Sprintf("%s.conn_stat.online", conn.ID), onlineVal)
		return true
	})

	lines = append(lines, fmt.Sprintf("%s.%s.heartbeat 1 %d\n", prefix, node.ID, now))
	return lines, nil
}

// sanitizeLabel replaces path-separator characters a NIC name could
// plausibly contain so it never breaks the dot-separated Graphite path.
func sanitizeLabel(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// sendTelemetryLines dials the collector fresh on every tick; the teacher's
// loops favor a short-lived connection per send over a held connection that
// could silently go stale between ticks.
func (a *Agent) sendTelemetryLines(ctx context.Context, lines []string) error {
	if len(lines) == 0 {
		return nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", a.cfg.Telemetry.Address)
	if err != nil {
		return fmt.Errorf("agent: dial telemetry collector: %w", err)
	}
	defer conn.Close()

	for _, line := range lines {
		if _, err := conn.Write([]byte(line)); err != nil {
			return fmt.Errorf("agent: write telemetry line: %w", err)
		}
	}
	return nil
}
