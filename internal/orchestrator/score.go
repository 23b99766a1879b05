package orchestrator

import (
	"fmt"

	"github.com/frkn-dev/pony/internal/model"
)

// NodeScore computes the weighted composite load score for a node (4.1.7):
// score = 0.35*cpu + 0.25*load/cores + 0.25*mem_ratio + 0.15*tx/max_bandwidth,
// each term clamped to [0,1]. cpu/load/mem_ratio/tx come from the latest
// time-series datapoints; cores and max_bandwidth come from the node's own
// metadata. A missing datapoint or missing node metadata is an error so the
// REST handler can answer 5xx rather than scoring on partial data.
func (o *Orchestrator) NodeScore(env, id string) (float64, error) {
	node, ok := o.GetNode(env, id)
	if !ok {
		return 0, fmt.Errorf("node %s/%s not found", env, id)
	}
	if node.Cores <= 0 {
		return 0, fmt.Errorf("node %s/%s has no cores reported", env, id)
	}
	if node.MaxBandwidthBps == 0 {
		return 0, fmt.Errorf("node %s/%s has no max_bandwidth_bps reported", env, id)
	}

	cpu, err := o.latestMetric(node, "cpu")
	if err != nil {
		return 0, err
	}
	load, err := o.latestMetric(node, "load")
	if err != nil {
		return 0, err
	}
	mem, err := o.latestMetric(node, "mem_ratio")
	if err != nil {
		return 0, err
	}
	tx, err := o.latestMetric(node, "tx")
	if err != nil {
		return 0, err
	}

	score := 0.35*clamp01(cpu) +
		0.25*clamp01(load/float64(node.Cores)) +
		0.25*clamp01(mem) +
		0.15*clamp01(tx/float64(node.MaxBandwidthBps))
	return score, nil
}

func (o *Orchestrator) latestMetric(node model.Node, name string) (float64, error) {
	path := fmt.Sprintf("%s.%s.%s.%s", node.Env, node.Hostname, node.ID, name)
	v, ok, err := o.Timeseries.LatestValue(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	if !ok {
		return 0, fmt.Errorf("no datapoint at %s", path)
	}
	return v, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
