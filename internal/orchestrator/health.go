package orchestrator

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/frkn-dev/pony/internal/model"
)

// HealthLoop drives every node's Online/Offline state from its latest
// heartbeat timestamp (4.1.5). Create one with NewHealthLoop, Start it at
// process startup, and Stop it on shutdown.
type HealthLoop struct {
	o    *Orchestrator
	loop *loop
}

// NewHealthLoop builds a loop ticking at o.Env.HealthInterval.
func NewHealthLoop(o *Orchestrator) *HealthLoop {
	h := &HealthLoop{o: o}
	h.loop = newLoop(o.Env.HealthInterval, h.tick)
	return h
}

func (h *HealthLoop) Start() { h.loop.Start() }
func (h *HealthLoop) Stop()  { h.loop.Stop() }

// tick evaluates every cached node concurrently: each evaluation is an
// independent time-series read followed by its own store/cache write, so
// nodes don't need to wait on one another.
func (h *HealthLoop) tick() {
	now := time.Now()
	var nodes []model.Node
	h.o.Cache.RangeNodes(func(n model.Node) bool {
		nodes = append(nodes, n)
		return true
	})

	var g errgroup.Group
	for _, n := range nodes {
		n := n
		g.Go(func() error {
			h.evaluate(n, now)
			return nil
		})
	}
	_ = g.Wait()
}

func (h *HealthLoop) evaluate(n model.Node, now time.Time) {
	path := fmt.Sprintf("%s.%s.%s.heartbeat", n.Env, n.Hostname, n.ID)
	ts, ok, err := h.o.Timeseries.LatestTimestamp(path)
	if err != nil {
		log.Printf("orchestrator: health check %s/%s: %v", n.Env, n.ID, err)
		return
	}

	next := n.Status
	switch {
	case !ok:
		next = model.NodeOffline
	case n.Status == model.NodeOnline && now.Sub(time.Unix(ts, 0)) > h.o.Env.HealthTimeout:
		next = model.NodeOffline
	case n.Status != model.NodeOnline && now.Sub(time.Unix(ts, 0)) <= h.o.Env.HealthTimeout:
		next = model.NodeOnline
	}

	if next == n.Status {
		return
	}
	if err := h.o.Store.UpdateNodeStatus(n.Env, n.ID, next, nowNs()); err != nil {
		log.Printf("orchestrator: persist health transition for %s/%s: %v", n.Env, n.ID, err)
		return
	}
	n.Status = next
	h.o.Cache.PutNode(n)
}
