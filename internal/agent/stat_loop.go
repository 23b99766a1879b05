package agent

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/frkn-dev/pony/internal/dataplane"
	"github.com/frkn-dev/pony/internal/model"
)

// defaultStatInterval is used when the agent's TOML config leaves
// stat_interval unset.
const defaultStatInterval = 10 * time.Second

// pendingStat is a stat push that failed and is staged for the next tick
// rather than retried inline (§4.2.3).
type pendingStat struct {
	id   string
	stat model.ConnStat
}

// RunStatLoop polls the dataplane stats service for every cached connection
// and inbound on a fixed interval, pushing connection-level counters to the
// orchestrator over REST and folding inbound-level counters into the agent's
// own Node record (§4.2.3). It blocks until ctx is done.
func (a *Agent) RunStatLoop(ctx context.Context) error {
	interval := a.cfg.StatInterval.Std()
	if interval <= 0 {
		interval = defaultStatInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var staged []pendingStat

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			staged = a.statTick(ctx, staged)
		}
	}
}

// statTick runs one collection round: re-pushes anything staged from a prior
// failed round first, then collects fresh connection and inbound stats.
// Pushes that fail this round are returned for the next tick.
func (a *Agent) statTick(ctx context.Context, staged []pendingStat) []pendingStat {
	var mu sync.Mutex
	var failed []pendingStat

	push := func(p pendingStat) {
		if err := a.rest.PushConnectionStat(ctx, p.id, p.stat); err != nil {
			log.Printf("agent: stage stat push for %s, retrying next tick: %v", p.id, err)
			mu.Lock()
			failed = append(failed, p)
			mu.Unlock()
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range staged {
		p := p
		g.Go(func() error {
			push(p)
			return nil
		})
	}

	a.cache.RangeConnections(func(conn model.Connection) bool {
		if conn.IsDeleted {
			return true
		}
		conn := conn
		g.Go(func() error {
			stat, err := a.collectConnStat(ctx, conn)
			if err != nil {
				log.Printf("agent: collect stat for %s: %v", conn.ID, err)
				return nil
			}
			push(pendingStat{id: conn.ID, stat: stat})
			return nil
		})
		return true
	})

	for tag := range a.Node().Inbounds {
		tag := tag
		g.Go(func() error {
			a.collectInboundStat(ctx, tag)
			return nil
		})
	}

	_ = g.Wait()
	return failed
}

// collectConnStat fans out uplink, downlink, and online reads for one
// connection and joins them into a single ConnStat (§4.2.3).
func (a *Agent) collectConnStat(ctx context.Context, conn model.Connection) (model.ConnStat, error) {
	email := account(conn.ID)
	var stat model.ConnStat

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := a.stats.GetStats(ctx, dataplane.UserTrafficStat(email, dataplane.Uplink), false)
		if err != nil {
			return err
		}
		stat.Uplink = v
		return nil
	})
	g.Go(func() error {
		v, err := a.stats.GetStats(ctx, dataplane.UserTrafficStat(email, dataplane.Downlink), false)
		if err != nil {
			return err
		}
		stat.Downlink = v
		return nil
	})
	g.Go(func() error {
		v, err := a.stats.GetStatsOnline(ctx, dataplane.UserOnlineStat(email))
		if err != nil {
			return err
		}
		stat.Online = v > 0
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.ConnStat{}, err
	}
	return stat, nil
}

// collectInboundStat reads one inbound's traffic counters and live user
// count and folds them into the agent's local Node record.
func (a *Agent) collectInboundStat(ctx context.Context, tag model.ProtoTag) {
	var uplink, downlink uint64
	var count int

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := a.stats.GetStats(ctx, dataplane.InboundTrafficStat(tag, dataplane.Uplink), false)
		if err != nil {
			return err
		}
		uplink = v
		return nil
	})
	g.Go(func() error {
		v, err := a.stats.GetStats(ctx, dataplane.InboundTrafficStat(tag, dataplane.Downlink), false)
		if err != nil {
			return err
		}
		downlink = v
		return nil
	})
	g.Go(func() error {
		v, err := a.handler.GetInboundUsersCount(ctx, tag)
		if err != nil {
			return err
		}
		count = v
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("agent: collect inbound stat for %s: %v", tag, err)
		return
	}
	a.setInboundCounters(tag, uplink, downlink, count)
}
