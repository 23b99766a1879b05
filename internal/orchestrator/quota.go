package orchestrator

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/frkn-dev/pony/internal/model"
)

const bytesPerMB = 1 << 20

// QuotaLoop enforces each active trial connection's daily uplink limit
// (4.1.6): if usage since the connection's last modification exceeds its
// limit, the connection is marked Expired and a Delete event is published.
type QuotaLoop struct {
	o    *Orchestrator
	loop *loop
}

// NewQuotaLoop builds a loop ticking at o.Env.QuotaInterval.
func NewQuotaLoop(o *Orchestrator) *QuotaLoop {
	q := &QuotaLoop{o: o}
	q.loop = newLoop(o.Env.QuotaInterval, q.tick)
	return q
}

func (q *QuotaLoop) Start() { q.loop.Start() }
func (q *QuotaLoop) Stop()  { q.loop.Stop() }

// tick scans every active trial connection concurrently: each connection's
// uplink sum is an independent time-series query, so there's no reason to
// serialize the scan.
func (q *QuotaLoop) tick() {
	conns, err := q.o.Store.ListActiveTrialConnections()
	if err != nil {
		log.Printf("orchestrator: quota loop list active trials: %v", err)
		return
	}

	now := time.Now()
	var g errgroup.Group
	for _, conn := range conns {
		conn := conn
		g.Go(func() error {
			q.checkConnection(conn, now)
			return nil
		})
	}
	_ = g.Wait()
}

func (q *QuotaLoop) checkConnection(conn model.Connection, now time.Time) {
	limit := conn.DailyLimitMB
	if limit == 0 {
		limit = q.o.Env.DefaultTrialDailyLimitMB
	}

	pattern := fmt.Sprintf("%s.*.%s.uplink", conn.Env, conn.ID)
	windowStart := conn.ModifiedAt.Unix()
	windowEnd := conn.ModifiedAt.Add(24 * time.Hour).Unix()
	sum, err := q.o.Timeseries.SumRange(pattern, windowStart, windowEnd)
	if err != nil {
		log.Printf("orchestrator: quota loop sum uplink for %s: %v", conn.ID, err)
		return
	}
	if sum/bytesPerMB <= float64(limit) {
		return
	}

	if err := q.o.Store.ExpireTrialConnection(conn.ID, now.UnixNano()); err != nil {
		log.Printf("orchestrator: quota loop expire %s: %v", conn.ID, err)
		return
	}
	conn.Status = model.ConnectionExpired
	conn.ModifiedAt = now
	q.o.Cache.PutConnection(conn)
	q.o.publish(conn.Env, conn.Proto, messageForConnection(model.ActionDelete, conn))
}

// ReactivationLoop is QuotaLoop's companion: it re-activates Expired trial
// connections whose modified_at is old enough to count as a new day.
type ReactivationLoop struct {
	o    *Orchestrator
	loop *loop
}

// NewReactivationLoop builds a loop ticking at o.Env.QuotaInterval, reusing
// the same cadence as QuotaLoop since both scan the trial-connection set.
func NewReactivationLoop(o *Orchestrator) *ReactivationLoop {
	r := &ReactivationLoop{o: o}
	r.loop = newLoop(o.Env.QuotaInterval, r.tick)
	return r
}

func (r *ReactivationLoop) Start() { r.loop.Start() }
func (r *ReactivationLoop) Stop()  { r.loop.Stop() }

func (r *ReactivationLoop) tick() {
	cutoff := time.Now().Add(-r.o.Env.QuotaReactivationAfter).UnixNano()
	conns, err := r.o.Store.ListExpiredTrialConnectionsOlderThan(cutoff)
	if err != nil {
		log.Printf("orchestrator: reactivation loop list: %v", err)
		return
	}

	now := time.Now()
	var g errgroup.Group
	for _, conn := range conns {
		conn := conn
		g.Go(func() error {
			r.reactivate(conn, now)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *ReactivationLoop) reactivate(conn model.Connection, now time.Time) {
	if err := r.o.Store.ReactivateTrialConnection(conn.ID, now.UnixNano()); err != nil {
		log.Printf("orchestrator: reactivate %s: %v", conn.ID, err)
		return
	}
	conn.Status = model.ConnectionActive
	conn.ModifiedAt = now
	r.o.Cache.PutConnection(conn)
	r.o.publish(conn.Env, conn.Proto, messageForConnection(model.ActionCreate, conn))
}
