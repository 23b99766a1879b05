package sidecar

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// loop wraps one periodic background job using robfig/cron's "@every"
// scheduling, mirroring internal/orchestrator's loop type (unexported there,
// so duplicated here rather than shared across packages).
type loop struct {
	cron *cron.Cron
	spec string
	fn   func()
}

func newLoop(interval time.Duration, fn func()) *loop {
	return &loop{
		cron: cron.New(),
		spec: fmt.Sprintf("@every %s", interval),
		fn:   fn,
	}
}

func (l *loop) Start() {
	if _, err := l.cron.AddFunc(l.spec, l.fn); err != nil {
		panic(fmt.Sprintf("sidecar: invalid loop schedule %q: %v", l.spec, err))
	}
	l.cron.Start()
}

func (l *loop) Stop() {
	<-l.cron.Stop().Done()
}
