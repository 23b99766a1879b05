package orchestrator

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// loop wraps one periodic background job using robfig/cron's "@every"
// scheduling, exposing the same Start/Stop shape the teacher's background
// loops use. cron.Cron.Stop() returns a context that is done once any job
// already in flight has finished; Stop waits on it, so Stop is a clean
// shutdown point.
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
		panic(fmt.Sprintf("orchestrator: invalid loop schedule %q: %v", l.spec, err))
	}
	l.cron.Start()
}

func (l *loop) Stop() {
	<-l.cron.Stop().Done()
}
