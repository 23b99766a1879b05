package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/frkn-dev/pony/internal/dataplane"
	"github.com/frkn-dev/pony/internal/model"
)

// fakeHandlerClient records AlterInbound calls and answers
// GetInboundUsersCount from a preset table, standing in for a dialed
// dataplane.HandlerClient in tests.
type fakeHandlerClient struct {
	mu       sync.Mutex
	altered  []dataplane.AlterOp
	alterErr error
	counts   map[model.ProtoTag]int
}

func newFakeHandlerClient() *fakeHandlerClient {
	return &fakeHandlerClient{counts: make(map[model.ProtoTag]int)}
}

func (f *fakeHandlerClient) AlterInbound(ctx context.Context, tag model.ProtoTag, op dataplane.AlterOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alterErr != nil {
		return f.alterErr
	}
	f.altered = append(f.altered, op)
	return nil
}

func (f *fakeHandlerClient) GetInboundUsersCount(ctx context.Context, tag model.ProtoTag) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[tag], nil
}

func (f *fakeHandlerClient) Close() error { return nil }

func (f *fakeHandlerClient) alterCalls() []dataplane.AlterOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]dataplane.AlterOp, len(f.altered))
	copy(out, f.altered)
	return out
}

// fakeStatsClient answers GetStats/GetStatsOnline from preset tables.
type fakeStatsClient struct {
	mu      sync.Mutex
	stats   map[string]uint64
	online  map[string]int64
	statErr error
}

func newFakeStatsClient() *fakeStatsClient {
	return &fakeStatsClient{stats: make(map[string]uint64), online: make(map[string]int64)}
}

func (f *fakeStatsClient) GetStats(ctx context.Context, name string, reset bool) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statErr != nil {
		return 0, f.statErr
	}
	return f.stats[name], nil
}

func (f *fakeStatsClient) GetStatsOnline(ctx context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statErr != nil {
		return 0, f.statErr
	}
	return f.online[name], nil
}

func (f *fakeStatsClient) Close() error { return nil }

var errFakeStat = fmt.Errorf("fake: stats unavailable")
