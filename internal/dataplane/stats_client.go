package dataplane

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/frkn-dev/pony/internal/model"
)

// Direction names one side of a traffic counter.
type Direction string

const (
	Uplink   Direction = "uplink"
	Downlink Direction = "downlink"
)

// UserTrafficStat names a per-connection traffic counter: §6's
// "user>>><email>>>>traffic>>>{uplink|downlink}".
func UserTrafficStat(email string, dir Direction) string {
	return fmt.Sprintf("user>>>%s>>>traffic>>>%s", email, dir)
}

// UserOnlineStat names a per-connection online flag: "user>>><email>>>>online".
func UserOnlineStat(email string) string {
	return fmt.Sprintf("user>>>%s>>>online", email)
}

// InboundTrafficStat names a per-inbound traffic counter:
// "inbound>>><tag>>>>traffic>>>{uplink|downlink}".
func InboundTrafficStat(tag model.ProtoTag, dir Direction) string {
	return fmt.Sprintf("inbound>>>%s>>>traffic>>>%s", tag, dir)
}

type getStatsRequest struct {
	Name  string `json:"name"`
	Reset bool   `json:"reset"`
}

type getStatsResponse struct {
	Value uint64 `json:"value"`
}

type getStatsOnlineRequest struct {
	Name string `json:"name"`
}

type getStatsOnlineResponse struct {
	Value int64 `json:"value"`
}

// StatsClient is the opaque dataplane stats service contract (§6):
// GetStats reads (and optionally resets) a named counter; GetStatsOnline
// reads a named online-count gauge.
type StatsClient interface {
	GetStats(ctx context.Context, name string, reset bool) (uint64, error)
	GetStatsOnline(ctx context.Context, name string) (int64, error)
	Close() error
}

type grpcStatsClient struct {
	conn *grpc.ClientConn
}

// NewStatsClient dials the dataplane stats service at addr.
func NewStatsClient(addr string) (StatsClient, error) {
	conn, err := dial(addr)
	if err != nil {
		return nil, err
	}
	return &grpcStatsClient{conn: conn}, nil
}

func (c *grpcStatsClient) GetStats(ctx context.Context, name string, reset bool) (uint64, error) {
	req := getStatsRequest{Name: name, Reset: reset}
	var resp getStatsResponse
	if err := c.conn.Invoke(ctx, "/xray.app.stats.command.StatsService/GetStats", &req, &resp); err != nil {
		return 0, fmt.Errorf("dataplane: GetStats(%s): %w", name, err)
	}
	return resp.Value, nil
}

func (c *grpcStatsClient) GetStatsOnline(ctx context.Context, name string) (int64, error) {
	req := getStatsOnlineRequest{Name: name}
	var resp getStatsOnlineResponse
	if err := c.conn.Invoke(ctx, "/xray.app.stats.command.StatsService/GetStatsOnline", &req, &resp); err != nil {
		return 0, fmt.Errorf("dataplane: GetStatsOnline(%s): %w", name, err)
	}
	return resp.Value, nil
}

func (c *grpcStatsClient) Close() error {
	return c.conn.Close()
}
