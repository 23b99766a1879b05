package dataplane

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/frkn-dev/pony/internal/model"
)

// Account is the per-protocol credential body AlterInbound's AddUser
// operation carries. Email is always "<conn_id>@pony" (§4.2.2); Password is
// set only for Shadowsocks, matching model.ShadowsocksProto being the only
// variant with a stored secret.
type Account struct {
	Email    string         `json:"email"`
	Tag      model.ProtoTag `json:"tag"`
	Password string         `json:"password,omitempty"`
}

// AlterOp is the tagged operation AlterInbound applies: exactly one of
// AddUser or RemoveUser is set.
type AlterOp struct {
	AddUser    *Account `json:"add_user,omitempty"`
	RemoveUser string   `json:"remove_user,omitempty"`
}

type alterInboundRequest struct {
	Tag model.ProtoTag `json:"tag"`
	Op  AlterOp        `json:"op"`
}

type alterInboundResponse struct{}

type inboundUsersCountRequest struct {
	Tag model.ProtoTag `json:"tag"`
}

type inboundUsersCountResponse struct {
	Count int `json:"count"`
}

// HandlerClient is the opaque dataplane handler service contract (§6):
// AlterInbound adds or removes a user account on an inbound;
// GetInboundUsersCount reports the inbound's live connection count.
type HandlerClient interface {
	AlterInbound(ctx context.Context, tag model.ProtoTag, op AlterOp) error
	GetInboundUsersCount(ctx context.Context, tag model.ProtoTag) (int, error)
	Close() error
}

type grpcHandlerClient struct {
	conn *grpc.ClientConn
}

// NewHandlerClient dials the dataplane handler service at addr.
func NewHandlerClient(addr string) (HandlerClient, error) {
	conn, err := dial(addr)
	if err != nil {
		return nil, err
	}
	return &grpcHandlerClient{conn: conn}, nil
}

func (c *grpcHandlerClient) AlterInbound(ctx context.Context, tag model.ProtoTag, op AlterOp) error {
	req := alterInboundRequest{Tag: tag, Op: op}
	var resp alterInboundResponse
	if err := c.conn.Invoke(ctx, "/xray.app.proxyman.command.HandlerService/AlterInbound", &req, &resp); err != nil {
		return fmt.Errorf("dataplane: AlterInbound(%s): %w", tag, err)
	}
	return nil
}

func (c *grpcHandlerClient) GetInboundUsersCount(ctx context.Context, tag model.ProtoTag) (int, error) {
	req := inboundUsersCountRequest{Tag: tag}
	var resp inboundUsersCountResponse
	if err := c.conn.Invoke(ctx, "/xray.app.proxyman.command.HandlerService/GetInboundUsersCount", &req, &resp); err != nil {
		return 0, fmt.Errorf("dataplane: GetInboundUsersCount(%s): %w", tag, err)
	}
	return resp.Count, nil
}

func (c *grpcHandlerClient) Close() error {
	return c.conn.Close()
}
