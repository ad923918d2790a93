package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ChuLiYu/stepflow/pkg/types"
)

// Client calls stepflow.v1.Scheduler over an established connection.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) ComputeOrder(ctx context.Context, req types.PlanRequest) (*types.PlanReport, error) {
	var report types.PlanReport
	if err := c.invoke(ctx, MethodComputeOrder, req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) ComputeMakespan(ctx context.Context, req types.PlanRequest) (*types.PlanReport, error) {
	var report types.PlanReport
	if err := c.invoke(ctx, MethodComputeMakespan, req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) ReadyTasks(ctx context.Context, req types.PlanRequest) ([]types.TaskID, error) {
	var resp types.ReadyResponse
	if err := c.invoke(ctx, MethodReadyTasks, req, &resp); err != nil {
		return nil, err
	}
	return resp.Ready, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, reply any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return err
	}
	return fromStruct(out, reply)
}
