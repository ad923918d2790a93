package server

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ChuLiYu/stepflow/internal/controller"
	"github.com/ChuLiYu/stepflow/internal/scheduler"
	"github.com/ChuLiYu/stepflow/pkg/types"
)

func referenceRequest() types.PlanRequest {
	pairs := [][2]types.TaskID{
		{"C", "A"}, {"C", "F"}, {"A", "B"}, {"A", "D"},
		{"B", "E"}, {"D", "E"}, {"F", "E"},
	}
	var req types.PlanRequest
	for _, p := range pairs {
		req.Edges = append(req.Edges, types.NewEdge(p[0], p[1]))
	}
	return req
}

func intPtr(v int) *int { return &v }

// newTestClient serves a controller without persistence over an in-memory
// listener and returns a client connected to it.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, _ := newTestClientWithController(t)
	return client
}

func newTestClientWithController(t *testing.T) (*Client, *controller.Controller) {
	t.Helper()

	ctrl, err := controller.NewController(controller.Config{
		Workers:        2,
		DurationPolicy: scheduler.PolicyLetter,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ctrl.Close() })

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(ctrl)
	go func() { _ = Serve(srv, lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewClient(conn), ctrl
}

func TestComputeOrder(t *testing.T) {
	client := newTestClient(t)

	report, err := client.ComputeOrder(context.Background(), referenceRequest())
	require.NoError(t, err)
	assert.Equal(t, []types.TaskID{"C", "A", "B", "D", "F", "E"}, report.Order)
	assert.Equal(t, types.ModeOrder, report.Mode)
	assert.NotEmpty(t, report.RunID)
}

func TestComputeMakespan(t *testing.T) {
	client := newTestClient(t)

	report, err := client.ComputeMakespan(context.Background(), referenceRequest())
	require.NoError(t, err)
	assert.Equal(t, 15, report.Makespan)
	assert.Equal(t, 2, report.Workers)
	require.Len(t, report.Timeline, 6)
	assert.Equal(t, types.ScheduledTask[types.TaskID]{Task: "E", Start: 10, Finish: 15}, report.Timeline[5])

	req := referenceRequest()
	req.Workers = intPtr(1)
	report, err = client.ComputeMakespan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 21, report.Makespan)

	req.Policy = scheduler.PolicyUnit
	report, err = client.ComputeMakespan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Makespan)
}

func TestReadyTasks(t *testing.T) {
	client := newTestClient(t)

	req := referenceRequest()
	ready, err := client.ReadyTasks(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []types.TaskID{"C"}, ready)

	req.Completed = []types.TaskID{"C", "A"}
	ready, err = client.ReadyTasks(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []types.TaskID{"B", "D", "F"}, ready)
}

func TestReadyTasksAfterClose(t *testing.T) {
	client, ctrl := newTestClientWithController(t)
	require.NoError(t, ctrl.Close())

	_, err := client.ReadyTasks(context.Background(), referenceRequest())
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestErrorCodes(t *testing.T) {
	client := newTestClient(t)

	cycle := types.PlanRequest{Edges: []types.Edge[types.TaskID]{
		types.NewEdge[types.TaskID]("A", "B"), types.NewEdge[types.TaskID]("B", "A"),
	}}
	_, err := client.ComputeOrder(context.Background(), cycle)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "A -> B -> A")

	_, err = client.ComputeMakespan(context.Background(), cycle)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	req := referenceRequest()
	req.Workers = intPtr(0)
	_, err = client.ComputeMakespan(context.Background(), req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestMalformedRequest(t *testing.T) {
	client := newTestClient(t)

	// workers must be an integer
	in, err := toStruct(map[string]any{"edges": []any{}, "workers": 1.5})
	require.NoError(t, err)
	err = client.conn.Invoke(context.Background(), MethodComputeMakespan, in, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
