package server

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "stepflow.v1.Scheduler"

// Full method names.
const (
	MethodComputeOrder    = "/" + ServiceName + "/ComputeOrder"
	MethodComputeMakespan = "/" + ServiceName + "/ComputeMakespan"
	MethodReadyTasks      = "/" + ServiceName + "/ReadyTasks"
)

// SchedulerServer is the server side of stepflow.v1.Scheduler. Requests and
// replies are google.protobuf.Struct messages carrying the JSON shapes of
// types.PlanRequest, types.PlanReport and types.ReadyResponse.
type SchedulerServer interface {
	ComputeOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ComputeMakespan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReadyTasks(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes stepflow.v1.Scheduler for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ComputeOrder", Handler: unaryHandler(MethodComputeOrder, SchedulerServer.ComputeOrder)},
		{MethodName: "ComputeMakespan", Handler: unaryHandler(MethodComputeMakespan, SchedulerServer.ComputeMakespan)},
		{MethodName: "ReadyTasks", Handler: unaryHandler(MethodReadyTasks, SchedulerServer.ReadyTasks)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stepflow/v1/scheduler.proto",
}

// RegisterSchedulerServer registers srv on s.
func RegisterSchedulerServer(s grpc.ServiceRegistrar, srv SchedulerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(SchedulerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SchedulerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SchedulerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// toStruct converts a JSON-tagged Go value into a Struct message.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return out, nil
}

// fromStruct decodes a Struct message into a JSON-tagged Go value.
func fromStruct(in *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
