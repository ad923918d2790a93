// ============================================================================
// stepflow gRPC server
// ============================================================================
//
// Package: internal/server
// File: server.go
// Purpose: Exposes the scheduler over gRPC as stepflow.v1.Scheduler
//
// Error mapping:
//   invalid configuration or malformed request -> codes.InvalidArgument
//   cyclic dependency                          -> codes.FailedPrecondition
//   anything else                              -> codes.Internal
//
// ============================================================================

package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ChuLiYu/stepflow/internal/controller"
	"github.com/ChuLiYu/stepflow/internal/scheduler"
	"github.com/ChuLiYu/stepflow/pkg/types"
)

var log = slog.Default()

// Planner is the part of the controller the server needs.
type Planner interface {
	Order(edges []types.Edge[types.TaskID], isolated []types.TaskID) (*types.PlanReport, error)
	Makespan(edges []types.Edge[types.TaskID], isolated []types.TaskID, opts controller.Options) (*types.PlanReport, error)
	OptionsFor(req types.PlanRequest) controller.Options
	Ready(req types.PlanRequest) ([]types.TaskID, error)
	RejectInput(source string, err error)
}

// Server implements SchedulerServer on top of a Planner.
type Server struct {
	planner Planner
}

// NewServer creates a gRPC service backed by planner.
func NewServer(planner Planner) *Server {
	return &Server{planner: planner}
}

// NewGRPCServer returns a grpc.Server with the scheduler service registered
// and request logging installed.
func NewGRPCServer(planner Planner, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor))
	s := grpc.NewServer(opts...)
	RegisterSchedulerServer(s, NewServer(planner))
	return s
}

// Serve runs s on lis until it is stopped.
func Serve(s *grpc.Server, lis net.Listener) error {
	log.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.Serve(lis)
}

func (s *Server) ComputeOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.decodeRequest(ctx, in)
	if err != nil {
		return nil, err
	}
	report, err := s.planner.Order(req.Edges, req.Tasks)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeReply(report)
}

func (s *Server) ComputeMakespan(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.decodeRequest(ctx, in)
	if err != nil {
		return nil, err
	}
	report, err := s.planner.Makespan(req.Edges, req.Tasks, s.planner.OptionsFor(req))
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeReply(report)
}

func (s *Server) ReadyTasks(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.decodeRequest(ctx, in)
	if err != nil {
		return nil, err
	}
	ready, err := s.planner.Ready(req)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeReply(types.ReadyResponse{Ready: ready})
}

func (s *Server) decodeRequest(ctx context.Context, in *structpb.Struct) (types.PlanRequest, error) {
	var req types.PlanRequest
	if err := fromStruct(in, &req); err != nil {
		method, _ := grpc.Method(ctx)
		s.planner.RejectInput(method, err)
		return req, status.Error(codes.InvalidArgument, err.Error())
	}
	return req, nil
}

func encodeReply(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, scheduler.ErrInvalidConfiguration):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, scheduler.ErrCyclicDependency):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, controller.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log.Debug("rpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start))
	return resp, err
}
