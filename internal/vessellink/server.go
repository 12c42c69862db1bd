package vessellink

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/descent-autopilot/core"
	"github.com/signalsfoundry/descent-autopilot/internal/logging"
	"github.com/signalsfoundry/descent-autopilot/internal/observability"
)

// Server exposes an EnvironmentPort as a VesselLinkServer.
type Server struct {
	port core.EnvironmentPort
	log  logging.Logger
}

// NewServer wraps port.
func NewServer(port core.EnvironmentPort, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{port: port, log: log}
}

// NewGRPCServer builds a gRPC server serving port with run-id propagation,
// tracing and, when collector is non-nil, RPC metrics.
func NewGRPCServer(port core.EnvironmentPort, log logging.Logger, collector *observability.LinkCollector) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{
		RunIDUnaryServerInterceptor(log),
		TracingUnaryServerInterceptor(),
	}
	if collector != nil {
		interceptors = append(interceptors, collector.UnaryServerInterceptor())
	}
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	)
	RegisterVesselLinkServer(srv, NewServer(port, log))
	return srv
}

func (s *Server) logger(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, s.log)
}

func (s *Server) ReadScalar(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.DoubleValue, error) {
	v, err := s.port.ReadScalar(ctx, core.Scalar(in.GetValue()))
	if err != nil {
		return nil, ToStatusError(err)
	}
	return wrapperspb.Double(v), nil
}

func (s *Server) ReadVesselSnapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	vs, err := s.port.ReadVesselSnapshot(ctx)
	if err != nil {
		return nil, ToStatusError(err)
	}
	st, err := toStruct(vs)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return st, nil
}

func (s *Server) ListPartsForStage(ctx context.Context, in *wrapperspb.Int64Value) (*structpb.Struct, error) {
	parts, err := s.port.ListPartsForStage(ctx, int(in.GetValue()))
	if err != nil {
		return nil, ToStatusError(err)
	}
	st, err := toStruct(parts)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return st, nil
}

func (s *Server) Command(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	f := in.GetFields()
	op := f["op"].GetStringValue()
	num := func(k string) float64 { return f[k].GetNumberValue() }
	part := f["part_id"].GetStringValue()

	var err error
	switch op {
	case OpSetAttitudeTarget:
		err = s.port.SetAttitudeTarget(ctx, num("pitch"), num("heading"))
	case OpEngageAutopilot:
		err = s.port.EngageAutopilot(ctx)
	case OpDisengageAutopilot:
		err = s.port.DisengageAutopilot(ctx)
	case OpHoldRetrograde:
		err = s.port.HoldRetrograde(ctx)
	case OpSetThrottle:
		err = s.port.SetThrottle(ctx, num("throttle"))
	case OpActivateNextStage:
		err = s.port.ActivateNextStage(ctx)
	case OpDecouple:
		err = s.port.Decouple(ctx, part)
	case OpSetEngineActive:
		err = s.port.SetEngineActive(ctx, part, f["active"].GetBoolValue())
	case OpSetEngineThrustLimit:
		err = s.port.SetEngineThrustLimit(ctx, part, num("limit"))
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, op)
	}
	if err != nil {
		s.logger(ctx).Warn(ctx, "vessel command failed", logging.String("op", op), logging.Err(err))
		return nil, ToStatusError(err)
	}
	s.logger(ctx).Debug(ctx, "vessel command applied", logging.String("op", op))
	return &emptypb.Empty{}, nil
}
