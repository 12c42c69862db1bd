// Package vessellink carries the autopilot's EnvironmentPort over gRPC. The
// service is described by hand on top of the protobuf well-known types, so
// no generated code is needed on either side.
package vessellink

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "descent.vessellink.v1.VesselLink"

const (
	methodReadScalar         = "ReadScalar"
	methodReadVesselSnapshot = "ReadVesselSnapshot"
	methodListPartsForStage  = "ListPartsForStage"
	methodCommand            = "Command"
)

// Command operations accepted by the Command RPC, in its "op" field.
const (
	OpSetAttitudeTarget    = "set_attitude_target"
	OpEngageAutopilot      = "engage_autopilot"
	OpDisengageAutopilot   = "disengage_autopilot"
	OpHoldRetrograde       = "hold_retrograde"
	OpSetThrottle          = "set_throttle"
	OpActivateNextStage    = "activate_next_stage"
	OpDecouple             = "decouple"
	OpSetEngineActive      = "set_engine_active"
	OpSetEngineThrustLimit = "set_engine_thrust_limit"
)

// VesselLinkServer is the server API of the vessel link.
type VesselLinkServer interface {
	// ReadScalar returns the current value of the named scalar.
	ReadScalar(context.Context, *wrapperspb.StringValue) (*wrapperspb.DoubleValue, error)
	// ReadVesselSnapshot returns a model.VehicleState encoded as a Struct.
	ReadVesselSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// ListPartsForStage returns a model.StageParts encoded as a Struct.
	ListPartsForStage(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	// Command applies one control command.
	Command(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// RegisterVesselLinkServer registers srv on s.
func RegisterVesselLinkServer(s grpc.ServiceRegistrar, srv VesselLinkServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VesselLinkServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodReadScalar, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, VesselLinkServer.ReadScalar),
		unary(methodReadVesselSnapshot, func() *emptypb.Empty { return new(emptypb.Empty) }, VesselLinkServer.ReadVesselSnapshot),
		unary(methodListPartsForStage, func() *wrapperspb.Int64Value { return new(wrapperspb.Int64Value) }, VesselLinkServer.ListPartsForStage),
		unary(methodCommand, func() *structpb.Struct { return new(structpb.Struct) }, VesselLinkServer.Command),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "descent/vessellink/v1/vessellink.proto",
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds the method descriptor for one RPC.
func unary[Req, Resp proto.Message](method string, newReq func() Req, call func(VesselLinkServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(VesselLinkServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(s, ctx, req.(Req))
			})
		},
	}
}
