package vessellink

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/descent-autopilot/core"
	"github.com/signalsfoundry/descent-autopilot/internal/observability"
	"github.com/signalsfoundry/descent-autopilot/model"
)

// Client implements core.EnvironmentPort against a remote vessel.
type Client struct {
	cc grpc.ClientConnInterface
}

var _ core.EnvironmentPort = (*Client)(nil)

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial opens an insecure connection to a vessel link server with tracing
// and run-id propagation. collector may be nil.
func Dial(addr string, collector *observability.LinkCollector, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	interceptors := []grpc.UnaryClientInterceptor{RunIDUnaryClientInterceptor()}
	if collector != nil {
		interceptors = append(interceptors, collector.UnaryClientInterceptor())
	}
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(interceptors...),
	}
	return grpc.NewClient(addr, append(base, opts...)...)
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, notFound error) error {
	err := c.cc.Invoke(ctx, fullMethod(method), in, out)
	return FromStatusError(err, notFound)
}

func (c *Client) command(ctx context.Context, op string, args map[string]any) error {
	fields := map[string]any{"op": op}
	for k, v := range args {
		fields[k] = v
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}
	return c.invoke(ctx, methodCommand, st, &emptypb.Empty{}, core.ErrPartNotFound)
}

func (c *Client) ReadScalar(ctx context.Context, name core.Scalar) (float64, error) {
	out := &wrapperspb.DoubleValue{}
	if err := c.invoke(ctx, methodReadScalar, wrapperspb.String(string(name)), out, core.ErrUnknownScalar); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *Client) ReadVesselSnapshot(ctx context.Context) (*model.VehicleState, error) {
	out := &structpb.Struct{}
	if err := c.invoke(ctx, methodReadVesselSnapshot, &emptypb.Empty{}, out, nil); err != nil {
		return nil, err
	}
	vs := &model.VehicleState{}
	if err := fromStruct(out, vs); err != nil {
		return nil, err
	}
	return vs, nil
}

func (c *Client) ListPartsForStage(ctx context.Context, stage int) (model.StageParts, error) {
	out := &structpb.Struct{}
	if err := c.invoke(ctx, methodListPartsForStage, wrapperspb.Int64(int64(stage)), out, nil); err != nil {
		return model.StageParts{}, err
	}
	var parts model.StageParts
	if err := fromStruct(out, &parts); err != nil {
		return model.StageParts{}, err
	}
	return parts, nil
}

func (c *Client) SetAttitudeTarget(ctx context.Context, pitch, heading float64) error {
	return c.command(ctx, OpSetAttitudeTarget, map[string]any{"pitch": pitch, "heading": heading})
}

func (c *Client) EngageAutopilot(ctx context.Context) error {
	return c.command(ctx, OpEngageAutopilot, nil)
}

func (c *Client) DisengageAutopilot(ctx context.Context) error {
	return c.command(ctx, OpDisengageAutopilot, nil)
}

func (c *Client) HoldRetrograde(ctx context.Context) error {
	return c.command(ctx, OpHoldRetrograde, nil)
}

func (c *Client) SetThrottle(ctx context.Context, throttle float64) error {
	return c.command(ctx, OpSetThrottle, map[string]any{"throttle": throttle})
}

func (c *Client) ActivateNextStage(ctx context.Context) error {
	return c.command(ctx, OpActivateNextStage, nil)
}

func (c *Client) Decouple(ctx context.Context, partID string) error {
	return c.command(ctx, OpDecouple, map[string]any{"part_id": partID})
}

func (c *Client) SetEngineActive(ctx context.Context, partID string, active bool) error {
	return c.command(ctx, OpSetEngineActive, map[string]any{"part_id": partID, "active": active})
}

func (c *Client) SetEngineThrustLimit(ctx context.Context, partID string, limit float64) error {
	return c.command(ctx, OpSetEngineThrustLimit, map[string]any{"part_id": partID, "limit": limit})
}
