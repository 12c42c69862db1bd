package vessellink

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/descent-autopilot/core"
)

// ErrUnknownCommand is returned for a Command whose op is not recognised.
var ErrUnknownCommand = errors.New("unknown command")

// ToStatusError maps port errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, core.ErrUnknownScalar),
		errors.Is(err, core.ErrPartNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrUnknownCommand):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, core.ErrConnectivity):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// FromStatusError turns a status returned by the link back into the port's
// error vocabulary. notFound is the sentinel a NotFound status stands for on
// the calling RPC. Transport failures wrap core.ErrConnectivity.
func FromStatusError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", core.ErrConnectivity, err)
	}

	switch st.Code() {
	case codes.NotFound:
		if notFound != nil {
			return fmt.Errorf("%w: %s", notFound, st.Message())
		}
		return errors.New(st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%s: %w", st.Message(), context.Canceled)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", st.Message(), context.DeadlineExceeded)
	default:
		return fmt.Errorf("%w: %s: %s", core.ErrConnectivity, st.Code(), st.Message())
	}
}
