package core

import (
	"context"
	"errors"

	"github.com/signalsfoundry/descent-autopilot/model"
)

// Scalar names a live-updating numeric reading of the vessel or of the
// simulation.
type Scalar string

const (
	ScalarAltitude      Scalar = "mean_altitude"
	ScalarApoapsis      Scalar = "apoapsis_altitude"
	ScalarPeriapsis     Scalar = "periapsis_altitude"
	ScalarUniversalTime Scalar = "ut"
	ScalarWarpRate      Scalar = "warp_rate"
	// ScalarControlStage is the vessel's hardware staging index.
	ScalarControlStage Scalar = "current_stage"
)

var (
	// ErrConnectivity marks a failure of the channel to the vessel. It is
	// fatal to the control loop.
	ErrConnectivity = errors.New("vessel connection lost")
	// ErrUnknownScalar is returned for a scalar name the provider does not
	// publish.
	ErrUnknownScalar = errors.New("unknown scalar")
	// ErrPartNotFound is returned when a command references a missing part.
	ErrPartNotFound = errors.New("part not found")
)

// EnvironmentPort is the capability set the autopilot needs from the
// vessel and its simulation. Any error is treated as a lost connection.
type EnvironmentPort interface {
	ReadScalar(ctx context.Context, name Scalar) (float64, error)
	ReadVesselSnapshot(ctx context.Context) (*model.VehicleState, error)
	// ListPartsForStage returns the engines and decouplers whose assigned
	// stage equals stage.
	ListPartsForStage(ctx context.Context, stage int) (model.StageParts, error)

	SetAttitudeTarget(ctx context.Context, pitchDeg, headingDeg float64) error
	EngageAutopilot(ctx context.Context) error
	DisengageAutopilot(ctx context.Context) error
	// HoldRetrograde switches attitude control to a hold on the retrograde
	// direction.
	HoldRetrograde(ctx context.Context) error
	SetThrottle(ctx context.Context, throttle float64) error
	ActivateNextStage(ctx context.Context) error
	Decouple(ctx context.Context, partID string) error
	SetEngineActive(ctx context.Context, partID string, active bool) error
	SetEngineThrustLimit(ctx context.Context, partID string, limit float64) error
}
