package core

import (
	"context"
	"math"

	"github.com/signalsfoundry/descent-autopilot/internal/logging"
	"github.com/signalsfoundry/descent-autopilot/model"
)

// Mission thresholds, in metres.
const (
	OrbitAltitude            = 70000.0
	BoosterCutoffApoapsis    = 10000.0
	PitchHoldWindow          = 2000.0
	SecondAscentApoapsis     = 72000.0
	ApoapsisLatchWindow      = 50.0
	GravityTurnAltitude      = 8000.0
	LaunchHeading            = 90.0
	MaxBrakingPitch          = 60.0
	BrakingPitchGain         = 5.0
	DiagnosticSpeedReduction = 520.0
)

// canAdvance is the mission-stage transition predicate. The orbital
// insertion shortcut is checked before the per-stage rules.
func (a *Autopilot) canAdvance(vs *model.VehicleState) bool {
	apo := a.streams.Apoapsis.Read()
	peri := a.streams.Periapsis.Read()
	alt := a.streams.Altitude.Read()

	if a.stage < model.StageCircularized && apo > OrbitAltitude && peri > OrbitAltitude {
		return true
	}
	switch a.stage {
	case model.StageAscent:
		return apo > BoosterCutoffApoapsis && !HasResource(vs, model.ResourceSolidFuel)
	case model.StagePitchHold:
		return math.Abs(apo-alt) < PitchHoldWindow
	case model.StageSecondAscent:
		return apo > SecondAscentApoapsis
	case model.StageCoastToApoapsis:
		return a.achievedApoapsis
	case model.StageCircularizationWait:
		return peri > OrbitAltitude
	}
	return false
}

// applyStagePolicy issues the attitude and throttle commands that belong to
// entering the current mission stage.
func (a *Autopilot) applyStagePolicy(ctx context.Context, vs *model.VehicleState) error {
	cmd := a.commands(ctx)
	switch a.stage {
	case model.StageAscent:
		cmd.attitude(90, LaunchHeading)
	case model.StagePitchHold:
		cmd.attitude(45, LaunchHeading)
		cmd.throttle(0)
	case model.StageSecondAscent:
		cmd.attitude(45, LaunchHeading)
		cmd.throttle(1)
	case model.StageCoastToApoapsis:
		cmd.throttle(0)
	case model.StageCircularized:
		cmd.throttle(0)
		a.reportBrakingTarget(ctx, vs)
	default:
		cmd.throttle(1)
		cmd.ignite()
	}
	return cmd.err
}

// reportBrakingTarget logs the velocity the vessel would have after
// shedding DiagnosticSpeedReduction along prograde. No command is issued.
func (a *Autopilot) reportBrakingTarget(ctx context.Context, vs *model.VehicleState) {
	speed := vs.Velocity.Norm()
	if speed == 0 {
		return
	}
	target := vs.Velocity.Scale((speed - DiagnosticSpeedReduction) / speed)
	a.logger(ctx).Info(ctx, "braking target computed",
		logging.Float("horizontal_speed", target.Horizontal()),
		logging.Float("vertical_speed", target[0]),
	)
}

// steer applies the per-tick attitude law of the current mission stage.
func (a *Autopilot) steer(ctx context.Context, vs *model.VehicleState) error {
	cmd := a.commands(ctx)
	switch {
	case a.stage == model.StageAscent:
		if a.streams.Altitude.Read() > GravityTurnAltitude {
			cmd.attitude(75, LaunchHeading)
		}
	case a.stage >= model.StageSecondAscent && a.stage <= model.StageCircularizationWait:
		if a.achievedApoapsis {
			cmd.attitude(brakingPitch(vs.Flight.VerticalSpeed), LaunchHeading)
		} else {
			cmd.attitude(45, LaunchHeading)
		}
	case a.stage == model.StageCircularized:
		cmd.disengage()
		cmd.holdRetrograde()
		cmd.throttle(0)
		if cmd.err != nil {
			return cmd.err
		}
		return a.decideBurn(ctx, vs)
	case a.stage == model.StageLandingDataCollection:
		cmd.ignite()
		cmd.throttle(1)
		cmd.disengage()
		if cmd.err != nil {
			return cmd.err
		}
		parts, err := a.stager.CurrentStageParts(ctx)
		if err != nil {
			return err
		}
		if len(parts.Engines) == 0 {
			a.enterSampling(ctx)
		}
	}
	return cmd.err
}

// brakingPitch noses up in proportion to the sink rate to cancel it, and
// holds level otherwise.
func brakingPitch(verticalSpeed float64) float64 {
	if verticalSpeed < 0 {
		return math.Min(MaxBrakingPitch, BrakingPitchGain*math.Abs(verticalSpeed))
	}
	return 0
}

// commandBatch issues a sequence of port commands, stopping at the first
// error, which it keeps in err.
type commandBatch struct {
	ctx    context.Context
	port   EnvironmentPort
	stager *Stager
	err    error
}

func (a *Autopilot) commands(ctx context.Context) *commandBatch {
	return &commandBatch{ctx: ctx, port: a.port, stager: a.stager}
}

func (b *commandBatch) attitude(pitch, heading float64) {
	if b.err == nil {
		b.err = b.port.SetAttitudeTarget(b.ctx, pitch, heading)
	}
}

func (b *commandBatch) throttle(v float64) {
	if b.err == nil {
		b.err = b.port.SetThrottle(b.ctx, v)
	}
}

func (b *commandBatch) engage() {
	if b.err == nil {
		b.err = b.port.EngageAutopilot(b.ctx)
	}
}

func (b *commandBatch) disengage() {
	if b.err == nil {
		b.err = b.port.DisengageAutopilot(b.ctx)
	}
}

func (b *commandBatch) holdRetrograde() {
	if b.err == nil {
		b.err = b.port.HoldRetrograde(b.ctx)
	}
}

func (b *commandBatch) activateNextStage() {
	if b.err == nil {
		b.err = b.port.ActivateNextStage(b.ctx)
	}
}

func (b *commandBatch) ignite() {
	if b.err == nil {
		b.err = b.stager.IgniteCurrentStageEngines(b.ctx)
	}
}
