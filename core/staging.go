package core

import (
	"context"
	"fmt"
	"math"

	"github.com/signalsfoundry/descent-autopilot/internal/logging"
	"github.com/signalsfoundry/descent-autopilot/model"
)

// HasResource reports whether a positive amount of the named resource sits
// in a part of the vessel's current control stage. Resources staged
// elsewhere do not count, even when plentiful.
func HasResource(vs *model.VehicleState, name string) bool {
	for _, r := range vs.Resources {
		if r.Name == name && r.Amount > 0 && r.Stage == vs.ControlStage {
			return true
		}
	}
	return false
}

// TotalResource sums the named resource over every part regardless of stage.
func TotalResource(vs *model.VehicleState, name string) float64 {
	total := 0.0
	for _, r := range vs.Resources {
		if r.Name == name {
			total += r.Amount
		}
	}
	return total
}

// Stager performs hardware staging: it decouples spent stages and lights
// the engines of the next one. The parts of "the current stage" are those
// whose recorded stage is one below the control stage, since the vessel
// increments its counter before the hardware is exposed.
type Stager struct {
	port EnvironmentPort
	log  logging.Logger

	// issued remembers every decoupler commanded so far; a decoupler is
	// never commanded twice even if the vessel is slow to report it.
	issued map[string]struct{}
}

// NewStager builds a Stager on port.
func NewStager(port EnvironmentPort, log logging.Logger) *Stager {
	if log == nil {
		log = logging.Noop()
	}
	return &Stager{
		port:   port,
		log:    log,
		issued: make(map[string]struct{}),
	}
}

// ControlStage reads the vessel's hardware staging index.
func (s *Stager) ControlStage(ctx context.Context) (int, error) {
	v, err := s.port.ReadScalar(ctx, ScalarControlStage)
	if err != nil {
		return 0, fmt.Errorf("read control stage: %w", err)
	}
	return int(math.Round(v)), nil
}

// CurrentStageParts lists the engines and decouplers of the current stage.
func (s *Stager) CurrentStageParts(ctx context.Context) (model.StageParts, error) {
	stage, err := s.ControlStage(ctx)
	if err != nil {
		return model.StageParts{}, err
	}
	parts, err := s.port.ListPartsForStage(ctx, stage-1)
	if err != nil {
		return model.StageParts{}, fmt.Errorf("list parts for stage %d: %w", stage-1, err)
	}
	return parts, nil
}

// DecoupleCurrentStage fires every staged, still attached decoupler of the
// current stage and returns how many were commanded.
func (s *Stager) DecoupleCurrentStage(ctx context.Context) (int, error) {
	parts, err := s.CurrentStageParts(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range parts.Decouplers {
		if d.Decoupled || !d.Staged {
			continue
		}
		if _, done := s.issued[d.ID]; done {
			continue
		}
		if err := s.port.Decouple(ctx, d.ID); err != nil {
			return n, fmt.Errorf("decouple %s: %w", d.ID, err)
		}
		s.issued[d.ID] = struct{}{}
		n++
	}
	return n, nil
}

// IgniteCurrentStageEngines sets every current-stage engine to full thrust
// limit and activates it.
func (s *Stager) IgniteCurrentStageEngines(ctx context.Context) error {
	parts, err := s.CurrentStageParts(ctx)
	if err != nil {
		return err
	}
	for _, e := range parts.Engines {
		if err := s.port.SetEngineThrustLimit(ctx, e.ID, 1); err != nil {
			return fmt.Errorf("thrust limit %s: %w", e.ID, err)
		}
		if err := s.port.SetEngineActive(ctx, e.ID, true); err != nil {
			return fmt.Errorf("activate engine %s: %w", e.ID, err)
		}
	}
	return nil
}

// ShutdownCurrentStageEngines deactivates every current-stage engine.
func (s *Stager) ShutdownCurrentStageEngines(ctx context.Context) error {
	parts, err := s.CurrentStageParts(ctx)
	if err != nil {
		return err
	}
	for _, e := range parts.Engines {
		if err := s.port.SetEngineActive(ctx, e.ID, false); err != nil {
			return fmt.Errorf("shutdown engine %s: %w", e.ID, err)
		}
	}
	return nil
}

// AdvanceStage activates the next hardware stage. It refuses while solid
// or liquid fuel remains in the current control stage, and otherwise runs
// activation, decoupling and ignition in that order. The boolean reports
// whether the stage was advanced.
func (s *Stager) AdvanceStage(ctx context.Context, vs *model.VehicleState) (bool, error) {
	if HasResource(vs, model.ResourceSolidFuel) || HasResource(vs, model.ResourceLiquidFuel) {
		logging.FromContext(ctx, s.log).Debug(ctx, "staging deferred; propellant remains",
			logging.Int("control_stage", vs.ControlStage))
		return false, nil
	}
	if err := s.port.ActivateNextStage(ctx); err != nil {
		return false, fmt.Errorf("activate next stage: %w", err)
	}
	n, err := s.DecoupleCurrentStage(ctx)
	if err != nil {
		return true, err
	}
	if err := s.IgniteCurrentStageEngines(ctx); err != nil {
		return true, err
	}
	logging.FromContext(ctx, s.log).Info(ctx, "hardware stage advanced",
		logging.Int("previous_control_stage", vs.ControlStage),
		logging.Int("decouplers_fired", n))
	return true, nil
}
