// Package vessel simulates a staged rocket in the orbital plane of a small
// planet with an exponential atmosphere. It implements core.EnvironmentPort
// in process, so the autopilot can fly without an external simulator.
package vessel

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/signalsfoundry/descent-autopilot/core"
	"github.com/signalsfoundry/descent-autopilot/internal/logging"
	"github.com/signalsfoundry/descent-autopilot/model"
	"github.com/signalsfoundry/descent-autopilot/timectrl"
)

// Config describes the body and the vessel's aerodynamics.
type Config struct {
	Radius          float64
	GM              float64
	SeaLevelDensity float64
	ScaleHeight     float64
	// SeaLevelPressure is the static pressure at zero altitude, in Pa.
	SeaLevelPressure float64

	DragCoefficient float64
	FrontalArea     float64

	// WarpRate multiplies every physics step.
	WarpRate float64
}

// DefaultConfig returns the reference body with the true gravitational
// parameter, so the vessel can actually reach orbit.
func DefaultConfig() Config {
	return Config{
		Radius:           core.PlanetRadius,
		GM:               core.GravitationalConstant * core.PlanetMass,
		SeaLevelDensity:  core.SeaLevelDensity,
		ScaleHeight:      core.ScaleHeight,
		SeaLevelPressure: 101325,
		DragCoefficient:  0.3,
		FrontalArea:      math.Pi * 1.25 * 1.25,
		WarpRate:         1,
	}
}

// Propellant densities in kg per unit.
var unitMass = map[string]float64{
	model.ResourceLiquidFuel: 5,
	model.ResourceSolidFuel:  7.5,
}

// Vessel is the simulated vehicle. All methods are safe for concurrent use.
type Vessel struct {
	mu  sync.Mutex
	cfg Config
	log logging.Logger

	parts        *Registry
	controlStage int

	// Position and velocity in the orbital plane, body-centred.
	pos [2]float64
	vel [2]float64
	ut  float64

	throttle  float64
	engaged   bool
	retroHold bool
	pitch     float64
	heading   float64
	// dir is the current thrust direction in the orbital plane.
	dir [2]float64

	flown  bool
	landed bool
}

// New assembles a vessel on the launch pad from parts. Groups count down
// from the bottom of the stack; the control stage starts two above the
// bottom group, so the first ActivateNextStage lights it.
func New(cfg Config, parts []*Part, log logging.Logger) (*Vessel, error) {
	if log == nil {
		log = logging.Noop()
	}
	if cfg.WarpRate <= 0 {
		cfg.WarpRate = 1
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("vessel has no parts")
	}
	reg := NewRegistry()
	bottom := 0
	for _, p := range parts {
		if p.Kind == KindEngine && p.ThrustLimit == 0 {
			p.ThrustLimit = 1
		}
		if err := reg.AddPart(p); err != nil {
			return nil, err
		}
		if p.Group > bottom {
			bottom = p.Group
		}
	}
	v := &Vessel{
		cfg:          cfg,
		log:          log,
		parts:        reg,
		controlStage: bottom + 2,
		pos:          [2]float64{cfg.Radius, 0},
		dir:          [2]float64{1, 0},
		heading:      90,
		pitch:        90,
	}
	reg.Subscribe(func(ev Event) {
		v.log.Info(context.Background(), "part detached",
			logging.String("part", ev.Part.ID),
			logging.String("kind", ev.Part.Kind.String()),
			logging.Int("group", ev.Part.Group))
	})
	return v, nil
}

// Attach advances the vessel on every tick of tc.
func (v *Vessel) Attach(tc *timectrl.TimeController) {
	tc.AddListener(func(_ time.Time, step time.Duration) {
		v.Step(step)
	})
}

// Parts returns the vessel's part registry.
func (v *Vessel) Parts() *Registry { return v.parts }

// Landed reports whether the vessel has returned to the ground after flying.
func (v *Vessel) Landed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.landed
}

func (v *Vessel) ReadScalar(_ context.Context, name core.Scalar) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch name {
	case core.ScalarAltitude:
		return v.altitude(), nil
	case core.ScalarApoapsis:
		apo, _ := v.apsides()
		return apo, nil
	case core.ScalarPeriapsis:
		_, peri := v.apsides()
		return peri, nil
	case core.ScalarUniversalTime:
		return v.ut, nil
	case core.ScalarWarpRate:
		return v.cfg.WarpRate, nil
	case core.ScalarControlStage:
		return float64(v.controlStage), nil
	}
	return 0, fmt.Errorf("%w: %q", core.ErrUnknownScalar, name)
}

func (v *Vessel) ReadVesselSnapshot(context.Context) (*model.VehicleState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot(), nil
}

func (v *Vessel) ListPartsForStage(_ context.Context, stage int) (model.StageParts, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out model.StageParts
	for _, p := range v.parts.ListParts() {
		if p.Stage() != stage {
			continue
		}
		switch p.Kind {
		case KindEngine:
			out.Engines = append(out.Engines, v.engineView(p))
		case KindDecoupler:
			out.Decouplers = append(out.Decouplers, decouplerView(p))
		}
	}
	return out, nil
}

func (v *Vessel) SetAttitudeTarget(_ context.Context, pitch, heading float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pitch = pitch
	v.heading = heading
	return nil
}

func (v *Vessel) EngageAutopilot(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engaged = true
	v.retroHold = false
	return nil
}

func (v *Vessel) DisengageAutopilot(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engaged = false
	return nil
}

func (v *Vessel) HoldRetrograde(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.retroHold = true
	return nil
}

func (v *Vessel) SetThrottle(_ context.Context, throttle float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.throttle = clamp01(throttle)
	return nil
}

// ActivateNextStage lowers the control stage and lights the engines of the
// group that becomes current. Staging past zero does nothing.
func (v *Vessel) ActivateNextStage(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.controlStage <= 0 {
		return nil
	}
	v.controlStage--
	lit := 0
	for _, p := range v.parts.ListParts() {
		if p.Kind == KindEngine && p.Stage() == v.controlStage-1 {
			p.Active = true
			lit++
		}
	}
	v.log.Info(ctx, "stage activated",
		logging.Int("control_stage", v.controlStage),
		logging.Int("engines_lit", lit))
	return nil
}

func (v *Vessel) Decouple(ctx context.Context, partID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	p := v.parts.GetPart(partID)
	if p == nil || p.Kind != KindDecoupler {
		return fmt.Errorf("%w: decoupler %q", core.ErrPartNotFound, partID)
	}
	if p.Decoupled {
		return nil
	}
	p.Decoupled = true
	n := v.parts.DetachBelow(p.Group)
	v.log.Info(ctx, "decoupler fired", logging.String("part", partID), logging.Int("parts_released", n))
	return nil
}

func (v *Vessel) SetEngineActive(_ context.Context, partID string, active bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, err := v.engine(partID)
	if err != nil {
		return err
	}
	p.Active = active
	return nil
}

func (v *Vessel) SetEngineThrustLimit(_ context.Context, partID string, limit float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, err := v.engine(partID)
	if err != nil {
		return err
	}
	p.ThrustLimit = clamp01(limit)
	return nil
}

func (v *Vessel) engine(id string) (*Part, error) {
	p := v.parts.GetPart(id)
	if p == nil || p.Kind != KindEngine {
		return nil, fmt.Errorf("%w: engine %q", core.ErrPartNotFound, id)
	}
	return p, nil
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
