package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/descent-autopilot/model"
)

// Physical constants of the reference body and the descending capsule.
const (
	GravitationalConstant = 6.67430e-11
	PlanetMass            = 5.2915158e22
	PlanetRadius          = 600000.0

	SeaLevelDensity = 1.21325
	ScaleHeight     = 5000.0
	CapsuleRadius   = 2.5
	GravityScale    = 0.41

	defaultMaxSteps = 1_000_000
)

var (
	// ErrNoLanding is returned when the integration does not reach the
	// ground within the model's step budget.
	ErrNoLanding = errors.New("trajectory does not reach the ground")
	// ErrInvalidSample is returned for a sample the model cannot integrate.
	ErrInvalidSample = errors.New("invalid trajectory sample")
)

// Model is a 2D point-mass descent model with quadratic drag in an
// exponential atmosphere and altitude-dependent gravity, integrated with a
// fixed-step explicit Euler scheme.
type Model struct {
	DragCoefficient float64
	// Step is the integration time step in seconds.
	Step float64

	CapsuleRadius   float64
	SeaLevelDensity float64
	ScaleHeight     float64
	PlanetRadius    float64
	// GM is the gravitational parameter of the body.
	GM           float64
	GravityScale float64

	// MaxSteps bounds the integration; zero means a default of one million.
	MaxSteps int
}

// FlightLoopModel is the configuration used by the live descent decision.
var FlightLoopModel = Model{
	DragCoefficient: 0.95,
	Step:            1.0,
	CapsuleRadius:   CapsuleRadius,
	SeaLevelDensity: SeaLevelDensity,
	ScaleHeight:     ScaleHeight,
	PlanetRadius:    PlanetRadius,
	GM:              GravitationalConstant * PlanetMass,
	GravityScale:    GravityScale,
}

// AnalysisModel is the configuration used when re-simulating a recorded
// landing offline.
var AnalysisModel = Model{
	DragCoefficient: 0.65,
	Step:            0.5,
	CapsuleRadius:   CapsuleRadius,
	SeaLevelDensity: SeaLevelDensity,
	ScaleHeight:     ScaleHeight,
	PlanetRadius:    PlanetRadius,
	GM:              GravitationalConstant * PlanetMass,
	GravityScale:    GravityScale,
}

// Point is one integrated state of the descent.
type Point struct {
	T  float64 // seconds since the start of the prediction
	X  float64 // downrange distance
	Y  float64 // altitude
	VX float64
	VY float64
}

// FrontalArea returns the capsule's cross-section.
func (m Model) FrontalArea() float64 {
	return math.Pi * m.CapsuleRadius * m.CapsuleRadius
}

// Density returns the atmospheric density at altitude y.
func (m Model) Density(y float64) float64 {
	return m.SeaLevelDensity * math.Exp(-y/m.ScaleHeight)
}

// Gravity returns the gravitational acceleration at altitude y.
func (m Model) Gravity(y float64) float64 {
	r := m.PlanetRadius + y
	return m.GM / (r * r) * m.GravityScale
}

// Trace integrates the descent from s, with speedDelta removed from the
// initial horizontal speed, calling visit after every step. It returns the
// final point, the first one at or below the ground.
func (m Model) Trace(s model.TrajectorySample, speedDelta float64, visit func(Point)) (Point, error) {
	if m.Step <= 0 {
		return Point{}, fmt.Errorf("%w: step %v", ErrInvalidSample, m.Step)
	}
	if s.Mass <= 0 || math.IsNaN(s.Mass) {
		return Point{}, fmt.Errorf("%w: mass %v", ErrInvalidSample, s.Mass)
	}
	maxSteps := m.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	dt := m.Step
	k := 0.5 * m.FrontalArea() * m.DragCoefficient
	p := Point{
		Y:  s.Altitude,
		VX: s.HorizontalVelocity - speedDelta,
		VY: s.VerticalVelocity,
	}

	for n := 0; p.Y > 0; n++ {
		if n >= maxSteps {
			return p, fmt.Errorf("%w after %d steps", ErrNoLanding, maxSteps)
		}
		v := math.Hypot(p.VX, p.VY)
		// drag·vx/v reduces to k·ρ·v·vx, so a stationary axis carries no drag.
		rho := m.Density(p.Y)
		ax := -sign(p.VX) * math.Abs(k*rho*v*p.VX) / s.Mass
		ay := -m.Gravity(p.Y) - sign(p.VY)*math.Abs(k*rho*v*p.VY)/s.Mass

		p.VX += ax * dt
		p.VY += ay * dt
		p.X += p.VX * dt
		p.Y += p.VY * dt
		p.T += dt

		if visit != nil {
			visit(p)
		}
	}
	return p, nil
}

// PredictLandingDownrange returns how far downrange an unpowered body
// starting from s lands, after first shedding speedDelta of horizontal speed.
// It is a pure function of its inputs and the model.
func (m Model) PredictLandingDownrange(s model.TrajectorySample, speedDelta float64) (float64, error) {
	p, err := m.Trace(s, speedDelta, nil)
	if err != nil {
		return 0, err
	}
	return p.X, nil
}

// sign returns -1, 0 or 1. Unlike x/|x| it is defined at zero.
func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
