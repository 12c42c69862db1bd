package vessel

import (
	"math"
	"time"

	"github.com/signalsfoundry/descent-autopilot/model"
)

// Step integrates the vessel over d of wall time, scaled by the warp rate.
func (v *Vessel) Step(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.step(d.Seconds() * v.cfg.WarpRate)
}

func (v *Vessel) step(dt float64) {
	if dt <= 0 {
		return
	}
	r := math.Hypot(v.pos[0], v.pos[1])
	up := [2]float64{v.pos[0] / r, v.pos[1] / r}
	east := [2]float64{-up[1], up[0]}

	v.steer(up, east)
	mass := v.mass()
	thrust := v.burn(dt)

	g := v.cfg.GM / (r * r)
	rho := v.density(r - v.cfg.Radius)
	speed := math.Hypot(v.vel[0], v.vel[1])
	drag := 0.5 * rho * speed * speed * v.cfg.DragCoefficient * v.cfg.FrontalArea

	var acc [2]float64
	for i := range acc {
		acc[i] = -g*up[i] + thrust*v.dir[i]/mass
		if speed > 0 {
			acc[i] -= drag * v.vel[i] / speed / mass
		}
	}

	if r <= v.cfg.Radius && acc[0]*up[0]+acc[1]*up[1] <= 0 && v.vel[0]*up[0]+v.vel[1]*up[1] <= 0 {
		v.settle(up)
		v.ut += dt
		return
	}

	for i := range v.vel {
		v.vel[i] += acc[i] * dt
		v.pos[i] += v.vel[i] * dt
	}
	v.ut += dt

	alt := math.Hypot(v.pos[0], v.pos[1]) - v.cfg.Radius
	if alt > 1 {
		v.flown = true
	}
	if alt <= 0 {
		v.settle(up)
	}
}

// settle puts the vessel at rest on the surface below it.
func (v *Vessel) settle(up [2]float64) {
	v.pos = [2]float64{up[0] * v.cfg.Radius, up[1] * v.cfg.Radius}
	v.vel = [2]float64{}
	if v.flown {
		v.landed = true
	}
}

// steer updates the thrust direction from the attitude mode. With the
// autopilot off and no retrograde hold the vessel keeps its attitude.
func (v *Vessel) steer(up, east [2]float64) {
	switch {
	case v.engaged:
		p := v.pitch * math.Pi / 180
		h := math.Sin(v.heading * math.Pi / 180)
		for i := range v.dir {
			v.dir[i] = math.Cos(p)*h*east[i] + math.Sin(p)*up[i]
		}
		if n := math.Hypot(v.dir[0], v.dir[1]); n > 0 {
			v.dir[0] /= n
			v.dir[1] /= n
		}
	case v.retroHold:
		if s := math.Hypot(v.vel[0], v.vel[1]); s > 0 {
			v.dir = [2]float64{-v.vel[0] / s, -v.vel[1] / s}
		}
	}
}

// burn draws propellant for dt and returns the thrust produced.
func (v *Vessel) burn(dt float64) float64 {
	total := 0.0
	for _, e := range v.parts.ListParts() {
		if e.Kind != KindEngine || !e.Active {
			continue
		}
		frac := e.ThrustLimit
		if e.Propellant != model.ResourceSolidFuel {
			frac *= v.throttle
		}
		if frac <= 0 {
			continue
		}
		want := e.Consumption * frac * dt
		got := v.draw(e, want)
		if want > 0 {
			total += e.MaxThrust * frac * got / want
		}
	}
	return total
}

// draw removes up to amount of the engine's propellant from the tanks that
// feed it and returns what it obtained.
func (v *Vessel) draw(e *Part, amount float64) float64 {
	got := 0.0
	for _, t := range v.feeders(e) {
		take := math.Min(t.Amount, amount-got)
		t.Amount -= take
		got += take
		if got >= amount {
			break
		}
	}
	return got
}

func (v *Vessel) feeders(e *Part) []*Part {
	var out []*Part
	for _, t := range v.parts.ListParts() {
		if t.Kind == KindTank && t.Group == e.Group && t.Resource == e.Propellant && t.Amount > 0 {
			out = append(out, t)
		}
	}
	return out
}

func (v *Vessel) fuelFor(e *Part) float64 {
	total := 0.0
	for _, t := range v.feeders(e) {
		total += t.Amount
	}
	return total
}

func (v *Vessel) mass() float64 {
	m := 0.0
	for _, p := range v.parts.ListParts() {
		m += p.DryMass
		if p.Kind == KindTank {
			m += p.Amount * unitMass[p.Resource]
		}
	}
	return m
}

func (v *Vessel) density(alt float64) float64 {
	if alt < 0 {
		alt = 0
	}
	return v.cfg.SeaLevelDensity * math.Exp(-alt/v.cfg.ScaleHeight)
}

func (v *Vessel) altitude() float64 {
	return math.Hypot(v.pos[0], v.pos[1]) - v.cfg.Radius
}

// apsides returns apoapsis and periapsis altitudes from the vis-viva
// energy and angular momentum. On an escape trajectory the apoapsis is
// negative.
func (v *Vessel) apsides() (float64, float64) {
	r := math.Hypot(v.pos[0], v.pos[1])
	speed2 := v.vel[0]*v.vel[0] + v.vel[1]*v.vel[1]
	mu := v.cfg.GM
	energy := speed2/2 - mu/r
	if energy == 0 {
		return math.MaxFloat64, r - v.cfg.Radius
	}
	h := v.pos[0]*v.vel[1] - v.pos[1]*v.vel[0]
	a := -mu / (2 * energy)
	e := math.Sqrt(math.Max(0, 1+2*energy*h*h/(mu*mu)))
	return a*(1+e) - v.cfg.Radius, a*(1-e) - v.cfg.Radius
}

// surface expresses an orbital-plane vector in the hybrid frame: x up, y
// north, z east.
func surface(vec, up, east [2]float64) model.Vec3 {
	return model.Vec3{
		vec[0]*up[0] + vec[1]*up[1],
		0,
		vec[0]*east[0] + vec[1]*east[1],
	}
}

func (v *Vessel) snapshot() *model.VehicleState {
	r := math.Hypot(v.pos[0], v.pos[1])
	up := [2]float64{v.pos[0] / r, v.pos[1] / r}
	east := [2]float64{-up[1], up[0]}
	alt := r - v.cfg.Radius
	apo, peri := v.apsides()

	vel := surface(v.vel, up, east)
	speed := vel.Norm()
	rho := v.density(alt)
	q := 0.5 * rho * speed * speed

	dir := surface(v.dir, up, east)
	angle := math.Atan2(dir[0], dir[2])
	prograde := vel.Unit()
	drag := prograde.Scale(-q * v.cfg.DragCoefficient * v.cfg.FrontalArea)

	vs := &model.VehicleState{
		Altitude:      alt,
		Apoapsis:      apo,
		Periapsis:     peri,
		UniversalTime: v.ut,
		WarpRate:      v.cfg.WarpRate,
		ControlStage:  v.controlStage,
		Position:      model.Vec3{r, 0, 0},
		Velocity:      vel,
		Mass:          v.mass(),
		Flight: model.FlightMetrics{
			Speed:             speed,
			HorizontalSpeed:   math.Abs(vel[2]),
			VerticalSpeed:     vel[0],
			Rotation:          model.Quaternion{0, math.Sin(angle / 2), 0, math.Cos(angle / 2)},
			Direction:         dir,
			Prograde:          prograde,
			Retrograde:        prograde.Neg(),
			AtmosphereDensity: rho,
			DynamicPressure:   q,
			StaticPressure:    v.cfg.SeaLevelPressure * rho / v.cfg.SeaLevelDensity,
			AerodynamicForce:  drag,
			Drag:              drag,
		},
	}
	for _, p := range v.parts.ListParts() {
		switch p.Kind {
		case KindTank:
			vs.Resources = append(vs.Resources, model.Resource{Name: p.Resource, Amount: p.Amount, Stage: p.Stage()})
		case KindEngine:
			vs.Engines = append(vs.Engines, v.engineView(p))
		case KindDecoupler:
			vs.Decouplers = append(vs.Decouplers, decouplerView(p))
		}
	}
	return vs
}

// engineView reports an engine; available thrust is zero once its
// propellant is gone.
func (v *Vessel) engineView(p *Part) model.Engine {
	avail := 0.0
	if v.fuelFor(p) > 0 {
		avail = p.MaxThrust * p.ThrustLimit
	}
	return model.Engine{
		ID:              p.ID,
		Stage:           p.Stage(),
		Active:          p.Active,
		ThrustLimit:     p.ThrustLimit,
		AvailableThrust: avail,
	}
}

func decouplerView(p *Part) model.Decoupler {
	return model.Decoupler{
		ID:        p.ID,
		Stage:     p.Stage(),
		Decoupled: p.Decoupled,
		Staged:    true,
	}
}
