package core

import (
	"math"
	"time"
)

// PlanetCircumference is the length of the ground track around the body.
const PlanetCircumference = 2 * math.Pi * PlanetRadius

// GroundTrack accumulates the downrange distance covered since launch,
// wrapped into [0, Circumference).
type GroundTrack struct {
	Radius float64
	value  float64
}

// NewGroundTrack returns a ground track on a body of the given radius.
func NewGroundTrack(radius float64) *GroundTrack {
	return &GroundTrack{Radius: radius}
}

// Circumference returns 2πR.
func (g *GroundTrack) Circumference() float64 {
	return 2 * math.Pi * g.Radius
}

// Value returns the accumulated distance.
func (g *GroundTrack) Value() float64 { return g.value }

// Add advances the track by d and wraps the result.
func (g *GroundTrack) Add(d float64) {
	c := g.Circumference()
	v := math.Mod(g.value+d, c)
	if v < 0 {
		v += c
	}
	g.value = v
}

// Advance projects an orbital horizontal speed at altitude onto the surface
// and integrates it over elapsed real time scaled by the simulation warp.
func (g *GroundTrack) Advance(horizontalSpeed, altitude float64, elapsed time.Duration, warpRate float64) {
	scale := g.Radius / (g.Radius + altitude)
	g.Add(horizontalSpeed * scale * elapsed.Seconds() * warpRate)
}

// DistanceToStart returns the shorter way back to the launch point along
// the track.
func (g *GroundTrack) DistanceToStart() float64 {
	c := g.Circumference()
	if g.value > c/2 {
		return c - g.value
	}
	return g.value
}
