package core

import (
	"context"
	"fmt"
)

// ScalarStream caches one scalar reading. Refresh pulls the current value
// from the port; Read returns the cached value without a round-trip.
type ScalarStream struct {
	port  EnvironmentPort
	name  Scalar
	value float64
	valid bool
}

// NewScalarStream binds a stream to a port.
func NewScalarStream(port EnvironmentPort, name Scalar) *ScalarStream {
	return &ScalarStream{port: port, name: name}
}

// Name returns the scalar this stream follows.
func (s *ScalarStream) Name() Scalar { return s.name }

// Refresh fetches the current value.
func (s *ScalarStream) Refresh(ctx context.Context) error {
	v, err := s.port.ReadScalar(ctx, s.name)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", s.name, err)
	}
	s.value = v
	s.valid = true
	return nil
}

// Read returns the value from the last successful Refresh, or zero before
// the first one.
func (s *ScalarStream) Read() float64 { return s.value }

// Valid reports whether Refresh has succeeded at least once.
func (s *ScalarStream) Valid() bool { return s.valid }

// StreamSet groups the scalars the control loop reads every tick.
type StreamSet struct {
	Altitude      *ScalarStream
	Apoapsis      *ScalarStream
	Periapsis     *ScalarStream
	UniversalTime *ScalarStream
	WarpRate      *ScalarStream
}

// NewStreamSet creates the autopilot's scalar streams on port.
func NewStreamSet(port EnvironmentPort) *StreamSet {
	return &StreamSet{
		Altitude:      NewScalarStream(port, ScalarAltitude),
		Apoapsis:      NewScalarStream(port, ScalarApoapsis),
		Periapsis:     NewScalarStream(port, ScalarPeriapsis),
		UniversalTime: NewScalarStream(port, ScalarUniversalTime),
		WarpRate:      NewScalarStream(port, ScalarWarpRate),
	}
}

// Refresh refreshes every stream, stopping at the first error.
func (s *StreamSet) Refresh(ctx context.Context) error {
	for _, st := range []*ScalarStream{s.Altitude, s.Apoapsis, s.Periapsis, s.UniversalTime, s.WarpRate} {
		if err := st.Refresh(ctx); err != nil {
			return err
		}
	}
	return nil
}
