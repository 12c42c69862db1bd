package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/signalsfoundry/descent-autopilot/model"
)

// fakePort is an in-memory EnvironmentPort that records every command.
type fakePort struct {
	mu       sync.Mutex
	scalars  map[Scalar]float64
	state    model.VehicleState
	parts    map[int]model.StageParts
	commands []string

	// failAfter makes every call fail once it reaches zero; negative
	// disables the failure.
	failAfter int
}

func newFakePort() *fakePort {
	return &fakePort{
		scalars:   map[Scalar]float64{ScalarWarpRate: 1},
		parts:     map[int]model.StageParts{},
		failAfter: -1,
	}
}

func (f *fakePort) set(name Scalar, v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scalars[name] = v
	if name == ScalarControlStage {
		f.state.ControlStage = int(v)
	}
}

func (f *fakePort) record(format string, args ...any) {
	f.commands = append(f.commands, fmt.Sprintf(format, args...))
}

func (f *fakePort) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func (f *fakePort) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = nil
}

func (f *fakePort) check() error {
	if f.failAfter == 0 {
		return ErrConnectivity
	}
	if f.failAfter > 0 {
		f.failAfter--
	}
	return nil
}

func (f *fakePort) ReadScalar(_ context.Context, name Scalar) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return 0, err
	}
	v, ok := f.scalars[name]
	if !ok && name != ScalarAltitude && name != ScalarApoapsis && name != ScalarPeriapsis &&
		name != ScalarUniversalTime && name != ScalarControlStage {
		return 0, ErrUnknownScalar
	}
	return v, nil
}

func (f *fakePort) ReadVesselSnapshot(context.Context) (*model.VehicleState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return nil, err
	}
	vs := f.state
	vs.Altitude = f.scalars[ScalarAltitude]
	vs.Apoapsis = f.scalars[ScalarApoapsis]
	vs.Periapsis = f.scalars[ScalarPeriapsis]
	vs.ControlStage = int(f.scalars[ScalarControlStage])
	return &vs, nil
}

func (f *fakePort) ListPartsForStage(_ context.Context, stage int) (model.StageParts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return model.StageParts{}, err
	}
	return f.parts[stage], nil
}

func (f *fakePort) SetAttitudeTarget(_ context.Context, pitch, heading float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	f.record("attitude %g %g", pitch, heading)
	return nil
}

func (f *fakePort) EngageAutopilot(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	f.record("engage")
	return nil
}

func (f *fakePort) DisengageAutopilot(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	f.record("disengage")
	return nil
}

func (f *fakePort) HoldRetrograde(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	f.record("retrograde")
	return nil
}

func (f *fakePort) SetThrottle(_ context.Context, v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	f.record("throttle %g", v)
	return nil
}

func (f *fakePort) ActivateNextStage(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	f.record("stage")
	return nil
}

func (f *fakePort) Decouple(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	f.record("decouple %s", id)
	return nil
}

func (f *fakePort) SetEngineActive(_ context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	f.record("active %s %t", id, active)
	return nil
}

func (f *fakePort) SetEngineThrustLimit(_ context.Context, id string, limit float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	f.record("limit %s %g", id, limit)
	return nil
}

// memorySink collects telemetry in memory.
type memorySink struct {
	records []model.TelemetryRecord
	closed  bool
}

func (m *memorySink) Write(rec model.TelemetryRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func contains(log []string, cmd string) bool {
	for _, c := range log {
		if c == cmd {
			return true
		}
	}
	return false
}
