package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/signalsfoundry/descent-autopilot/internal/logging"
	"github.com/signalsfoundry/descent-autopilot/model"
	"github.com/signalsfoundry/descent-autopilot/timectrl"
)

type countingMetrics struct {
	noopMetrics
	ticks         int
	stagingEvents int
	missionStage  int
	records       int
}

func (m *countingMetrics) ObserveTick(time.Duration) { m.ticks++ }
func (m *countingMetrics) SetMissionStage(s int)     { m.missionStage = s }
func (m *countingMetrics) IncStagingEvents()         { m.stagingEvents++ }
func (m *countingMetrics) IncTelemetryRecords()      { m.records++ }

type harness struct {
	port    *fakePort
	sink    *memorySink
	clock   *timectrl.ManualClock
	metrics *countingMetrics
	ap      *Autopilot
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		port:    newFakePort(),
		sink:    &memorySink{},
		clock:   timectrl.NewManualClock(time.Unix(1_700_000_000, 0)),
		metrics: &countingMetrics{},
	}
	h.ap = New(h.port, cfg,
		WithClock(h.clock),
		WithMetricsRecorder(h.metrics),
		WithTelemetrySink(func() (TelemetrySink, error) { return h.sink, nil }),
	)
	return h
}

func TestInitializeOnPad(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	if err := h.ap.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	want := []string{"throttle 1", "engage", "stage", "attitude 90 90", "attitude 90 90"}
	if got := h.port.log(); !reflect.DeepEqual(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	if h.ap.Stage() != model.StageAscent {
		t.Fatalf("stage = %v, want ascent", h.ap.Stage())
	}
}

func TestInitializeResumesInOrbit(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.port.set(ScalarAltitude, 75000)
	h.port.set(ScalarApoapsis, 80000)
	h.port.set(ScalarPeriapsis, 75000)

	if err := h.ap.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if h.ap.Stage() != model.StageCircularized {
		t.Fatalf("stage = %v, want circularized", h.ap.Stage())
	}
	if contains(h.port.log(), "stage") {
		t.Fatalf("resumed vessel was staged: %v", h.port.log())
	}
	if h.metrics.missionStage != int(model.StageCircularized) {
		t.Fatalf("mission stage metric = %d", h.metrics.missionStage)
	}
}

func TestTickAdvancesOneStagePerTick(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.port.set(ScalarAltitude, 1000)
	h.port.set(ScalarApoapsis, 80000)
	h.port.set(ScalarPeriapsis, 80000)
	ctx := context.Background()

	var got []model.MissionStage
	for i := 0; i < 6; i++ {
		if err := h.ap.Tick(ctx); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
		got = append(got, h.ap.Stage())
	}
	want := []model.MissionStage{1, 2, 3, 4, 5, 5}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}
	if h.metrics.ticks != 6 {
		t.Fatalf("observed %d ticks, want 6", h.metrics.ticks)
	}
}

func TestPitchHoldEntryPolicy(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.port.set(ScalarAltitude, 5000)
	h.port.set(ScalarApoapsis, 12000)

	if err := h.ap.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.ap.Stage() != model.StagePitchHold {
		t.Fatalf("stage = %v, want pitch_hold", h.ap.Stage())
	}
	want := []string{"attitude 45 90", "throttle 0"}
	if got := h.port.log(); !reflect.DeepEqual(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
}

func TestAscentHoldsWhileSolidsBurn(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.port.set(ScalarAltitude, 9000)
	h.port.set(ScalarApoapsis, 15000)
	h.port.state.Resources = []model.Resource{{Name: model.ResourceSolidFuel, Amount: 40, Stage: 0}}

	if err := h.ap.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.ap.Stage() != model.StageAscent {
		t.Fatalf("stage = %v, want ascent", h.ap.Stage())
	}
	if want := []string{"attitude 75 90"}; !reflect.DeepEqual(h.port.log(), want) {
		t.Fatalf("commands = %v, want %v", h.port.log(), want)
	}
}

func TestApoapsisLatchIsOneWay(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.ap.stage = model.StageCoastToApoapsis
	h.port.set(ScalarApoapsis, 75000)
	h.port.set(ScalarAltitude, 74980)
	ctx := context.Background()

	if err := h.ap.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !h.ap.AchievedApoapsis() {
		t.Fatalf("apoapsis not latched")
	}
	if !contains(h.port.log(), "attitude 0 90") {
		t.Fatalf("braking attitude not commanded: %v", h.port.log())
	}

	h.port.set(ScalarAltitude, 1000)
	if err := h.ap.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !h.ap.AchievedApoapsis() {
		t.Fatalf("apoapsis latch cleared")
	}
	if h.ap.Stage() != model.StageCircularizationWait {
		t.Fatalf("stage = %v, want circularization_wait", h.ap.Stage())
	}
}

func TestBrakingPitch(t *testing.T) {
	cases := map[float64]float64{-20: 60, -4: 20, 0: 0, 3: 0}
	for vs, want := range cases {
		if got := brakingPitch(vs); got != want {
			t.Fatalf("brakingPitch(%v) = %v, want %v", vs, got, want)
		}
	}
}

func TestExhaustionStagesWhenNoEnginesRemain(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.ap.stage = model.StageSecondAscent
	h.port.set(ScalarControlStage, 2)
	h.port.set(ScalarAltitude, 30000)
	h.port.set(ScalarApoapsis, 40000)

	if err := h.ap.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !contains(h.port.log(), "stage") {
		t.Fatalf("stage not activated: %v", h.port.log())
	}
	if h.metrics.stagingEvents != 1 {
		t.Fatalf("staging events = %d, want 1", h.metrics.stagingEvents)
	}
}

func TestExhaustionDeferredWhileFuelRemains(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.ap.stage = model.StageSecondAscent
	h.port.set(ScalarControlStage, 2)
	h.port.parts[1] = model.StageParts{Engines: []model.Engine{{ID: "lv-909", AvailableThrust: 0}}}
	h.port.state.Resources = []model.Resource{{Name: model.ResourceLiquidFuel, Amount: 10, Stage: 2}}

	if err := h.ap.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if contains(h.port.log(), "stage") {
		t.Fatalf("staged with fuel remaining: %v", h.port.log())
	}
	if h.metrics.stagingEvents != 0 {
		t.Fatalf("staging events = %d, want 0", h.metrics.stagingEvents)
	}
}

func vacuumConfig() Config {
	cfg := DefaultConfig()
	cfg.Predictor.DragCoefficient = 0
	return cfg
}

func orbitingPort(p *fakePort) {
	p.set(ScalarAltitude, 80000)
	p.set(ScalarApoapsis, 80000)
	p.set(ScalarPeriapsis, 75000)
	p.state.Mass = 10000
	p.state.Flight.HorizontalSpeed = 2250
	p.state.Resources = []model.Resource{{Name: model.ResourceLiquidFuel, Amount: 100, Stage: 0}}
}

func TestDescentBurnDecision(t *testing.T) {
	cfg := vacuumConfig()
	h := newHarness(t, cfg)
	h.ap.stage = model.StageCircularized
	orbitingPort(h.port)
	ctx := context.Background()

	if err := h.ap.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if want := []string{"disengage", "retrograde", "throttle 0"}; !reflect.DeepEqual(h.port.log(), want) {
		t.Fatalf("commands = %v, want %v", h.port.log(), want)
	}

	burnTime := 100 / cfg.BurnFuelRate
	speedDelta := cfg.BurnThrust * burnTime / 10000
	sample := model.TrajectorySample{Altitude: 80000, HorizontalVelocity: 2250, Mass: 10000}
	target, err := cfg.Predictor.PredictLandingDownrange(sample, speedDelta)
	if err != nil {
		t.Fatalf("PredictLandingDownrange: %v", err)
	}

	d := h.ap.LastBurnDecision()
	if math.Abs(d.BurnTime-burnTime) > 1e-9 || math.Abs(d.SpeedDelta-speedDelta) > 1e-9 {
		t.Fatalf("decision = %+v, want burn time %v and delta %v", d, burnTime, speedDelta)
	}
	if math.Abs(d.BurnDistance-burnTime*2250) > 1e-6 {
		t.Fatalf("burn distance = %v, want %v", d.BurnDistance, burnTime*2250)
	}
	if d.TargetDownrange != target {
		t.Fatalf("target = %v, want %v", d.TargetDownrange, target)
	}
	if d.Trigger || h.ap.Stage() != model.StageCircularized {
		t.Fatalf("burn triggered far from the landing point")
	}

	// Move the vessel to just inside the burn window.
	h.ap.track.Add(h.ap.track.Circumference() - target - d.BurnDistance/2)
	h.port.reset()
	if err := h.ap.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !h.ap.LastBurnDecision().Trigger {
		t.Fatalf("burn not triggered: %+v", h.ap.LastBurnDecision())
	}
	if h.ap.Stage() != model.StageLandingDataCollection {
		t.Fatalf("stage = %v, want landing_data_collection", h.ap.Stage())
	}
	if got := h.port.log(); got[len(got)-1] != "throttle 1" {
		t.Fatalf("landing burn not throttled up: %v", got)
	}
}

func TestDescentDecisionSkipsWithoutMass(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.ap.stage = model.StageCircularized
	orbitingPort(h.port)
	h.port.state.Mass = 0

	if err := h.ap.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.ap.LastBurnDecision() != (BurnDecision{}) {
		t.Fatalf("decision recorded without mass")
	}
}

func TestLandingPhaseEntersSampling(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(t, cfg)
	h.ap.stage = model.StageLandingDataCollection
	h.port.set(ScalarAltitude, 4200)
	h.port.state.Mass = 900
	h.port.state.Flight.Speed = 180
	ctx := context.Background()

	if err := h.ap.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.ap.Mode() != ModeSampling {
		t.Fatalf("mode = %v, want sampling", h.ap.Mode())
	}

	wait, err := h.ap.Step(ctx)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if wait != cfg.SampleInterval {
		t.Fatalf("wait = %v, want %v", wait, cfg.SampleInterval)
	}
	if len(h.sink.records) != 1 {
		t.Fatalf("records = %d, want 1", len(h.sink.records))
	}
	rec := h.sink.records[0]
	if rec.Altitude != 4200 || rec.Mass != 900 || rec.Speed != 180 {
		t.Fatalf("record = %+v", rec)
	}
	if h.metrics.records != 1 {
		t.Fatalf("record metric = %d, want 1", h.metrics.records)
	}
}

func TestLandingPhaseKeepsBurningWithEngines(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.ap.stage = model.StageLandingDataCollection
	h.port.set(ScalarControlStage, 1)
	h.port.parts[0] = model.StageParts{Engines: []model.Engine{{ID: "terrier", AvailableThrust: 60000}}}

	if err := h.ap.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.ap.Mode() != ModeControl {
		t.Fatalf("mode = %v, want control", h.ap.Mode())
	}
	want := []string{"limit terrier 1", "active terrier true", "throttle 1", "disengage"}
	if got := h.port.log(); !reflect.DeepEqual(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
}

func TestRunStopsOnLinkFailure(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(t, cfg)
	// Each tick on the pad makes five scalar reads and one snapshot.
	h.port.failAfter = 12

	err := h.ap.Run(context.Background())
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("Run err = %v, want ErrConnectivity", err)
	}
	sleeps := h.clock.Sleeps()
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %v, want two ticks", sleeps)
	}
	for _, s := range sleeps {
		if s != cfg.TickInterval {
			t.Fatalf("sleep = %v, want %v", s, cfg.TickInterval)
		}
	}
}

type cancellingSink struct {
	memorySink
	after  int
	cancel context.CancelFunc
}

func (c *cancellingSink) Write(rec model.TelemetryRecord) error {
	if err := c.memorySink.Write(rec); err != nil {
		return err
	}
	if len(c.records) == c.after {
		c.cancel()
	}
	return nil
}

func TestRunClosesTelemetryOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &cancellingSink{after: 3, cancel: cancel}
	clock := timectrl.NewManualClock(time.Unix(0, 0))
	ap := New(newFakePort(), DefaultConfig(),
		WithClock(clock),
		WithTelemetrySink(func() (TelemetrySink, error) { return sink, nil }),
	)
	ap.mode = ModeSampling

	if err := ap.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if len(sink.records) != 3 {
		t.Fatalf("records = %d, want 3", len(sink.records))
	}
	if !sink.closed {
		t.Fatalf("telemetry log not closed")
	}
}

func TestTickReportsLinkLoss(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.port.failAfter = 0
	if err := h.ap.Tick(context.Background()); !errors.Is(err, ErrConnectivity) {
		t.Fatalf("Tick err = %v, want ErrConnectivity", err)
	}
}

func TestRunTickLogsCarryRunID(t *testing.T) {
	var buf bytes.Buffer
	port := newFakePort()
	port.set(ScalarAltitude, 5000)
	port.set(ScalarApoapsis, 12000)
	port.failAfter = 30
	clock := timectrl.NewManualClock(time.Unix(0, 0))
	ap := New(port, DefaultConfig(),
		WithClock(clock),
		WithLogger(logging.New(logging.Config{Level: "debug", Format: "json", Output: &buf})),
	)

	ctx := logging.ContextWithRunID(context.Background(), "run-42")
	if err := ap.Run(ctx); !errors.Is(err, ErrConnectivity) {
		t.Fatalf("Run err = %v, want ErrConnectivity", err)
	}

	found := false
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var entry map[string]any
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		if entry["run_id"] != "run-42" {
			t.Fatalf("log %q has run_id %v, want run-42", entry["msg"], entry["run_id"])
		}
		if entry["msg"] == "mission stage advanced" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no stage advance logged:\n%s", buf.String())
	}
}
