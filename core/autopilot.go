package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/descent-autopilot/internal/logging"
	"github.com/signalsfoundry/descent-autopilot/internal/telemetry"
	"github.com/signalsfoundry/descent-autopilot/model"
	"github.com/signalsfoundry/descent-autopilot/timectrl"
)

const tracerName = "github.com/signalsfoundry/descent-autopilot/core"

// Mode is the loop the autopilot is currently running.
type Mode int

const (
	// ModeControl runs control ticks.
	ModeControl Mode = iota
	// ModeSampling appends telemetry records until the run is cancelled.
	ModeSampling
)

func (m Mode) String() string {
	if m == ModeSampling {
		return "sampling"
	}
	return "control"
}

// Config holds the tunables of the control loop.
type Config struct {
	// TickInterval is the pause after every control tick.
	TickInterval time.Duration
	// SampleInterval is the telemetry sampling period.
	SampleInterval time.Duration
	// TelemetryPath is the append-only landing log.
	TelemetryPath string

	// Predictor is the trajectory model used for the descent decision.
	Predictor Model
	// BurnFuelRate is the liquid fuel consumed per second of braking.
	BurnFuelRate float64
	// BurnThrust is the braking thrust in newtons.
	BurnThrust float64

	PlanetRadius float64
}

// DefaultConfig returns the flight configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval:   25 * time.Millisecond,
		SampleInterval: 500 * time.Millisecond,
		TelemetryPath:  "flight_data.txt",
		Predictor:      FlightLoopModel,
		BurnFuelRate:   7.105,
		BurnThrust:     240000,
		PlanetRadius:   PlanetRadius,
	}
}

// TelemetrySink receives landing telemetry records.
type TelemetrySink interface {
	Write(rec model.TelemetryRecord) error
	Close() error
}

// MetricsRecorder receives control-loop measurements.
type MetricsRecorder interface {
	ObserveTick(d time.Duration)
	SetMissionStage(stage int)
	SetControlStage(stage int)
	IncStagingEvents()
	SetPredictedDownrange(metres float64)
	SetGroundTrack(metres float64)
	IncTelemetryRecords()
}

type noopMetrics struct{}

func (noopMetrics) ObserveTick(time.Duration)     {}
func (noopMetrics) SetMissionStage(int)           {}
func (noopMetrics) SetControlStage(int)           {}
func (noopMetrics) IncStagingEvents()             {}
func (noopMetrics) SetPredictedDownrange(float64) {}
func (noopMetrics) SetGroundTrack(float64)        {}
func (noopMetrics) IncTelemetryRecords()          {}

// BurnDecision is the outcome of one descent-burn evaluation.
type BurnDecision struct {
	BurnTime        float64
	SpeedDelta      float64
	BurnDistance    float64
	TargetDownrange float64
	// Remaining is the ground distance left before the landing point.
	Remaining float64
	Trigger   bool
}

// Option customises Autopilot construction.
type Option func(*Autopilot)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Autopilot) {
		if l != nil {
			a.log = l
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c timectrl.Clock) Option {
	return func(a *Autopilot) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(a *Autopilot) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithTelemetrySink overrides how the landing log is opened.
func WithTelemetrySink(open func() (TelemetrySink, error)) Option {
	return func(a *Autopilot) {
		if open != nil {
			a.openSink = open
		}
	}
}

// Autopilot is the mission-stage state machine driving one vessel.
type Autopilot struct {
	port    EnvironmentPort
	streams *StreamSet
	stager  *Stager
	cfg     Config

	log     logging.Logger
	clock   timectrl.Clock
	metrics MetricsRecorder
	tracer  trace.Tracer

	stage            model.MissionStage
	achievedApoapsis bool
	track            *GroundTrack
	lastTick         time.Time
	mode             Mode
	lastBurn         BurnDecision
	// advanced is set once the mission stage moved during the current tick.
	advanced bool

	openSink func() (TelemetrySink, error)
	sink     TelemetrySink
}

// New builds an autopilot on port.
func New(port EnvironmentPort, cfg Config, opts ...Option) *Autopilot {
	a := &Autopilot{
		port:    port,
		streams: NewStreamSet(port),
		cfg:     cfg,
		log:     logging.Noop(),
		clock:   timectrl.RealClock{},
		metrics: noopMetrics{},
		tracer:  otel.Tracer(tracerName),
		track:   NewGroundTrack(cfg.PlanetRadius),
	}
	a.openSink = func() (TelemetrySink, error) {
		return telemetry.OpenFile(a.cfg.TelemetryPath)
	}
	for _, opt := range opts {
		opt(a)
	}
	a.stager = NewStager(port, a.log)
	return a
}

// Stage returns the current mission stage.
func (a *Autopilot) Stage() model.MissionStage { return a.stage }

// AchievedApoapsis reports whether the apoapsis latch has fired.
func (a *Autopilot) AchievedApoapsis() bool { return a.achievedApoapsis }

// GroundTrack returns the accumulated ground-track distance.
func (a *Autopilot) GroundTrack() float64 { return a.track.Value() }

// Mode returns the loop currently running.
func (a *Autopilot) Mode() Mode { return a.mode }

// LastBurnDecision returns the most recent descent-burn evaluation.
func (a *Autopilot) LastBurnDecision() BurnDecision { return a.lastBurn }

// Initialize prepares the vessel before the first tick. A vessel on the pad
// is launched; a vessel already past some mission stages resumes at the
// first stage whose transition does not hold.
func (a *Autopilot) Initialize(ctx context.Context) error {
	vs, err := a.observe(ctx)
	if err != nil {
		return err
	}
	a.lastTick = a.clock.Now()

	cmd := a.commands(ctx)
	cmd.throttle(1)
	cmd.engage()
	if cmd.err != nil {
		return fmt.Errorf("initialize: %w", cmd.err)
	}

	if !a.canAdvance(vs) {
		cmd.activateNextStage()
		cmd.attitude(90, LaunchHeading)
		if cmd.err != nil {
			return fmt.Errorf("initialize: %w", cmd.err)
		}
		a.logger(ctx).Info(ctx, "launch sequence started")
		return a.applyStagePolicy(ctx, vs)
	}

	for a.canAdvance(vs) {
		a.logger(ctx).Info(ctx, "skipping mission stage", logging.String("stage", a.stage.String()))
		a.stage++
		if err := a.applyStagePolicy(ctx, vs); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
	}
	a.metrics.SetMissionStage(int(a.stage))
	return nil
}

// Tick runs one control iteration.
func (a *Autopilot) Tick(ctx context.Context) (err error) {
	ctx, span := a.tracer.Start(ctx, "autopilot.tick",
		trace.WithAttributes(attribute.String("mission_stage", a.stage.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := a.clock.Now()
	a.advanced = false
	vs, err := a.observe(ctx)
	if err != nil {
		return err
	}
	a.advanceGroundTrack(vs)

	if a.canAdvance(vs) {
		if err := a.advance(ctx, vs); err != nil {
			return fmt.Errorf("advance mission stage: %w", err)
		}
	}
	if err := a.checkExhaustion(ctx, vs); err != nil {
		return fmt.Errorf("exhaustion check: %w", err)
	}
	a.latchApoapsis(ctx)
	if err := a.steer(ctx, vs); err != nil {
		return fmt.Errorf("steer %s: %w", a.stage, err)
	}

	a.metrics.SetMissionStage(int(a.stage))
	a.metrics.SetControlStage(vs.ControlStage)
	a.metrics.SetGroundTrack(a.track.Value())
	a.metrics.ObserveTick(a.clock.Now().Sub(start))
	return nil
}

// Sample appends one telemetry record, opening the log on first use.
func (a *Autopilot) Sample(ctx context.Context) error {
	if a.sink == nil {
		sink, err := a.openSink()
		if err != nil {
			return fmt.Errorf("open telemetry log: %w", err)
		}
		a.sink = sink
	}
	if err := a.streams.Altitude.Refresh(ctx); err != nil {
		return err
	}
	vs, err := a.port.ReadVesselSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("read vessel snapshot: %w", err)
	}
	rec := model.NewTelemetryRecord(vs)
	rec.Altitude = a.streams.Altitude.Read()
	if err := a.sink.Write(rec); err != nil {
		return fmt.Errorf("write telemetry: %w", err)
	}
	a.metrics.IncTelemetryRecords()
	return nil
}

// Step runs one iteration of the current mode and returns the pause that
// should follow it.
func (a *Autopilot) Step(ctx context.Context) (time.Duration, error) {
	if a.mode == ModeSampling {
		return a.cfg.SampleInterval, a.Sample(ctx)
	}
	return a.cfg.TickInterval, a.Tick(ctx)
}

// Run steps the autopilot until ctx is cancelled or the vessel link fails.
// The telemetry log, if opened, is closed before returning.
func (a *Autopilot) Run(ctx context.Context) error {
	ctx, log := logging.WithRunLogger(ctx, a.log)
	ctx = logging.ContextWithLogger(ctx, log)
	log.Info(ctx, "autopilot running", logging.String("stage", a.stage.String()))

	err := timectrl.Run(ctx, a.clock, a.Step)

	if a.sink != nil {
		if cerr := a.sink.Close(); cerr != nil {
			log.Warn(ctx, "closing telemetry log failed", logging.Err(cerr))
		}
		a.sink = nil
	}
	if errors.Is(err, context.Canceled) {
		log.Info(ctx, "autopilot stopped", logging.String("mode", a.mode.String()))
	}
	return err
}

// logger returns the run-scoped logger when Run installed one on ctx.
func (a *Autopilot) logger(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, a.log)
}

func (a *Autopilot) observe(ctx context.Context) (*model.VehicleState, error) {
	if err := a.streams.Refresh(ctx); err != nil {
		return nil, err
	}
	vs, err := a.port.ReadVesselSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read vessel snapshot: %w", err)
	}
	return vs, nil
}

func (a *Autopilot) advanceGroundTrack(vs *model.VehicleState) {
	now := a.clock.Now()
	if !a.lastTick.IsZero() {
		a.track.Advance(vs.Flight.HorizontalSpeed, a.streams.Altitude.Read(), now.Sub(a.lastTick), a.streams.WarpRate.Read())
	}
	a.lastTick = now
}

// advance moves to the next mission stage and applies its entry policy.
func (a *Autopilot) advance(ctx context.Context, vs *model.VehicleState) error {
	a.stage++
	a.advanced = true
	a.logger(ctx).Info(ctx, "mission stage advanced", logging.String("stage", a.stage.String()), logging.Int("index", int(a.stage)))
	return a.applyStagePolicy(ctx, vs)
}

// checkExhaustion performs hardware staging when the current stage has run
// dry or has no engines left.
func (a *Autopilot) checkExhaustion(ctx context.Context, vs *model.VehicleState) error {
	if vs.ControlStage <= 0 {
		return nil
	}
	parts, err := a.stager.CurrentStageParts(ctx)
	if err != nil {
		return err
	}
	hasEngines := a.stage == model.StageAscent || len(parts.Engines) > 0
	solidsExhausted := a.stage == model.StageAscent && !HasResource(vs, model.ResourceSolidFuel)
	liquidsExhausted := a.stage != model.StageAscent && len(parts.Engines) > 0 && parts.Engines[0].AvailableThrust <= 0

	if !(solidsExhausted || liquidsExhausted || !hasEngines) {
		return nil
	}

	a.logger(ctx).Info(ctx, "control stage exhausted",
		logging.Int("control_stage", vs.ControlStage),
		logging.Bool("solids_exhausted", solidsExhausted),
		logging.Bool("liquids_exhausted", liquidsExhausted),
		logging.Bool("has_engines", hasEngines),
		logging.Int("engines", len(parts.Engines)),
	)
	advanced, err := a.stager.AdvanceStage(ctx, vs)
	if err != nil {
		return err
	}
	if advanced {
		a.metrics.IncStagingEvents()
	}
	return a.applyStagePolicy(ctx, vs)
}

func (a *Autopilot) latchApoapsis(ctx context.Context) {
	if a.achievedApoapsis {
		return
	}
	apo := a.streams.Apoapsis.Read()
	alt := a.streams.Altitude.Read()
	if apo > OrbitAltitude && math.Abs(alt-apo) < ApoapsisLatchWindow {
		a.achievedApoapsis = true
		a.logger(ctx).Info(ctx, "apoapsis achieved", logging.Float("apoapsis", apo))
	}
}

// decideBurn evaluates whether the braking burn must start now so that the
// vessel lands back at the launch site.
func (a *Autopilot) decideBurn(ctx context.Context, vs *model.VehicleState) error {
	if vs.Mass <= 0 || a.cfg.BurnFuelRate <= 0 {
		a.logger(ctx).Warn(ctx, "descent decision skipped", logging.Float("mass", vs.Mass))
		return nil
	}

	_, span := a.tracer.Start(ctx, "autopilot.predict_landing")
	defer span.End()

	d := BurnDecision{}
	d.BurnTime = TotalResource(vs, model.ResourceLiquidFuel) / a.cfg.BurnFuelRate
	d.SpeedDelta = a.cfg.BurnThrust * d.BurnTime / vs.Mass
	d.BurnDistance = d.BurnTime * vs.Flight.HorizontalSpeed

	target, err := a.cfg.Predictor.PredictLandingDownrange(vs.Sample(), d.SpeedDelta)
	if err != nil {
		if errors.Is(err, ErrNoLanding) || errors.Is(err, ErrInvalidSample) {
			span.RecordError(err)
			a.logger(ctx).Warn(ctx, "landing prediction failed", logging.Err(err))
			return nil
		}
		return err
	}
	d.TargetDownrange = target
	d.Remaining = a.track.Circumference() - target - a.track.Value()
	d.Trigger = d.Remaining < d.BurnDistance && !a.advanced
	a.lastBurn = d
	a.metrics.SetPredictedDownrange(target)

	span.SetAttributes(
		attribute.Float64("target_downrange", d.TargetDownrange),
		attribute.Float64("burn_distance", d.BurnDistance),
		attribute.Bool("trigger", d.Trigger),
	)
	a.logger(ctx).Debug(ctx, "descent decision",
		logging.Float("until_maneuver", d.Remaining-d.BurnDistance),
		logging.Float("to_start", a.track.DistanceToStart()),
		logging.Float("burn_distance", d.BurnDistance),
		logging.Float("landing_distance", d.TargetDownrange),
	)

	if d.Trigger {
		a.logger(ctx).Info(ctx, "initiating landing burn", logging.Float("remaining", d.Remaining))
		return a.advance(ctx, vs)
	}
	return nil
}

func (a *Autopilot) enterSampling(ctx context.Context) {
	if a.mode == ModeSampling {
		return
	}
	a.mode = ModeSampling
	a.logger(ctx).Info(ctx, "maneuver completed; collecting landing telemetry",
		logging.Duration("interval", a.cfg.SampleInterval))
}

