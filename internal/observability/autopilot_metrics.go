package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AutopilotCollector exposes control-loop metrics. It satisfies
// core.MetricsRecorder.
type AutopilotCollector struct {
	gatherer prometheus.Gatherer

	TickDuration       prometheus.Histogram
	MissionStage       prometheus.Gauge
	ControlStage       prometheus.Gauge
	StagingEvents      prometheus.Counter
	PredictedDownrange prometheus.Gauge
	GroundTrack        prometheus.Gauge
	TelemetryRecords   prometheus.Counter
}

// NewAutopilotCollector registers autopilot metrics against the provided
// registerer.
func NewAutopilotCollector(reg prometheus.Registerer) (*AutopilotCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tick, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "autopilot_tick_duration_seconds",
		Help:    "Duration of one control tick, excluding the pause that follows it.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}), "autopilot_tick_duration_seconds")
	if err != nil {
		return nil, err
	}
	mission, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "autopilot_mission_stage",
		Help: "Current mission stage index.",
	}), "autopilot_mission_stage")
	if err != nil {
		return nil, err
	}
	control, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "autopilot_control_stage",
		Help: "Hardware staging index reported by the vessel.",
	}), "autopilot_control_stage")
	if err != nil {
		return nil, err
	}
	staging, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_staging_events_total",
		Help: "Hardware stages activated after exhaustion.",
	}), "autopilot_staging_events_total")
	if err != nil {
		return nil, err
	}
	downrange, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "autopilot_predicted_downrange_meters",
		Help: "Latest predicted landing distance downrange of the burn point.",
	}), "autopilot_predicted_downrange_meters")
	if err != nil {
		return nil, err
	}
	track, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "autopilot_ground_track_meters",
		Help: "Ground distance covered since launch, wrapped to the circumference.",
	}), "autopilot_ground_track_meters")
	if err != nil {
		return nil, err
	}
	records, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_telemetry_records_total",
		Help: "Landing telemetry records appended to the log.",
	}), "autopilot_telemetry_records_total")
	if err != nil {
		return nil, err
	}

	return &AutopilotCollector{
		gatherer:           gatherer,
		TickDuration:       tick,
		MissionStage:       mission,
		ControlStage:       control,
		StagingEvents:      staging,
		PredictedDownrange: downrange,
		GroundTrack:        track,
		TelemetryRecords:   records,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *AutopilotCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *AutopilotCollector) Handler() http.Handler {
	return handlerFor(c.Gatherer())
}

func (c *AutopilotCollector) ObserveTick(d time.Duration) {
	if c == nil || c.TickDuration == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
}

func (c *AutopilotCollector) SetMissionStage(stage int) {
	if c == nil || c.MissionStage == nil {
		return
	}
	c.MissionStage.Set(float64(stage))
}

func (c *AutopilotCollector) SetControlStage(stage int) {
	if c == nil || c.ControlStage == nil {
		return
	}
	c.ControlStage.Set(float64(stage))
}

func (c *AutopilotCollector) IncStagingEvents() {
	if c == nil || c.StagingEvents == nil {
		return
	}
	c.StagingEvents.Inc()
}

func (c *AutopilotCollector) SetPredictedDownrange(metres float64) {
	if c == nil || c.PredictedDownrange == nil {
		return
	}
	c.PredictedDownrange.Set(metres)
}

func (c *AutopilotCollector) SetGroundTrack(metres float64) {
	if c == nil || c.GroundTrack == nil {
		return
	}
	c.GroundTrack.Set(metres)
}

func (c *AutopilotCollector) IncTelemetryRecords() {
	if c == nil || c.TelemetryRecords == nil {
		return
	}
	c.TelemetryRecords.Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
