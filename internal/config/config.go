// Package config loads the autopilot's runtime configuration from an
// optional file and AUTOPILOT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/descent-autopilot/core"
	"github.com/signalsfoundry/descent-autopilot/internal/observability"
)

// EnvPrefix prefixes every environment override, e.g. AUTOPILOT_LINK_ADDR.
const EnvPrefix = "AUTOPILOT"

// PathEnv names the configuration file when no -config flag is given.
const PathEnv = "AUTOPILOT_CONFIG"

// ErrInvalid is returned for a configuration that cannot run.
var ErrInvalid = errors.New("invalid configuration")

// LinkMode selects how the autopilot reaches the vessel.
type LinkMode string

const (
	// LinkSim flies an in-process simulated vessel.
	LinkSim LinkMode = "sim"
	// LinkGRPC dials a vessel link server.
	LinkGRPC LinkMode = "grpc"
)

// Link is the vessel connection.
type Link struct {
	Mode LinkMode
	Addr string
}

// Config is the resolved configuration of all binaries.
type Config struct {
	Autopilot core.Config
	// Analysis is the model used to re-simulate a recorded landing.
	Analysis    core.Model
	Link        Link
	MetricsAddr string
	Tracing     observability.TracingConfig
	// File is the configuration file that was read, if any.
	File string
}

func setDefaults(v *viper.Viper) {
	ap := core.DefaultConfig()
	v.SetDefault("tick_interval", ap.TickInterval)
	v.SetDefault("sample_interval", ap.SampleInterval)
	v.SetDefault("telemetry_path", ap.TelemetryPath)
	v.SetDefault("link.mode", string(LinkSim))
	v.SetDefault("link.addr", "127.0.0.1:50051")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("burn.fuel_rate", ap.BurnFuelRate)
	v.SetDefault("burn.thrust", ap.BurnThrust)
	v.SetDefault("predictor.drag_coefficient", core.FlightLoopModel.DragCoefficient)
	v.SetDefault("predictor.step", core.FlightLoopModel.Step)
	v.SetDefault("analysis.drag_coefficient", core.AnalysisModel.DragCoefficient)
	v.SetDefault("analysis.step", core.AnalysisModel.Step)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "descent-autopilot")
	v.SetDefault("tracing.exporter", observability.ExporterStdout)
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// PathFromEnv returns flagValue, or AUTOPILOT_CONFIG when it is empty.
func PathFromEnv(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(PathEnv)
}

// Load resolves the configuration. path may be empty, in which case only
// defaults and environment overrides apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	ap := core.DefaultConfig()
	ap.TickInterval = v.GetDuration("tick_interval")
	ap.SampleInterval = v.GetDuration("sample_interval")
	ap.TelemetryPath = v.GetString("telemetry_path")
	ap.BurnFuelRate = v.GetFloat64("burn.fuel_rate")
	ap.BurnThrust = v.GetFloat64("burn.thrust")
	ap.Predictor.DragCoefficient = v.GetFloat64("predictor.drag_coefficient")
	ap.Predictor.Step = v.GetFloat64("predictor.step")

	analysis := core.AnalysisModel
	analysis.DragCoefficient = v.GetFloat64("analysis.drag_coefficient")
	analysis.Step = v.GetFloat64("analysis.step")

	cfg := Config{
		Autopilot: ap,
		Analysis:  analysis,
		Link: Link{
			Mode: LinkMode(strings.ToLower(v.GetString("link.mode"))),
			Addr: v.GetString("link.addr"),
		},
		MetricsAddr: v.GetString("metrics.addr"),
		File:        v.ConfigFileUsed(),
		Tracing: observability.TracingConfig{
			Enabled:     v.GetBool("tracing.enabled"),
			ServiceName: v.GetString("tracing.service_name"),
			Exporter:    strings.ToLower(v.GetString("tracing.exporter")),
			Endpoint:    v.GetString("tracing.otlp_endpoint"),
			SampleRatio: v.GetFloat64("tracing.sample_ratio"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot run.
func (c Config) Validate() error {
	switch c.Link.Mode {
	case LinkSim:
	case LinkGRPC:
		if c.Link.Addr == "" {
			return fmt.Errorf("%w: link.addr is required in grpc mode", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: link.mode %q", ErrInvalid, c.Link.Mode)
	}
	switch c.Tracing.Exporter {
	case observability.ExporterStdout, observability.ExporterOTLP:
	default:
		return fmt.Errorf("%w: tracing.exporter %q", ErrInvalid, c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing.sample_ratio %v outside [0, 1]", ErrInvalid, c.Tracing.SampleRatio)
	}
	if c.Autopilot.TickInterval < 0 {
		return fmt.Errorf("%w: tick_interval %v", ErrInvalid, c.Autopilot.TickInterval)
	}
	if c.Autopilot.SampleInterval <= 0 {
		return fmt.Errorf("%w: sample_interval %v", ErrInvalid, c.Autopilot.SampleInterval)
	}
	if c.Autopilot.TelemetryPath == "" {
		return fmt.Errorf("%w: telemetry_path is empty", ErrInvalid)
	}
	if c.Autopilot.Predictor.Step <= 0 || c.Analysis.Step <= 0 {
		return fmt.Errorf("%w: predictor and analysis steps must be positive", ErrInvalid)
	}
	return nil
}

// SampleInterval is the telemetry spacing assumed by the analysis tool.
func (c Config) SampleInterval() time.Duration {
	return c.Autopilot.SampleInterval
}
