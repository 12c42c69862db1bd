package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/signalsfoundry/descent-autopilot/internal/analysis"
	"github.com/signalsfoundry/descent-autopilot/internal/config"
	"github.com/signalsfoundry/descent-autopilot/internal/logging"
	"github.com/signalsfoundry/descent-autopilot/internal/telemetry"
)

func main() {
	log := logging.NewFromEnv()
	if err := run(os.Args[1:], os.Stdout, log); err != nil {
		log.Error(context.Background(), "landing analysis failed", logging.Err(err))
		os.Exit(1)
	}
}

// run reads a telemetry log and writes the flown and predicted descents as
// CSV to out, or to the -out file when given.
func run(args []string, stdout io.Writer, log logging.Logger) error {
	fs := flag.NewFlagSet("landing-analysis", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to a config file (defaults to $AUTOPILOT_CONFIG)")
	logPath := fs.String("log", "", "Telemetry log to analyse (defaults to telemetry_path)")
	outPath := fs.String("out", "", "CSV output file (defaults to stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(config.PathFromEnv(*configPath))
	if err != nil {
		return err
	}
	path := *logPath
	if path == "" {
		path = cfg.Autopilot.TelemetryPath
	}

	records, err := telemetry.ReadFile(path)
	if err != nil {
		return err
	}
	cmp, err := analysis.Compare(records, analysis.Options{
		Model:          cfg.Analysis,
		SampleInterval: cfg.SampleInterval(),
	})
	if err != nil {
		return fmt.Errorf("analyse %s: %w", path, err)
	}

	out := stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := analysis.WriteCSV(out, cmp); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	log.Info(context.Background(), "landing analysed",
		logging.String("log", path),
		logging.Int("records", len(records)),
		logging.Float("flight_landing_m", cmp.Flight.Landing()),
		logging.Float("predicted_landing_m", cmp.Predicted.Landing()),
		logging.Float("landing_error_m", cmp.LandingError()))
	return nil
}
