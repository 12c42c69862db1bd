// Package analysis compares a recorded landing against the descent model by
// re-simulating it from the first telemetry record.
package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/signalsfoundry/descent-autopilot/core"
	"github.com/signalsfoundry/descent-autopilot/model"
)

// ErrEmptyLog is returned when there are no records to analyse.
var ErrEmptyLog = errors.New("telemetry log is empty")

// Sample is one position along a reconstructed descent.
type Sample struct {
	Downrange float64
	Altitude  float64
}

// Series is a named descent profile.
type Series struct {
	Name    string
	Samples []Sample
}

// Landing returns the downrange of the last sample.
func (s Series) Landing() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return s.Samples[len(s.Samples)-1].Downrange
}

// Comparison pairs the flown descent with the model's prediction.
type Comparison struct {
	Flight    Series
	Predicted Series
}

// LandingError is the predicted minus the flown landing downrange.
func (c Comparison) LandingError() float64 {
	return c.Predicted.Landing() - c.Flight.Landing()
}

// Options tunes the reconstruction.
type Options struct {
	// Model re-simulates the descent. Zero value means core.AnalysisModel.
	Model core.Model
	// SampleInterval is the spacing of the telemetry records.
	SampleInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Model.Step <= 0 {
		o.Model = core.AnalysisModel
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = 500 * time.Millisecond
	}
	return o
}

type point struct {
	altitude        float64
	horizontalSpeed float64
}

// accumulate integrates horizontal speed over fixed spacing. The first
// sample sits at zero downrange.
func accumulate(name string, points []point, dt float64) Series {
	s := Series{Name: name, Samples: make([]Sample, 0, len(points))}
	x := 0.0
	for i, p := range points {
		if i > 0 {
			x += p.horizontalSpeed * dt
		}
		s.Samples = append(s.Samples, Sample{Downrange: x, Altitude: p.altitude})
	}
	return s
}

// FlightSeries reconstructs the flown descent from the telemetry log.
func FlightSeries(records []model.TelemetryRecord, interval time.Duration) Series {
	points := make([]point, len(records))
	for i, r := range records {
		points[i] = point{altitude: r.Altitude, horizontalSpeed: r.HorizontalSpeed}
	}
	return accumulate("flight", points, interval.Seconds())
}

// PredictedSeries re-simulates the descent from seed with m.
func PredictedSeries(m core.Model, seed model.TelemetryRecord) (Series, error) {
	var points []point
	_, err := m.Trace(seed.Sample(), 0, func(p core.Point) {
		points = append(points, point{altitude: p.Y, horizontalSpeed: p.VX})
	})
	if err != nil {
		return Series{}, fmt.Errorf("re-simulate descent: %w", err)
	}
	return accumulate("predicted", points, m.Step), nil
}

// Compare builds both series for a recorded landing.
func Compare(records []model.TelemetryRecord, opts Options) (Comparison, error) {
	if len(records) == 0 {
		return Comparison{}, ErrEmptyLog
	}
	opts = opts.withDefaults()
	predicted, err := PredictedSeries(opts.Model, records[0])
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{
		Flight:    FlightSeries(records, opts.SampleInterval),
		Predicted: predicted,
	}, nil
}

// WriteCSV emits one row per sample of both series.
func WriteCSV(w io.Writer, c Comparison) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"series", "index", "downrange", "altitude"}); err != nil {
		return err
	}
	for _, s := range []Series{c.Flight, c.Predicted} {
		for i, p := range s.Samples {
			row := []string{
				s.Name,
				strconv.Itoa(i),
				strconv.FormatFloat(p.Downrange, 'f', 3, 64),
				strconv.FormatFloat(p.Altitude, 'f', 3, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
