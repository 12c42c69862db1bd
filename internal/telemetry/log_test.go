package telemetry

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/descent-autopilot/model"
)

func sampleRecord() model.TelemetryRecord {
	return model.TelemetryRecord{
		Speed:             231.5,
		HorizontalSpeed:   180.25,
		VerticalSpeed:     -145.5,
		Rotation:          model.Quaternion{0.1, 0.2, 0.3, 0.927},
		Direction:         model.Vec3{0.6, 0, 0.8},
		Prograde:          model.Vec3{-0.628, 0.778, 0},
		Retrograde:        model.Vec3{0.628, -0.778, 0},
		AtmosphereDensity: 0.0123,
		DynamicPressure:   329.6,
		StaticPressure:    1021.3,
		AerodynamicForce:  model.Vec3{1.5, -20.25, 0.125},
		Lift:              model.Vec3{0.5, 0, 0},
		Drag:              model.Vec3{1, -20.25, 0.125},
		Altitude:          18450.75,
		Mass:              2240.5,
	}
}

func TestRecordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	rec := sampleRecord()
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	got, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for _, g := range got {
		assert.InDelta(t, rec.Speed, g.Speed, 1e-9)
		assert.InDelta(t, rec.Altitude, g.Altitude, 1e-9)
		assert.InDelta(t, rec.Mass, g.Mass, 1e-9)
		assert.True(t, rec.AerodynamicForce.EqualWithinAbs(g.AerodynamicForce, 1e-9))
		assert.True(t, rec.Prograde.EqualWithinAbs(g.Prograde, 1e-9))
		assert.Equal(t, rec, g)
	}
}

func TestRecordFieldNames(t *testing.T) {
	data, err := json.Marshal(sampleRecord())
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))

	want := []string{
		"speed", "horizontal_speed", "vertical_speed", "rotation", "direction",
		"prograde", "retrograde", "atmosphere_density", "dynamic_pressure",
		"static_pressure", "aerodynamic_force", "lift", "drag", "altitude", "mass",
	}
	assert.Len(t, fields, len(want))
	for _, name := range want {
		assert.Contains(t, fields, name)
	}

	var drag []float64
	require.NoError(t, json.Unmarshal(fields["drag"], &drag))
	assert.Len(t, drag, 3)
}

func TestOpenFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight_data.txt")

	for i := 0; i < 2; i++ {
		w, err := OpenFile(path)
		require.NoError(t, err)
		require.NoError(t, w.Write(sampleRecord()))
		require.NoError(t, w.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	recs, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestWriteAfterClose(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Write(sampleRecord()), ErrClosed)
}

func TestReadAllReportsBadLine(t *testing.T) {
	_, err := ReadAll(strings.NewReader("{\"speed\": 1}\n\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestReadAllSkipsWhitespaceLines(t *testing.T) {
	recs, err := ReadAll(strings.NewReader("{\"altitude\": 10}\r\n \t\r\n\n{\"altitude\": 5}\n"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 5.0, recs[1].Altitude)
}
