package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/descent-autopilot/core"
)

var _ core.MetricsRecorder = (*AutopilotCollector)(nil)

const readScalarMethod = "/descent.vessellink.v1.VesselLink/ReadScalar"

func TestServerInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewLinkCollector(reg)
	if err != nil {
		t.Fatalf("NewLinkCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: readScalarMethod}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("server", "ReadScalar", "OK")); got != 1 {
		t.Fatalf("vessel_link_requests_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "vessel_link_request_duration_seconds", map[string]string{
		"side":   "server",
		"method": "ReadScalar",
	}); count != 1 {
		t.Fatalf("vessel_link_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestClientInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewLinkCollector(reg)
	if err != nil {
		t.Fatalf("NewLinkCollector: %v", err)
	}

	interceptor := collector.UnaryClientInterceptor()
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Unavailable, "vessel gone")
	}
	_ = interceptor(context.Background(), readScalarMethod, nil, nil, nil, invoker)

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("client", "ReadScalar", "Unavailable")); got != 1 {
		t.Fatalf("vessel_link_requests_total error label = %v, want 1", got)
	}
}

func TestCollectorsReuseRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewAutopilotCollector(reg)
	if err != nil {
		t.Fatalf("NewAutopilotCollector: %v", err)
	}
	second, err := NewAutopilotCollector(reg)
	if err != nil {
		t.Fatalf("second NewAutopilotCollector: %v", err)
	}
	first.IncStagingEvents()
	second.IncStagingEvents()
	if got := testutil.ToFloat64(first.StagingEvents); got != 2 {
		t.Fatalf("autopilot_staging_events_total = %v, want 2", got)
	}
}

func TestAutopilotHandlerExposesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewAutopilotCollector(reg)
	if err != nil {
		t.Fatalf("NewAutopilotCollector: %v", err)
	}
	collector.SetMissionStage(5)
	collector.SetControlStage(2)
	collector.SetPredictedDownrange(41234)
	collector.SetGroundTrack(1200)
	collector.ObserveTick(3 * time.Millisecond)
	collector.IncTelemetryRecords()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, line := range []string{
		"autopilot_mission_stage 5",
		"autopilot_control_stage 2",
		"autopilot_predicted_downrange_meters 41234",
		"autopilot_ground_track_meters 1200",
		"autopilot_telemetry_records_total 1",
		"autopilot_tick_duration_seconds_count 1",
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("expected %q in /metrics output:\n%s", line, body)
		}
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *AutopilotCollector
	c.ObserveTick(time.Second)
	c.SetMissionStage(1)
	c.IncStagingEvents()
	if c.Gatherer() != nil {
		t.Fatalf("nil collector returned a gatherer")
	}
}

func TestSplitMethod(t *testing.T) {
	cases := map[string][2]string{
		readScalarMethod: {"VesselLink", "ReadScalar"},
		"":               {"unknown", "unknown"},
		"/broken":        {"unknown", "unknown"},
	}
	for in, want := range cases {
		svc, m := SplitMethod(in)
		if svc != want[0] || m != want[1] {
			t.Fatalf("SplitMethod(%q) = %q, %q; want %q, %q", in, svc, m, want[0], want[1])
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
