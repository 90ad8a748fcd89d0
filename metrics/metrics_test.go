package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsHandlerExposesRegisteredMetrics(t *testing.T) {
	m := NewMetrics("revmgmt")
	m.RegisterBuildInfo("revmgmt", "v0.1.0")
	m.RegisterBuildInfo("revmgmt", "v0.1.0")
	m.RegisterRequestSizeMetrics()

	m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/booking-limits", "200").Inc()
	m.ObserveRequestSize("POST", "/v1/booking-limits", 512)

	runs := m.NewCounterVec(prometheus.CounterOpts{Name: "test_runs_total", Help: "runs"}, []string{"method"})
	runs.WithLabelValues("EMSRb").Add(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`http_server_requests_total{method="POST",path="/v1/booking-limits",status="200"} 1`,
		`test_runs_total{method="EMSRb"} 2`,
		`build_info{`,
		`http_server_request_size_bytes_count{method="POST",path="/v1/booking-limits"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestObserveRequestSizeWithoutRegistration(t *testing.T) {
	var m *Metrics
	m.ObserveRequestSize("GET", "/", 10)
	NewMetrics("revmgmt").ObserveRequestSize("GET", "/", 10)
}
