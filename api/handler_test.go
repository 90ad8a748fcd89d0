package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/revmgmt/config"
	"github.com/wyfcoding/revmgmt/health"
	"github.com/wyfcoding/revmgmt/inventory"
)

type envelope struct {
	Code   int             `json:"code"`
	Msg    string          `json:"msg"`
	Detail string          `json:"detail"`
	Data   json.RawMessage `json:"data"`
}

const scenarioBody = `{
	"leg_id": "CA1234",
	"fares": ["1200", "1000", 800, 600, "400", 200],
	"demands": [31.2, 10.9, 14.8, 19.9, 26.9, 36.3],
	"sigmas": [11.2, 6.6, 7.7, 8.9, 10.4, 12]`

func newRouter(t *testing.T, checks *health.Registry) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, err := inventory.NewService(config.OptimizerConfig{
		DefaultMethod:   "EMSRb_MR",
		MonotonicRepair: true,
		MaxCapacity:     1000,
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	r := gin.New()
	NewHandler(svc, checks, "revmgmt-test").Register(r)
	return r
}

func post(t *testing.T, r http.Handler, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return w, env
}

func TestBookingLimits(t *testing.T) {
	r := newRouter(t, nil)
	w, env := post(t, r, "/v1/booking-limits", scenarioBody+`, "capacity": 100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var controls struct {
		LegID       string `json:"leg_id"`
		Method      string `json:"method"`
		Incremental []int  `json:"incremental"`
	}
	if err := json.Unmarshal(env.Data, &controls); err != nil {
		t.Fatal(err)
	}
	if controls.LegID != "CA1234" || controls.Method != "EMSRb_MR" {
		t.Errorf("controls = %+v", controls)
	}
	want := []int{35, 17, 32, 16, 0, 0}
	for i := range want {
		if controls.Incremental[i] != want[i] {
			t.Fatalf("incremental = %v, want %v", controls.Incremental, want)
		}
	}
}

func TestProtectionLevelsNotApplicableIsNull(t *testing.T) {
	r := newRouter(t, nil)
	w, env := post(t, r, "/v1/protection-levels", scenarioBody+`, "capacity": 40}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		ProtectionLevels []*float64 `json:"protection_levels"`
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatal(err)
	}
	pl := resp.ProtectionLevels
	if len(pl) != 6 || pl[0] == nil || *pl[0] != 0 || pl[1] == nil || *pl[1] != 39 {
		t.Fatalf("protection levels = %s", env.Data)
	}
	for i := 2; i < 6; i++ {
		if pl[i] != nil {
			t.Errorf("level %d should be null", i)
		}
	}
}

func TestTransformWithUnknownDemand(t *testing.T) {
	r := newRouter(t, nil)
	body := `{"fares": [69.5, 59.5, 48.5, 37.5, 29.0], "demands": [3, 1, null, 0, 10]}`
	w, env := post(t, r, "/v1/transformations", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var tr struct {
		Efficient []int `json:"efficient_indices"`
	}
	if err := json.Unmarshal(env.Data, &tr); err != nil {
		t.Fatal(err)
	}
	if len(tr.Efficient) != 3 || tr.Efficient[0] != 0 || tr.Efficient[1] != 1 || tr.Efficient[2] != 4 {
		t.Errorf("efficient = %v", tr.Efficient)
	}
}

func TestRequestErrors(t *testing.T) {
	r := newRouter(t, nil)
	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"increasing fares", "/v1/booking-limits", `{"fares": [100, 200], "demands": [1, 1], "capacity": 10}`, 400103},
		{"unknown method", "/v1/booking-limits", `{"fares": [100], "demands": [1], "capacity": 10, "method": "LP"}`, 400107},
		{"differentiated", "/v1/transformations", `{"fares": [100], "demands": [1], "fare_structure": "differentiated"}`, 400108},
		{"capacity missing", "/v1/booking-limits", `{"fares": [100], "demands": [1]}`, 400109},
		{"capacity too large", "/v1/booking-limits", `{"fares": [100], "demands": [1], "capacity": 5000}`, 400111},
		{"step for protection levels", "/v1/protection-levels", `{"fares": [100], "demands": [1], "method": "EMSRb_MR_step"}`, 400107},
		{"fares missing", "/v1/booking-limits", `{"demands": [1], "capacity": 10}`, 400},
		{"malformed", "/v1/booking-limits", `{"fares": [`, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := post(t, r, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d", w.Code)
			}
			if env.Code != tt.code {
				t.Errorf("code = %d, want %d (%s)", env.Code, tt.code, env.Msg)
			}
		})
	}
}

func TestBookingLimitsBatch(t *testing.T) {
	r := newRouter(t, nil)
	body := `{"legs": [
		{"leg_id": "A", "fares": [1200, 1000], "demands": [10, 20], "capacity": 25, "method": "EMSRb"},
		{"leg_id": "B", "fares": [1200, 1000], "demands": [10, 20], "capacity": 25, "method": "LP"},
		{"leg_id": "C", "fares": [1200, 1000], "demands": [10, 20], "capacity": 25, "method": "EMSRb_MR_step"}
	]}`
	w, env := post(t, r, "/v1/booking-limits/batch", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var items []struct {
		LegID    string `json:"leg_id"`
		Controls *struct {
			Incremental []int `json:"incremental"`
		} `json:"controls"`
		Error *ItemError `json:"error"`
	}
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d", len(items))
	}
	if items[0].LegID != "A" || items[0].Controls == nil || items[0].Error != nil {
		t.Errorf("leg A = %+v", items[0])
	}
	if items[1].Error == nil || items[1].Error.Code != 400107 {
		t.Errorf("leg B should fail with unsupported method: %+v", items[1])
	}
	if items[2].Controls == nil {
		t.Fatalf("leg C = %+v", items[2])
	}
	var total int
	for _, v := range items[2].Controls.Incremental {
		total += v
	}
	if total != 25 {
		t.Errorf("stepwise limits sum = %d, want 25", total)
	}
}

func TestHealthEndpoints(t *testing.T) {
	checks := health.NewRegistry(0)
	r := newRouter(t, checks)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("readyz = %d", w.Code)
	}

	checks.Register("kafka", func() error { return errors.New("no brokers") })
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with failing probe = %d", w.Code)
	}
	var report health.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Status != health.StatusDown || len(report.Probes) != 1 {
		t.Errorf("report = %+v", report)
	}
}
