package inventory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wyfcoding/revmgmt/algorithm/revenue"
	"github.com/wyfcoding/revmgmt/config"
	"github.com/wyfcoding/revmgmt/metrics"
	"github.com/wyfcoding/revmgmt/xerrors"
)

var (
	fares   = []float64{1200, 1000, 800, 600, 400, 200}
	demands = []float64{31.2, 10.9, 14.8, 19.9, 26.9, 36.3}
	sigmas  = []float64{11.2, 6.6, 7.7, 8.9, 10.4, 12}
)

type recordingPublisher struct {
	mu   sync.Mutex
	err  error
	sent []*LegControls
}

func (p *recordingPublisher) Publish(_ context.Context, c *LegControls) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, c)
	return p.err
}

func testConfig() config.OptimizerConfig {
	return config.OptimizerConfig{
		DefaultMethod:    "EMSRb_MR",
		TopClassPolicy:   "force_top_fare",
		MonotonicRepair:  true,
		Workers:          4,
		MaxCapacity:      500,
		BatchConcurrency: 2,
	}
}

func newTestService(t *testing.T, pub Publisher) (*Service, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics("test")
	s, err := NewService(testConfig(), m, WithPublisher(pub))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s, m
}

func leg(id string, capacity int) LegRequest {
	return LegRequest{LegID: id, Capacity: capacity, Fares: fares, Demands: demands, Sigmas: sigmas}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestComputeDefaultMethod(t *testing.T) {
	pub := &recordingPublisher{}
	s, _ := newTestService(t, pub)

	c, err := s.Compute(context.Background(), leg("CA1234", 100))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if c.Method != revenue.MethodEMSRbMR {
		t.Errorf("method = %s", c.Method)
	}
	if want := []int{35, 17, 32, 16, 0, 0}; !equalInts(c.Incremental, want) {
		t.Errorf("incremental = %v, want %v", c.Incremental, want)
	}
	if !strings.HasPrefix(c.RunID, "R") {
		t.Errorf("run id = %q", c.RunID)
	}
	if len(pub.sent) != 1 || pub.sent[0] != c {
		t.Errorf("controls not published")
	}
}

func TestComputeStepwise(t *testing.T) {
	s, _ := newTestService(t, nil)
	req := leg("MU5101", 40)
	req.Method = revenue.MethodEMSRbMRStep

	c, err := s.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if want := []int{37, 3, 0, 0, 0, 0}; !equalInts(c.Incremental, want) {
		t.Errorf("incremental = %v, want %v", c.Incremental, want)
	}
	if c.ProtectionLevels != nil {
		t.Errorf("stepwise should not report protection levels")
	}
	if !c.Cumulative[0].Valid || c.Cumulative[0].Value != 40 || c.Cumulative[1].Value != 3 {
		t.Errorf("cumulative = %v", c.Cumulative)
	}
	if got := testutil.ToFloat64(s.stepCapacity); got != 40 {
		t.Errorf("stepwise capacity gauge = %v", got)
	}
}

func TestComputeValidation(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  LegRequest
		want error
	}{
		{"zero capacity", leg("X", 0), xerrors.ErrCapacityRequired},
		{"capacity over limit", leg("X", 501), xerrors.ErrCapacityTooLarge},
		{"differentiated", func() LegRequest {
			r := leg("X", 10)
			r.FareStructure = revenue.FareStructureDifferentiated
			return r
		}(), xerrors.ErrUnsupportedFareStructure},
		{"increasing fares", LegRequest{Capacity: 10, Fares: []float64{1, 2}, Demands: []float64{1, 1}}, xerrors.ErrFaresNotDecreasing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Compute(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if got := testutil.ToFloat64(s.computations.WithLabelValues("EMSRb_MR", "invalid")); got != 1 {
		t.Errorf("invalid computations = %v", got)
	}
}

func TestComputeCancelledStepwise(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := leg("X", 100)
	req.Method = revenue.MethodEMSRbMRStep
	if _, err := s.Compute(ctx, req); !errors.Is(err, xerrors.ErrCancelled) {
		t.Errorf("err = %v", err)
	}
	if got := testutil.ToFloat64(s.computations.WithLabelValues("EMSRb_MR_step", "error")); got != 1 {
		t.Errorf("error computations = %v", got)
	}
}

func TestPublishFailureDoesNotFailCompute(t *testing.T) {
	pub := &recordingPublisher{err: xerrors.ErrPublishUnavailable.Clone()}
	s, _ := newTestService(t, pub)

	if _, err := s.Compute(context.Background(), leg("X", 100)); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got := testutil.ToFloat64(s.published.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed publishes = %v", got)
	}
}

func TestComputeBatchKeepsOrder(t *testing.T) {
	s, _ := newTestService(t, nil)
	reqs := []LegRequest{leg("A", 100), leg("B", 0), leg("C", 40)}
	reqs[2].Method = revenue.MethodEMSRbMRStep

	results := s.ComputeBatch(context.Background(), reqs)
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	for i, r := range results {
		if r.Index != i || r.LegID != reqs[i].LegID {
			t.Errorf("result %d out of order: %+v", i, r)
		}
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("unexpected errors: %v, %v", results[0].Err, results[2].Err)
	}
	if !errors.Is(results[1].Err, xerrors.ErrCapacityRequired) {
		t.Errorf("leg B err = %v", results[1].Err)
	}
	if !equalInts(results[2].Controls.Incremental, []int{37, 3, 0, 0, 0, 0}) {
		t.Errorf("leg C incremental = %v", results[2].Controls.Incremental)
	}
}

func TestReload(t *testing.T) {
	s, _ := newTestService(t, nil)

	cfg := testConfig()
	cfg.DefaultMethod = "EMSRb"
	s.ReloadHook()(&config.Config{Optimizer: cfg})
	if s.DefaultMethod() != revenue.MethodEMSRb {
		t.Fatalf("default method = %s", s.DefaultMethod())
	}

	c, err := s.Compute(context.Background(), leg("X", 100))
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{20, 15, 19, 26, 20, 0}; !equalInts(c.Incremental, want) {
		t.Errorf("incremental = %v, want %v", c.Incremental, want)
	}

	cfg.DefaultMethod = "bogus"
	if err := s.Reload(cfg); !errors.Is(err, xerrors.ErrUnsupportedMethod) {
		t.Errorf("err = %v", err)
	}
	if s.DefaultMethod() != revenue.MethodEMSRb {
		t.Errorf("invalid reload must keep previous settings")
	}
}

func TestProtectionLevelsAndTransform(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	levels, err := s.ProtectionLevels(ctx, leg("X", 50))
	if err != nil {
		t.Fatal(err)
	}
	if !levels[1].Valid || levels[1].Value != 35 || levels[2].Valid {
		t.Errorf("levels = %v", levels)
	}

	req := LegRequest{Fares: []float64{69.5, 59.5, 48.5, 37.5, 29.0}, Demands: []float64{3, 1, 0, 0, 10}}
	tr, err := s.Transform(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if !equalInts(tr.Efficient, []int{0, 1, 4}) {
		t.Errorf("efficient = %v", tr.Efficient)
	}
}
