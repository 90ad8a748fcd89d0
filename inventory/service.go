// Package inventory 组合收益管理算法与服务治理能力，对外提供航段座位控制计算。
package inventory

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc/pool"

	"github.com/wyfcoding/revmgmt/algorithm/revenue"
	"github.com/wyfcoding/revmgmt/config"
	"github.com/wyfcoding/revmgmt/contextx"
	"github.com/wyfcoding/revmgmt/idgen"
	"github.com/wyfcoding/revmgmt/metrics"
	"github.com/wyfcoding/revmgmt/tracing"
	"github.com/wyfcoding/revmgmt/xerrors"
)

// settings 可热更新的计算参数，整体替换。
type settings struct {
	optimizer        *revenue.Optimizer
	defaultMethod    revenue.Method
	maxCapacity      int
	batchConcurrency int
	timeout          time.Duration
}

// Service 航段座位控制计算服务，可被多个 goroutine 并发使用。
type Service struct {
	settings  atomic.Pointer[settings]
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	computations *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	stepCapacity prometheus.Gauge
	published    *prometheus.CounterVec
}

// Option 配置 Service 的函数式选项。
type Option func(*Service)

// WithPublisher 设置结果下发通道，默认不下发。
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger 设置日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService 按配置创建计算服务，m 为 nil 时不采集指标。
func NewService(cfg config.OptimizerConfig, m *metrics.Metrics, opts ...Option) (*Service, error) {
	s := &Service{
		publisher: nopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "inventory")

	if err := s.Reload(cfg); err != nil {
		return nil, err
	}

	if m != nil {
		s.computations = m.NewCounterVec(prometheus.CounterOpts{
			Name: "revmgmt_computations_total",
			Help: "Total number of seat control computations",
		}, []string{"method", "status"})
		s.duration = m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "revmgmt_computation_duration_seconds",
			Help:    "Seat control computation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"method"})
		s.stepCapacity = m.NewGauge(prometheus.GaugeOpts{
			Name: "revmgmt_stepwise_capacity",
			Help: "Capacity of the most recent stepwise booking limit computation",
		})
		s.published = m.NewCounterVec(prometheus.CounterOpts{
			Name: "revmgmt_published_controls_total",
			Help: "Total number of published leg controls",
		}, []string{"status"})
	}

	return s, nil
}

// Reload 以新配置替换计算参数，配置非法时保留原参数并返回错误。
func (s *Service) Reload(cfg config.OptimizerConfig) error {
	method := revenue.MethodEMSRbMR
	if cfg.DefaultMethod != "" {
		m, err := revenue.ParseMethod(cfg.DefaultMethod)
		if err != nil {
			return err
		}
		method = m
	}
	policy := revenue.ForceTopFare
	if cfg.TopClassPolicy != "" {
		p, err := revenue.ParseTopClassPolicy(cfg.TopClassPolicy)
		if err != nil {
			return err
		}
		policy = p
	}
	batch := cfg.BatchConcurrency
	if batch <= 0 {
		batch = 8
	}

	s.settings.Store(&settings{
		optimizer: revenue.NewOptimizer(
			revenue.WithMonotonicRepair(cfg.MonotonicRepair),
			revenue.WithTopClassPolicy(policy),
			revenue.WithWorkers(cfg.Workers),
		),
		defaultMethod:    method,
		maxCapacity:      cfg.MaxCapacity,
		batchConcurrency: batch,
		timeout:          cfg.Timeout,
	})
	s.logger.Info("optimizer settings applied",
		"default_method", method.String(),
		"top_class_policy", policy.String(),
		"monotonic_repair", cfg.MonotonicRepair,
		"max_capacity", cfg.MaxCapacity,
	)
	return nil
}

// ReloadHook 返回可注册到 config.RegisterReloadHook 的回调。
func (s *Service) ReloadHook() func(*config.Config) {
	return func(c *config.Config) {
		if err := s.Reload(c.Optimizer); err != nil {
			s.logger.Error("optimizer reload rejected", "error", err)
		}
	}
}

// Optimizer 返回当前生效的 Optimizer。
func (s *Service) Optimizer() *revenue.Optimizer {
	return s.settings.Load().optimizer
}

// DefaultMethod 返回当前默认方法。
func (s *Service) DefaultMethod() revenue.Method {
	return s.settings.Load().defaultMethod
}

// Transform 执行票价转换，capacity 为 0 表示不截断。
func (s *Service) Transform(ctx context.Context, req LegRequest) (*revenue.Transformation, error) {
	st := s.settings.Load()
	ctx, span := tracing.StartSpan(ctx, "inventory.Transform",
		tracing.LegIDKey.String(req.LegID),
		tracing.ClassesKey.Int(len(req.Fares)),
	)
	defer span.End()

	if err := st.checkFareStructure(req.FareStructure); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	if err := st.checkCapacity(req.Capacity); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	t, err := st.optimizer.Transform(req.Fares, req.Demands, revenue.WithCap(float64(req.Capacity)))
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	tracing.AddTag(ctx, tracing.Ints(tracing.EfficientKey, t.Efficient))
	return t, nil
}

// ProtectionLevels 计算保护水平，仅支持 EMSRb 与 EMSRb_MR。
func (s *Service) ProtectionLevels(ctx context.Context, req LegRequest) (revenue.Levels, error) {
	st := s.settings.Load()
	method := st.method(req.Method)

	ctx, span := tracing.StartSpan(ctx, "inventory.ProtectionLevels",
		tracing.LegIDKey.String(req.LegID),
		tracing.MethodKey.String(method.String()),
		tracing.ClassesKey.Int(len(req.Fares)),
	)
	defer span.End()

	if err := st.checkFareStructure(req.FareStructure); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	if err := st.checkCapacity(req.Capacity); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	start := s.now()
	levels, err := st.optimizer.ProtectionLevels(req.classes(), method, float64(req.Capacity))
	s.observe(method, start, err)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	return levels, nil
}

// Compute 计算单个航段的订座限额并下发。
// 下发失败只记录日志与指标，不影响计算结果。
func (s *Service) Compute(ctx context.Context, req LegRequest) (*LegControls, error) {
	st := s.settings.Load()
	method := st.method(req.Method)

	runID := idgen.GenRunID()
	ctx = contextx.WithRunID(ctx, runID)
	if req.LegID != "" {
		ctx = contextx.WithLegID(ctx, req.LegID)
	}

	ctx, span := tracing.StartSpan(ctx, "inventory.Compute",
		tracing.RunIDKey.String(runID),
		tracing.LegIDKey.String(req.LegID),
		tracing.MethodKey.String(method.String()),
		tracing.CapacityKey.Int(req.Capacity),
		tracing.ClassesKey.Int(len(req.Fares)),
	)
	defer span.End()

	logger := s.logger.With(contextx.LogAttrs(ctx)...)

	if err := st.checkFareStructure(req.FareStructure); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	if req.Capacity <= 0 {
		err := xerrors.ErrCapacityRequired.Clone().WithDetail("capacity=%d", req.Capacity)
		tracing.SetError(ctx, err)
		return nil, err
	}
	if err := st.checkCapacity(req.Capacity); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	if st.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.timeout)
		defer cancel()
	}

	start := s.now()
	limits, err := st.optimizer.BookingLimits(ctx, req.classes(), method, req.Capacity)
	s.observe(method, start, err)
	if err != nil {
		tracing.SetError(ctx, err)
		logger.WarnContext(ctx, "booking limit computation failed", "method", method.String(), "error", err)
		return nil, err
	}
	tracing.AddTag(ctx, tracing.Ints(tracing.IncrementalKey, limits.Incremental))
	if method == revenue.MethodEMSRbMRStep && s.stepCapacity != nil {
		s.stepCapacity.Set(float64(req.Capacity))
	}

	controls := &LegControls{
		RunID:            runID,
		LegID:            req.LegID,
		Method:           method,
		Capacity:         req.Capacity,
		ProtectionLevels: limits.ProtectionLevels,
		Cumulative:       limits.Cumulative,
		Incremental:      limits.Incremental,
		ComputedAt:       s.now().UTC(),
	}
	logger.InfoContext(ctx, "booking limits computed",
		"method", method.String(),
		"capacity", req.Capacity,
		"incremental", controls.Incremental,
		"duration", time.Since(start),
	)

	s.publish(ctx, logger, controls)
	return controls, nil
}

// ComputeBatch 并发计算多个航段，并发度受 batch_concurrency 限制。
// 结果按请求顺序返回，单个航段失败不影响其他航段。
func (s *Service) ComputeBatch(ctx context.Context, reqs []LegRequest) []BatchResult {
	st := s.settings.Load()
	results := make([]BatchResult, len(reqs))

	p := pool.New().WithMaxGoroutines(st.batchConcurrency)
	for i, req := range reqs {
		p.Go(func() {
			res := BatchResult{Index: i, LegID: req.LegID}
			if err := ctx.Err(); err != nil {
				res.Err = xerrors.FromContext(err)
			} else {
				res.Controls, res.Err = s.Compute(ctx, req)
			}
			results[i] = res
		})
	}
	p.Wait()

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.logger.InfoContext(ctx, "batch computed", "legs", len(reqs), "failed", failed)
	return results
}

func (s *Service) publish(ctx context.Context, logger *slog.Logger, controls *LegControls) {
	err := s.publisher.Publish(ctx, controls)
	status := "success"
	if err != nil {
		status = "failed"
		logger.ErrorContext(ctx, "failed to publish leg controls", "error", err)
	}
	if s.published != nil {
		s.published.WithLabelValues(status).Inc()
	}
}

func (s *Service) observe(method revenue.Method, start time.Time, err error) {
	if s.computations == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "invalid"
		var xe *xerrors.Error
		if errors.As(err, &xe) && xe.Type != xerrors.ErrInvalidArg {
			status = "error"
		}
	}
	s.computations.WithLabelValues(method.String(), status).Inc()
	s.duration.WithLabelValues(method.String()).Observe(s.now().Sub(start).Seconds())
}

func (st *settings) method(m revenue.Method) revenue.Method {
	if m == 0 {
		return st.defaultMethod
	}
	return m
}

func (st *settings) checkCapacity(capacity int) error {
	if capacity < 0 {
		return xerrors.ErrInvalidCap.Clone().WithDetail("capacity=%d", capacity)
	}
	if st.maxCapacity > 0 && capacity > st.maxCapacity {
		return xerrors.ErrCapacityTooLarge.Clone().WithDetail("capacity %d exceeds limit %d", capacity, st.maxCapacity)
	}
	return nil
}

// checkFareStructure 零值视为无差异化票价结构。
func (st *settings) checkFareStructure(fs revenue.FareStructure) error {
	if fs != 0 && fs != revenue.FareStructureUndifferentiated {
		return xerrors.ErrUnsupportedFareStructure.Clone().WithDetail("fare structure %q", fs.String())
	}
	return nil
}
