package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/revmgmt/config"
	"github.com/wyfcoding/revmgmt/health"
	"github.com/wyfcoding/revmgmt/limiter"
	"github.com/wyfcoding/revmgmt/logging"
	"github.com/wyfcoding/revmgmt/metrics"
	"github.com/wyfcoding/revmgmt/middleware"
	"github.com/wyfcoding/revmgmt/server"
	"github.com/wyfcoding/revmgmt/tracing"
)

const (
	defaultMetricsPath  = "/metrics"
	defaultMaxBodyBytes = 1 << 20
)

// Components 是业务初始化时可用的基础组件。
type Components struct {
	Config    *config.Config
	Logger    *logging.Logger
	Metrics   *metrics.Metrics
	Health    *health.Registry
	Lifecycle *Lifecycle
}

// ServiceInit 初始化业务服务，返回服务实例与清理函数。
type ServiceInit func(*Components) (svc any, cleanup func(), err error)

// Builder 提供了构建 App 的灵活方式.
type Builder struct {
	serviceName   string
	cfg           *config.Config
	initService   ServiceInit
	registerGin   func(*gin.Engine, any)
	ginMiddleware []gin.HandlerFunc
	appOpts       []Option
	checks        map[string]health.Checker
	logOutput     io.Writer
}

// NewBuilder 创建一个新的应用构建器.
func NewBuilder(serviceName string) *Builder {
	return &Builder{
		serviceName: serviceName,
		checks:      make(map[string]health.Checker),
	}
}

// WithConfig 设置已加载的配置实例.
func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	b.cfg = cfg
	return b
}

// WithService 注册核心业务初始化逻辑.
func (b *Builder) WithService(init ServiceInit) *Builder {
	b.initService = init
	return b
}

// WithGin 注册 Gin 路由注册钩子.
func (b *Builder) WithGin(register func(*gin.Engine, any)) *Builder {
	b.registerGin = register
	return b
}

// WithGinMiddleware 追加业务自定义 Gin 中间件，位于治理中间件之后.
func (b *Builder) WithGinMiddleware(mw ...gin.HandlerFunc) *Builder {
	b.ginMiddleware = append(b.ginMiddleware, mw...)
	return b
}

// WithHealthChecker 添加命名就绪探针.
func (b *Builder) WithHealthChecker(name string, checker health.Checker) *Builder {
	b.checks[name] = checker
	return b
}

// WithLogOutput 设置控制台日志输出目标，默认 stdout.
func (b *Builder) WithLogOutput(w io.Writer) *Builder {
	b.logOutput = w
	return b
}

// WithOption 追加 App 选项.
func (b *Builder) WithOption(opts ...Option) *Builder {
	b.appOpts = append(b.appOpts, opts...)
	return b
}

// Build 构建并组装完整的 App 实例.
func (b *Builder) Build() (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("app %s: config is required", b.serviceName)
	}
	if b.initService == nil {
		return nil, fmt.Errorf("app %s: service initializer is required", b.serviceName)
	}
	cfg := b.cfg

	logger := b.initLogger(cfg)
	b.initTracing(cfg, logger)
	m := b.initMetrics(cfg)

	checks := health.NewRegistry(0)
	for name, c := range b.checks {
		checks.Register(name, c)
	}
	lc := NewLifecycle(logger.Logger)

	svc, cleanup, err := b.initService(&Components{
		Config:    cfg,
		Logger:    logger,
		Metrics:   m,
		Health:    checks,
		Lifecycle: lc,
	})
	if err != nil {
		logger.Error("failed to initialize service", "error", err)
		return nil, err
	}
	b.appOpts = append(b.appOpts, WithCleanup(cleanup))

	if b.registerGin != nil {
		engine := server.NewDefaultGinEngine(b.middleware(cfg, logger, m)...)
		b.registerAdminRoutes(engine, cfg, m)
		b.registerGin(engine, svc)

		addr := cfg.Server.HTTP.Addr + ":" + strconv.Itoa(cfg.Server.HTTP.Port)
		srv := server.NewGinServer(engine, addr, logger.Logger, server.Options{
			ReadTimeout:       cfg.Server.HTTP.ReadTimeout,
			ReadHeaderTimeout: cfg.Server.HTTP.ReadHeaderTimeout,
			WriteTimeout:      cfg.Server.HTTP.WriteTimeout,
			IdleTimeout:       cfg.Server.HTTP.IdleTimeout,
			MaxHeaderBytes:    cfg.Server.HTTP.MaxHeaderBytes,
			ShutdownTimeout:   cfg.Server.HTTP.ShutdownTimeout,
		})
		b.appOpts = append(b.appOpts, WithServer(srv))
	}
	if d := cfg.Server.HTTP.ShutdownTimeout; d > 0 {
		b.appOpts = append(b.appOpts, WithShutdownTimeout(2*d))
	}

	b.appOpts = append(b.appOpts, withLifecycle(lc))
	return New(b.serviceName, logger.Logger, b.appOpts...), nil
}

func (b *Builder) initLogger(cfg *config.Config) *logging.Logger {
	lc := logging.Config{
		Service:    b.serviceName,
		Module:     "app",
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}
	if b.logOutput != nil {
		lc.Output = b.logOutput
	}
	l := logging.NewFromConfig(lc)
	logging.SetDefault(l)
	return l
}

func (b *Builder) initTracing(cfg *config.Config, logger *logging.Logger) {
	tc := cfg.Tracing
	if tc.ServiceName == "" {
		tc.ServiceName = b.serviceName
	}
	shutdown, err := tracing.InitTracer(tc)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		return
	}
	b.appOpts = append(b.appOpts, WithCleanup(func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", "error", err)
		}
	}))
}

func (b *Builder) initMetrics(cfg *config.Config) *metrics.Metrics {
	m := metrics.NewMetrics(b.serviceName)
	m.RegisterRequestSizeMetrics()
	m.RegisterBuildInfo(b.serviceName, cfg.Version)

	if cfg.Metrics.Enabled && cfg.Metrics.Port != "" {
		b.appOpts = append(b.appOpts, WithCleanup(m.ExposeHTTP(cfg.Metrics.Port, cfg.Metrics.Path)))
	}
	return m
}

// middleware 组装治理中间件，顺序：恢复、请求 ID、追踪、上下文、日志、指标、限流、请求体上限、超时.
func (b *Builder) middleware(cfg *config.Config, logger *logging.Logger, m *metrics.Metrics) []gin.HandlerFunc {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = defaultMetricsPath
	}

	mw := []gin.HandlerFunc{
		middleware.Recovery(logger.Logger),
		middleware.RequestID(),
	}
	if cfg.Tracing.Enabled {
		mw = append(mw, middleware.TracingMiddleware(b.serviceName, "/healthz", "/readyz", metricsPath), middleware.TraceIDHeader())
	}
	mw = append(mw,
		middleware.RequestContextEnricher(),
		middleware.Logger(logger.Logger, "/healthz", "/readyz", metricsPath),
		middleware.HTTPMetricsMiddlewareWithOptions(m, middleware.MetricsOptions{
			SkipPaths: []string{"/healthz", "/readyz", metricsPath},
		}),
	)

	rl := limiter.NewDynamicLimiter(nil)
	applyRateLimit(rl, cfg.RateLimit)
	config.RegisterReloadHook(func(c *config.Config) {
		applyRateLimit(rl, c.RateLimit)
		slog.Info("rate limit reloaded", "enabled", c.RateLimit.Enabled, "rate", c.RateLimit.Rate, "burst", c.RateLimit.Burst)
	})
	mw = append(mw,
		middleware.RateLimitMiddleware(rl),
		middleware.MaxBodyBytes(defaultMaxBodyBytes),
		middleware.TimeoutMiddleware(cfg.Server.HTTP.Timeout),
	)

	return append(mw, b.ginMiddleware...)
}

func applyRateLimit(rl *limiter.DynamicLimiter, rc config.RateLimitConfig) {
	if !rc.Enabled {
		rl.Update(nil)
		return
	}
	rl.UpdateKeyed(rc.Rate, rc.Burst)
}

func (b *Builder) registerAdminRoutes(engine *gin.Engine, cfg *config.Config, m *metrics.Metrics) {
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != "" {
		return
	}
	path := cfg.Metrics.Path
	if path == "" {
		path = defaultMetricsPath
	}
	engine.GET(path, gin.WrapH(m.Handler()))
}
