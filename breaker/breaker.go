// Package breaker 提供了基于 gobreaker 的熔断器封装，集成 Prometheus 状态指标与日志。
package breaker

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"github.com/wyfcoding/revmgmt/config"
	"github.com/wyfcoding/revmgmt/metrics"
	"github.com/wyfcoding/revmgmt/xerrors"
)

// ErrOpen 表示下游当前处于熔断状态。
var ErrOpen = xerrors.New(xerrors.ErrUnavailable, 503000, "circuit breaker is open", "", nil)

// Breaker 封装了 gobreaker 实例，未启用时直接执行被保护函数。
type Breaker struct {
	circuitBreaker *gobreaker.CircuitBreaker
}

// Settings 定义了熔断器的初始化参数。
type Settings struct {
	Name   string
	Config config.CircuitBreakerConfig
}

// NewBreaker 初始化并返回一个新的熔断器封装对象。
// 状态指标 circuit_breaker_state 取值：0 Closed，1 Half-Open，2 Open。
func NewBreaker(st Settings, m *metrics.Metrics) *Breaker {
	if !st.Config.Enabled {
		return &Breaker{}
	}

	failureRatio := st.Config.FailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.5
	}
	minRequests := st.Config.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}

	var state *prometheus.GaugeVec
	if m != nil {
		state = m.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0: Closed, 1: Half-Open, 2: Open)",
		}, []string{"name"})
		state.WithLabelValues(st.Name).Set(float64(gobreaker.StateClosed))
	}

	gs := gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: st.Config.MaxRequests,
		Interval:    st.Config.Interval,
		Timeout:     st.Config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && ratio >= failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			if state != nil {
				state.WithLabelValues(name).Set(float64(to))
			}
		},
	}

	return &Breaker{circuitBreaker: gobreaker.NewCircuitBreaker(gs)}
}

// Execute 执行受熔断保护的函数，熔断打开时返回 ErrOpen 的副本。
func (b *Breaker) Execute(fn func() error) error {
	if b == nil || b.circuitBreaker == nil {
		return fn()
	}

	_, err := b.circuitBreaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen.Clone().WithCause(err)
	}
	return err
}

// State 返回当前熔断状态，未启用时恒为 Closed。
func (b *Breaker) State() gobreaker.State {
	if b == nil || b.circuitBreaker == nil {
		return gobreaker.StateClosed
	}
	return b.circuitBreaker.State()
}
