package revenue

import "runtime"

// Optimizer 组合票价转换与 EMSRb 的座位控制计算器.
// 实例创建后不可变，可被多个 goroutine 并发使用.
type Optimizer struct {
	repair  bool
	policy  TopClassPolicy
	workers int
}

// Option 配置 Optimizer 的函数式选项.
type Option func(*Optimizer)

// WithMonotonicRepair 是否对 EMSRb 结果做前缀最大值修复，保证保护水平单调不减.
func WithMonotonicRepair(enabled bool) Option {
	return func(o *Optimizer) {
		o.repair = enabled
	}
}

// WithTopClassPolicy 设置最高舱位零需求时的处理策略.
func WithTopClassPolicy(p TopClassPolicy) Option {
	return func(o *Optimizer) {
		o.policy = p
	}
}

// WithWorkers 设置逐步求解的并行度，非正数表示使用 GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.workers = n
		}
	}
}

// NewOptimizer 创建 Optimizer，默认开启单调修复并强制保留最高舱位.
func NewOptimizer(opts ...Option) *Optimizer {
	o := &Optimizer{
		repair:  true,
		policy:  ForceTopFare,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MonotonicRepair 返回是否开启单调修复.
func (o *Optimizer) MonotonicRepair() bool { return o.repair }

// TopClassPolicy 返回最高舱位策略.
func (o *Optimizer) TopClassPolicy() TopClassPolicy { return o.policy }

// Workers 返回逐步求解的并行度.
func (o *Optimizer) Workers() int { return o.workers }

var defaultOptimizer = NewOptimizer()

// Default 返回使用默认选项的 Optimizer.
func Default() *Optimizer {
	return defaultOptimizer
}
