// Package health 聚合服务依赖的健康探针，供就绪检查接口使用。
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Checker 定义健康检查函数原型。
type Checker func() error

// Status 探针状态。
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// ProbeResult 单个探针的检查结果。
type ProbeResult struct {
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency_ns"`
}

// Report 一次就绪检查的汇总结果。
type Report struct {
	Status Status        `json:"status"`
	Probes []ProbeResult `json:"probes"`
}

// Registry 按名称管理健康探针并发执行检查。
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// NewRegistry 创建探针注册表，timeout 为单次检查的整体超时，<= 0 时取 3s。
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Registry{
		checkers: make(map[string]Checker),
		timeout:  timeout,
	}
}

// Register 注册一个命名探针，同名覆盖。
func (r *Registry) Register(name string, c Checker) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = c
}

// Check 并发执行全部探针，任一失败则整体为 DOWN。
// 超时未返回的探针记为 DOWN。
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	checkers := make([]Checker, len(names))
	sort.Strings(names)
	for i, name := range names {
		checkers[i] = r.checkers[name]
	}
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := make([]ProbeResult, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = runProbe(ctx, names[i], checkers[i])
		}(i)
	}
	wg.Wait()

	report := Report{Status: StatusUp, Probes: results}
	for _, res := range results {
		if res.Status == StatusDown {
			report.Status = StatusDown
			break
		}
	}
	return report
}

func runProbe(ctx context.Context, name string, c Checker) ProbeResult {
	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- c() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("probe timed out: %w", ctx.Err())
	}

	res := ProbeResult{Name: name, Status: StatusUp, Latency: time.Since(start)}
	if err != nil {
		res.Status = StatusDown
		res.Error = err.Error()
	}
	return res
}

