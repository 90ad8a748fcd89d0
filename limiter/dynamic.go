package limiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// DynamicLimiter 提供支持热更新的限流器封装，未设置底层限流器时放行所有请求。
type DynamicLimiter struct {
	value atomic.Pointer[Limiter]
}

// NewDynamicLimiter 创建动态限流器。
func NewDynamicLimiter(initial Limiter) *DynamicLimiter {
	d := &DynamicLimiter{}
	d.Update(initial)
	return d
}

// NewDynamicKeyedLimiter 创建按 key 隔离的动态限流器。
func NewDynamicKeyedLimiter(rateLimit, burst int) *DynamicLimiter {
	d := NewDynamicLimiter(nil)
	d.UpdateKeyed(rateLimit, burst)
	return d
}

// Update 替换当前限流器实例，nil 表示关闭限流。
func (d *DynamicLimiter) Update(l Limiter) {
	if d == nil {
		return
	}
	if l == nil {
		d.value.Store(nil)
		return
	}
	d.value.Store(&l)
}

// UpdateKeyed 更新为按 key 隔离的令牌桶限流器，rateLimit <= 0 表示关闭。
func (d *DynamicLimiter) UpdateKeyed(rateLimit, burst int) {
	if d == nil {
		return
	}
	if rateLimit <= 0 {
		d.Update(nil)
		return
	}
	if burst <= 0 {
		burst = rateLimit
	}
	d.Update(NewKeyedLimiter(rate.Limit(rateLimit), burst, 0))
}

// Allow 实现 Limiter 接口。
func (d *DynamicLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if d == nil {
		return true, nil
	}
	l := d.value.Load()
	if l == nil {
		return true, nil
	}
	return (*l).Allow(ctx, key)
}
