// Package retry 提供带抖动的指数退避重试.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Policy 退避策略. Attempts 为总尝试次数，小于 1 时按 1 处理.
type Policy struct {
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// DefaultPolicy 返回死信写入使用的默认策略.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Initial:    50 * time.Millisecond,
		Max:        time.Second,
		Multiplier: 2,
		Jitter:     0.1,
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 标记不可重试的错误，Do 遇到后立即返回其原始错误.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do 按策略执行 fn 直至成功、遇到 Permanent 错误、次数耗尽或 ctx 结束.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	attempts := max(p.Attempts, 1)
	backoff := p.Initial

	var err error
	for i := range attempts {
		if err = fn(ctx); err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", errors.Join(ctx.Err(), err))
		case <-time.After(p.jittered(backoff)):
		}
		backoff = p.next(backoff)
	}

	return fmt.Errorf("retry failed after %d attempts: %w", attempts, err)
}

func (p Policy) next(d time.Duration) time.Duration {
	m := p.Multiplier
	if m < 1 {
		m = 1
	}
	n := time.Duration(float64(d) * m)
	if p.Max > 0 && n > p.Max {
		n = p.Max
	}
	return n
}

func (p Policy) jittered(d time.Duration) time.Duration {
	if p.Jitter <= 0 || d <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * p.Jitter * float64(d)
	return max(0, d+time.Duration(delta))
}
