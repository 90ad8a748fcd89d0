package revenue

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/revmgmt/xerrors"
)

// IterativeBookingLimits 使用默认 Optimizer 执行逐步求解.
func IterativeBookingLimits(ctx context.Context, classes FareClasses, capacity int) ([]int, error) {
	return defaultOptimizer.IterativeBookingLimits(ctx, classes, capacity)
}

// IterativeBookingLimits 对每个剩余容量 r ∈ [1, capacity] 以 r 为截断上限重算 EMSRb-MR 保护水平，
// 取保护水平有效的最大下标作为该容量下最便宜的开放舱位并计一票.
// 舱位 i 的增量订座限额即其得票数，总和恒等于 capacity.
// 适用于早期团体订座等不应修正需求预测的场景.
//
// 各容量相互独立，按步长分配给 workers 个 goroutine，每个 goroutine 独立计票后汇总.
// ctx 超时返回 ErrTimeout，被取消返回 ErrCancelled，均不返回部分结果.
func (o *Optimizer) IterativeBookingLimits(ctx context.Context, classes FareClasses, capacity int) ([]int, error) {
	if capacity <= 0 {
		return nil, xerrors.ErrCapacityRequired.Clone().WithDetail("capacity=%d", capacity)
	}
	fc, err := classes.normalize()
	if err != nil {
		return nil, err
	}

	n := fc.Len()
	workers := max(1, min(o.workers, capacity))
	tallies := make([][]int, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		tally := make([]int, n)
		tallies[w] = tally

		g.Go(func() error {
			for r := w + 1; r <= capacity; r += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				tally[o.cheapestOpen(fc, r)]++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, xerrors.FromContext(err).
			WithDetail("stepwise booking limits for capacity %d", capacity)
	}

	out := make([]int, n)
	for _, tally := range tallies {
		for i, v := range tally {
			out[i] += v
		}
	}
	return out, nil
}

// cheapestOpen 返回剩余容量为 r 时保护水平有效的最大舱位下标.
func (o *Optimizer) cheapestOpen(fc FareClasses, r int) int {
	levels := o.emsrbMR(fc, float64(r))
	for i := len(levels) - 1; i > 0; i-- {
		if levels[i].Valid {
			return i
		}
	}
	return 0
}
