package revenue

import (
	"context"
	"math"

	"github.com/wyfcoding/revmgmt/xerrors"
)

// BookingLimits 订座限额.
// Cumulative 为舱位 i 及更便宜舱位可售座位数，Incremental 为仅分配给舱位 i 的座位数.
type BookingLimits struct {
	Method           Method `json:"method"`
	Capacity         int    `json:"capacity"`
	ProtectionLevels Levels `json:"protection_levels,omitempty"`
	Cumulative       Levels `json:"cumulative"`
	Incremental      []int  `json:"incremental"`
}

// CumulativeBookingLimits 将保护水平换算为累计订座限额.
// 保护水平全部为 0 时，整个容量放在下标 0 的唯一开放桶中，其余为 0.
func CumulativeBookingLimits(levels Levels, capacity int) (Levels, error) {
	if capacity <= 0 {
		return nil, xerrors.ErrCapacityRequired.Clone().WithDetail("capacity=%d", capacity)
	}
	return cumulativeBookingLimits(levels, capacity), nil
}

func cumulativeBookingLimits(levels Levels, capacity int) Levels {
	out := make(Levels, len(levels))
	c := float64(capacity)

	if levels.allZero() {
		out[0] = Defined(c)
		for i := 1; i < len(out); i++ {
			out[i] = Defined(0)
		}
		return out
	}

	for i, l := range levels {
		if l.Valid {
			out[i] = Defined(max(0, c-l.Value))
		}
	}
	return out
}

// IncrementalBookingLimits 将累计订座限额换算为增量订座限额.
// 相邻有效位置相减，最后一个有效位置取其自身，不适用位置为 0.
func IncrementalBookingLimits(cumulative Levels) []int {
	out := make([]int, len(cumulative))

	var next float64
	for i := len(cumulative) - 1; i >= 0; i-- {
		l := cumulative[i]
		if !l.Valid {
			continue
		}
		out[i] = int(math.Round(l.Value - next))
		next = l.Value
	}
	return out
}

// BookingLimitsFor 使用默认 Optimizer 计算订座限额.
func BookingLimitsFor(ctx context.Context, classes FareClasses, method Method, capacity int) (*BookingLimits, error) {
	return defaultOptimizer.BookingLimits(ctx, classes, method, capacity)
}

// BookingLimits 按方法计算订座限额，capacity 必须为正整数.
// MethodEMSRbMRStep 的累计限额由增量限额的后缀和得到，不返回保护水平.
func (o *Optimizer) BookingLimits(ctx context.Context, classes FareClasses, method Method, capacity int) (*BookingLimits, error) {
	if capacity <= 0 {
		return nil, xerrors.ErrCapacityRequired.Clone().WithDetail("capacity=%d", capacity)
	}

	switch method {
	case MethodEMSRbMRStep:
		incremental, err := o.IterativeBookingLimits(ctx, classes, capacity)
		if err != nil {
			return nil, err
		}
		cumulative := make(Levels, len(incremental))
		var acc int
		for i := len(incremental) - 1; i >= 0; i-- {
			acc += incremental[i]
			cumulative[i] = Defined(float64(acc))
		}
		return &BookingLimits{
			Method:      method,
			Capacity:    capacity,
			Cumulative:  cumulative,
			Incremental: incremental,
		}, nil

	case MethodEMSRb, MethodEMSRbMR:
		levels, err := o.ProtectionLevels(classes, method, float64(capacity))
		if err != nil {
			return nil, err
		}
		cumulative := cumulativeBookingLimits(levels, capacity)
		return &BookingLimits{
			Method:           method,
			Capacity:         capacity,
			ProtectionLevels: levels,
			Cumulative:       cumulative,
			Incremental:      IncrementalBookingLimits(cumulative),
		}, nil

	default:
		return nil, xerrors.ErrUnsupportedMethod.Clone().WithDetail("method %s", method)
	}
}
