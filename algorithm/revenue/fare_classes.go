package revenue

import (
	"math"

	algomath "github.com/wyfcoding/revmgmt/algorithm/math"
	"github.com/wyfcoding/revmgmt/xerrors"
)

// FareClasses 按票价从高到低排列的舱位集合.
// Demands 中的 NaN 表示需求未知，按 0 处理；Sigmas 为空表示确定性需求.
type FareClasses struct {
	Fares   []float64 `json:"fares"`
	Demands []float64 `json:"demands"`
	Sigmas  []float64 `json:"sigmas,omitempty"`
}

// Len 返回舱位数.
func (fc FareClasses) Len() int {
	return len(fc.Fares)
}

// normalize 在计算前完成全部入参校验，返回一份可安全读取的副本.
func (fc FareClasses) normalize() (FareClasses, error) {
	n := len(fc.Fares)
	if n == 0 {
		return FareClasses{}, xerrors.ErrEmptyFareClasses.Clone()
	}
	if len(fc.Demands) != n {
		return FareClasses{}, xerrors.ErrLengthMismatch.Clone().
			WithDetail("got %d fares and %d demands", n, len(fc.Demands))
	}
	if fc.Sigmas != nil && len(fc.Sigmas) != n {
		return FareClasses{}, xerrors.ErrLengthMismatch.Clone().
			WithDetail("got %d fares and %d sigmas", n, len(fc.Sigmas))
	}

	for i, f := range fc.Fares {
		if !algomath.IsFinite(f) || f <= 0 {
			return FareClasses{}, xerrors.ErrInvalidFare.Clone().WithDetail("fare[%d]=%v", i, f)
		}
	}
	if !algomath.IsNonIncreasing(fc.Fares) {
		return FareClasses{}, xerrors.ErrFaresNotDecreasing.Clone().WithDetail("fares=%v", fc.Fares)
	}

	out := FareClasses{
		Fares:   append([]float64(nil), fc.Fares...),
		Demands: make([]float64, n),
	}
	for i, d := range fc.Demands {
		switch {
		case math.IsNaN(d):
			out.Demands[i] = 0
		case math.IsInf(d, 0) || d < 0:
			return FareClasses{}, xerrors.ErrInvalidDemand.Clone().WithDetail("demand[%d]=%v", i, d)
		default:
			out.Demands[i] = d
		}
	}

	if fc.Sigmas != nil {
		out.Sigmas = make([]float64, n)
		for i, s := range fc.Sigmas {
			if !algomath.IsFinite(s) || s < 0 {
				return FareClasses{}, xerrors.ErrInvalidSigma.Clone().WithDetail("sigma[%d]=%v", i, s)
			}
			out.Sigmas[i] = s
		}
	}

	return out, nil
}
