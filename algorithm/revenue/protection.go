package revenue

import (
	algomath "github.com/wyfcoding/revmgmt/algorithm/math"
	"github.com/wyfcoding/revmgmt/xerrors"
)

// ProtectionLevels 使用默认 Optimizer 计算保护水平.
func ProtectionLevels(classes FareClasses, method Method, capacity float64) (Levels, error) {
	return defaultOptimizer.ProtectionLevels(classes, method, capacity)
}

// ProtectionLevels 按方法计算保护水平.
// MethodEMSRb 忽略 capacity；MethodEMSRbMR 将 capacity 作为票价转换的截断上限，0 表示不截断.
func (o *Optimizer) ProtectionLevels(classes FareClasses, method Method, capacity float64) (Levels, error) {
	if method != MethodEMSRb && method != MethodEMSRbMR {
		return nil, xerrors.ErrUnsupportedMethod.Clone().
			WithDetail("method %s not supported for protection levels", method)
	}
	if !algomath.IsFinite(capacity) || capacity < 0 {
		return nil, xerrors.ErrInvalidCap.Clone().WithDetail("cap=%v", capacity)
	}

	fc, err := classes.normalize()
	if err != nil {
		return nil, err
	}

	if method == MethodEMSRb {
		return definedLevels(emsrb(fc.Fares, fc.Demands, fc.Sigmas, o.repair)), nil
	}
	return o.emsrbMR(fc, capacity), nil
}

// emsrbMR 在票价转换后的有效策略上运行 EMSRb，并映射回原始舱位.
// 无任何有效策略时返回全零.
func (o *Optimizer) emsrbMR(fc FareClasses, capacity float64) Levels {
	n := fc.Len()
	f := o.frontier(fc.Fares, fc.Demands, capacity)

	out := make(Levels, n)
	if len(f.Indices) == 0 {
		for i := range out {
			out[i] = Defined(0)
		}
		return out
	}

	var sigmas []float64
	if fc.Sigmas != nil {
		sigmas = make([]float64, len(f.Indices))
		for k, idx := range f.Indices {
			sigmas[k] = fc.Sigmas[idx]
		}
	}

	values := emsrb(f.AdjustedFares, f.AdjustedDemands, sigmas, o.repair)
	for k, idx := range f.Indices {
		out[idx] = Defined(values[k])
	}
	// 最高舱位被策略剔除时仍不设保护.
	if f.Indices[0] != 0 {
		out[0] = Defined(0)
	}
	return out
}
