package revenue

import (
	algomath "github.com/wyfcoding/revmgmt/algorithm/math"
	"github.com/wyfcoding/revmgmt/xerrors"
)

// inefficientFare 标记无效策略的调整票价.
const inefficientFare = -1.0

// TransformOption 票价转换的可选参数.
type TransformOption func(*transformOptions)

type transformOptions struct {
	capacity  float64
	structure FareStructure
}

// WithCap 将累计需求截断到容量 c，0 表示不截断.
func WithCap(c float64) TransformOption {
	return func(o *transformOptions) {
		o.capacity = c
	}
}

// WithFareStructure 指定票价结构，默认 undifferentiated.
func WithFareStructure(fs FareStructure) TransformOption {
	return func(o *transformOptions) {
		o.structure = fs
	}
}

// Frontier 有效策略集合，所有切片与 Indices 一一对应.
type Frontier struct {
	Indices         []int     // 有效策略对应的原始舱位下标
	AdjustedFares   []float64 // 边际收益 (调整票价)
	AdjustedDemands []float64 // 调整需求
	Cumulative      []float64 // 累计需求 Q
	Revenues        []float64 // 总收益 TR
}

// Transformation 票价转换结果，均按原始舱位对齐，被剔除的舱位为不适用.
type Transformation struct {
	AdjustedFares   Levels `json:"adjusted_fares"`
	AdjustedDemands Levels `json:"adjusted_demands"`
	Cumulative      Levels `json:"cumulative_demands"`
	Revenues        Levels `json:"total_revenues"`
	Efficient       []int  `json:"efficient_indices"`
}

// Transform 使用默认 Optimizer 执行票价转换.
func Transform(fares, demands []float64, opts ...TransformOption) (*Transformation, error) {
	return defaultOptimizer.Transform(fares, demands, opts...)
}

// Transform 将无差异化票价结构转换为嵌套的有效前沿 (Fiig et al., 2010).
func (o *Optimizer) Transform(fares, demands []float64, opts ...TransformOption) (*Transformation, error) {
	to := transformOptions{structure: FareStructureUndifferentiated}
	for _, opt := range opts {
		opt(&to)
	}

	switch to.structure {
	case FareStructureUndifferentiated:
	case FareStructureDifferentiated:
		return nil, xerrors.ErrUnsupportedFareStructure.Clone().WithDetail("fare structure %q", to.structure.String())
	default:
		return nil, xerrors.ErrUnsupportedFareStructure.Clone().WithDetail("unknown fare structure %d", int(to.structure))
	}
	if !algomath.IsFinite(to.capacity) || to.capacity < 0 {
		return nil, xerrors.ErrInvalidCap.Clone().WithDetail("cap=%v", to.capacity)
	}

	fc, err := FareClasses{Fares: fares, Demands: demands}.normalize()
	if err != nil {
		return nil, err
	}

	f := o.frontier(fc.Fares, fc.Demands, to.capacity)
	n := fc.Len()
	t := &Transformation{
		AdjustedFares:   make(Levels, n),
		AdjustedDemands: make(Levels, n),
		Cumulative:      make(Levels, n),
		Revenues:        make(Levels, n),
		Efficient:       f.Indices,
	}
	for k, idx := range f.Indices {
		t.AdjustedFares[idx] = Defined(f.AdjustedFares[k])
		t.AdjustedDemands[idx] = Defined(f.AdjustedDemands[k])
		t.Cumulative[idx] = Defined(f.Cumulative[k])
		t.Revenues[idx] = Defined(f.Revenues[k])
	}

	return t, nil
}

// frontier 计算累计需求与总收益后剔除无效策略，入参须已校验.
func (o *Optimizer) frontier(fares, demands []float64, capacity float64) Frontier {
	q := algomath.CumSum(demands)
	if capacity > 0 {
		for i := range q {
			q[i] = min(q[i], capacity)
		}
	}

	tr := make([]float64, len(q))
	for i := range q {
		tr[i] = fares[i] * q[i]
	}

	return EfficientStrategies(q, tr, fares[0], o.policy)
}

// EfficientStrategies 反复剔除边际收益为负的策略，直到剩余策略集合不再变化.
// q 与 tr 分别为累计需求与总收益，topFare 为最高舱位原始票价.
// 每轮剩余集合严格缩小，至多 len(q) 轮收敛.
func EfficientStrategies(q, tr []float64, topFare float64, policy TopClassPolicy) Frontier {
	n := min(len(q), len(tr))
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	for {
		fares, demands := marginals(q, tr, indices, topFare, policy)

		kept := make([]int, 0, len(indices))
		for k, idx := range indices {
			if fares[k] >= 0 {
				kept = append(kept, idx)
			}
		}

		if len(kept) == len(indices) {
			f := Frontier{
				Indices:         indices,
				AdjustedFares:   fares,
				AdjustedDemands: demands,
				Cumulative:      make([]float64, len(indices)),
				Revenues:        make([]float64, len(indices)),
			}
			for k, idx := range indices {
				f.Cumulative[k] = q[idx]
				f.Revenues[k] = tr[idx]
			}
			return f
		}

		indices = kept
	}
}

// marginals 在给定下标子集上计算调整票价与调整需求.
func marginals(q, tr []float64, indices []int, topFare float64, policy TopClassPolicy) (fares, demands []float64) {
	fares = make([]float64, len(indices))
	demands = make([]float64, len(indices))

	var prevQ, prevTR float64
	for k, idx := range indices {
		d := q[idx] - prevQ
		demands[k] = d

		switch {
		case d != 0:
			fares[k] = (tr[idx] - prevTR) / d
		case k == 0 && policy == ForceTopFare:
			fares[k] = topFare
		default:
			fares[k] = inefficientFare
		}

		prevQ, prevTR = q[idx], tr[idx]
	}

	return fares, demands
}
