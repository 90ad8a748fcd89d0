// Package math 提供收益管理计算所需的数值工具.
package math

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// NormalQuantile 返回标准正态分布的分位数 (逆累积分布函数).
// p 为 NaN 或超出 [0, 1] 时返回 NaN；p 为 0 或 1 时分别返回 -Inf 与 +Inf.
func NormalQuantile(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0, p > 1:
		return math.NaN()
	case p == 0:
		return math.Inf(-1)
	case p == 1:
		return math.Inf(1)
	}

	return distuv.UnitNormal.Quantile(p)
}

// CumSum 返回前缀和序列.
func CumSum(values []float64) []float64 {
	out := make([]float64, len(values))

	var acc float64
	for i, v := range values {
		acc += v
		out[i] = acc
	}

	return out
}

// IsNonIncreasing 判断序列是否非递增，空序列视为非递增.
func IsNonIncreasing(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] > values[i-1] {
			return false
		}
	}
	return true
}

// RunningMax 返回前缀最大值序列，使结果非递减.
func RunningMax(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if i > 0 {
			v = max(v, out[i-1])
		}
		out[i] = v
	}
	return out
}

// IsFinite 判断 v 是否为有限数.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
