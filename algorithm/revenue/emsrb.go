package revenue

import (
	"math"

	algomath "github.com/wyfcoding/revmgmt/algorithm/math"
)

// EMSRb 使用默认 Optimizer 计算保护水平.
func EMSRb(fares, demands, sigmas []float64) (Levels, error) {
	return defaultOptimizer.EMSRb(fares, demands, sigmas)
}

// EMSRb 按 EMSRb 启发式计算各舱位边界的保护水平，结果首位恒为 0.
// sigmas 为空或全零时退化为确定性模型，保护水平即更高舱位的累计需求.
func (o *Optimizer) EMSRb(fares, demands, sigmas []float64) (Levels, error) {
	fc, err := FareClasses{Fares: fares, Demands: demands, Sigmas: sigmas}.normalize()
	if err != nil {
		return nil, err
	}
	return definedLevels(emsrb(fc.Fares, fc.Demands, fc.Sigmas, o.repair)), nil
}

// emsrb 核心计算. fares 可以是转换后的调整票价，不要求单调.
func emsrb(fares, demands, sigmas []float64, repair bool) []float64 {
	n := len(fares)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	if deterministic(sigmas) {
		var cum float64
		for j := 1; j < n; j++ {
			cum += demands[j-1]
			out[j] = math.RoundToEven(cum)
		}
		return out
	}

	var total float64
	for _, d := range demands {
		total += d
	}

	// S 为更高舱位累计需求，weighted 为需求加权票价和，variance 为联合方差.
	var s, weighted, variance float64
	for j := 1; j < n; j++ {
		s += demands[j-1]
		weighted += demands[j-1] * fares[j-1]
		variance += sigmas[j-1] * sigmas[j-1]

		meanFare := weighted / s
		z := algomath.NormalQuantile(1 - fares[j]/meanFare)
		y := s + z*math.Sqrt(variance)

		// 调整票价为 0 时 z 为 +Inf，此时保护全部需求.
		switch {
		case math.IsNaN(y) || y < 0:
			y = 0
		case math.IsInf(y, 1):
			y = total
		}
		out[j] = y
	}

	if repair {
		out = algomath.RunningMax(out)
	}
	for j := range out {
		out[j] = math.RoundToEven(out[j])
	}
	return out
}

func deterministic(sigmas []float64) bool {
	for _, s := range sigmas {
		if s != 0 {
			return false
		}
	}
	return true
}
