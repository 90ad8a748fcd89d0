package inventory

import (
	"time"

	"github.com/wyfcoding/revmgmt/algorithm/revenue"
)

// LegRequest 单个航段的座位控制计算请求。
// Method 为零值时使用配置的默认方法。
type LegRequest struct {
	LegID         string                `json:"leg_id"`
	Method        revenue.Method        `json:"method"`
	FareStructure revenue.FareStructure `json:"fare_structure"`
	Capacity      int                   `json:"capacity"`
	Fares         []float64             `json:"fares"`
	Demands       []float64             `json:"demands"`
	Sigmas        []float64             `json:"sigmas,omitempty"`
}

func (r LegRequest) classes() revenue.FareClasses {
	return revenue.FareClasses{Fares: r.Fares, Demands: r.Demands, Sigmas: r.Sigmas}
}

// LegControls 一次计算产出的座位控制结果，也是下发到 Kafka 的消息体。
type LegControls struct {
	RunID            string         `json:"run_id"`
	LegID            string         `json:"leg_id,omitempty"`
	Method           revenue.Method `json:"method"`
	Capacity         int            `json:"capacity"`
	ProtectionLevels revenue.Levels `json:"protection_levels,omitempty"`
	Cumulative       revenue.Levels `json:"cumulative"`
	Incremental      []int          `json:"incremental"`
	ComputedAt       time.Time      `json:"computed_at"`
}

// BatchResult 批量计算中单个航段的结果，Controls 与 Err 二者有其一。
type BatchResult struct {
	Index    int
	LegID    string
	Controls *LegControls
	Err      error
}
