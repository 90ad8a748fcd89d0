package api

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/revmgmt/algorithm/revenue"
	"github.com/wyfcoding/revmgmt/inventory"
)

// LegRequest 单航段计算请求。
// 票价接受 JSON 数字或字符串，需求与标准差允许为 null，需求为 null 表示未知并按 0 处理。
type LegRequest struct {
	LegID         string            `json:"leg_id"         binding:"max=64"`
	Method        string            `json:"method"`
	FareStructure string            `json:"fare_structure"`
	Capacity      int               `json:"capacity"       binding:"gte=0"`
	Fares         []decimal.Decimal `json:"fares"          binding:"required,min=1,max=64"`
	Demands       []*float64        `json:"demands"        binding:"required,min=1,max=64"`
	Sigmas        []*float64        `json:"sigmas"         binding:"omitempty,max=64"`
}

// BatchRequest 批量计算请求。
type BatchRequest struct {
	Legs []LegRequest `json:"legs" binding:"required,min=1,max=200,dive"`
}

// ProtectionLevelsResponse 保护水平响应。
type ProtectionLevelsResponse struct {
	LegID            string         `json:"leg_id,omitempty"`
	Method           revenue.Method `json:"method"`
	Capacity         int            `json:"capacity"`
	ProtectionLevels revenue.Levels `json:"protection_levels"`
}

// BatchItem 批量计算中单个航段的结果。
type BatchItem struct {
	LegID    string                 `json:"leg_id,omitempty"`
	Controls *inventory.LegControls `json:"controls,omitempty"`
	Error    *ItemError             `json:"error,omitempty"`
}

// ItemError 批量结果中单个航段的错误。
type ItemError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

// toLegRequest 解析枚举并转换数值，method 为空时交由服务使用默认方法。
func (r LegRequest) toLegRequest() (inventory.LegRequest, error) {
	out := inventory.LegRequest{
		LegID:    r.LegID,
		Capacity: r.Capacity,
		Fares:    make([]float64, len(r.Fares)),
		Demands:  nullable(r.Demands, math.NaN()),
	}
	if r.Method != "" {
		m, err := revenue.ParseMethod(r.Method)
		if err != nil {
			return out, err
		}
		out.Method = m
	}
	fs, err := revenue.ParseFareStructure(r.FareStructure)
	if err != nil {
		return out, err
	}
	out.FareStructure = fs

	for i, f := range r.Fares {
		out.Fares[i] = f.InexactFloat64()
	}
	if r.Sigmas != nil {
		out.Sigmas = nullable(r.Sigmas, 0)
	}
	return out, nil
}

func nullable(values []*float64, missing float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = missing
			continue
		}
		out[i] = *v
	}
	return out
}
