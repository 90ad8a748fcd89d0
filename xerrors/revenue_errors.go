package xerrors

import (
	"context"
	"errors"
)

// 收益管理计算相关的预定义错误。
// 均为共享值，调用方附加细节前需先 Clone。
var (
	// ErrEmptyFareClasses 未提供任何舱位。
	ErrEmptyFareClasses = New(ErrInvalidArg, 400101, "empty fare classes", "at least one fare class is required", nil)
	// ErrLengthMismatch 票价、需求与标准差长度不一致。
	ErrLengthMismatch = New(ErrInvalidArg, 400102, "length mismatch", "fares, demands and sigmas must have the same length", nil)
	// ErrFaresNotDecreasing 票价未按非递增顺序给出。
	ErrFaresNotDecreasing = New(ErrInvalidArg, 400103, "fares must be provided in decreasing order", "", nil)
	// ErrInvalidFare 票价必须为有限正数。
	ErrInvalidFare = New(ErrInvalidArg, 400104, "invalid fare", "fares must be positive and finite", nil)
	// ErrInvalidDemand 需求必须为有限非负数。
	ErrInvalidDemand = New(ErrInvalidArg, 400105, "invalid demand", "demands must be non-negative and finite", nil)
	// ErrInvalidSigma 标准差必须为有限非负数。
	ErrInvalidSigma = New(ErrInvalidArg, 400106, "invalid sigma", "sigmas must be non-negative and finite", nil)
	// ErrUnsupportedMethod 不支持的优化方法。
	ErrUnsupportedMethod = New(ErrInvalidArg, 400107, "method not supported", "supported: EMSRb, EMSRb_MR, EMSRb_MR_step", nil)
	// ErrUnsupportedFareStructure 不支持的票价结构。
	ErrUnsupportedFareStructure = New(ErrInvalidArg, 400108, "fare structure not supported", "only undifferentiated fare structures are supported", nil)
	// ErrCapacityRequired 计算订座限额时必须给出正整数容量。
	ErrCapacityRequired = New(ErrInvalidArg, 400109, "capacity required", "capacity must be a positive integer", nil)
	// ErrInvalidCap 票价转换的容量上限不能为负。
	ErrInvalidCap = New(ErrInvalidArg, 400110, "invalid cap", "cap must be non-negative and finite", nil)
	// ErrCapacityTooLarge 容量超过配置上限。
	ErrCapacityTooLarge = New(ErrInvalidArg, 400111, "capacity too large", "", nil)
	// ErrTimeout 计算超时。
	ErrTimeout = New(ErrDeadlineExceeded, 504001, "computation timed out", "", nil)
	// ErrCancelled 调用方取消了计算。
	ErrCancelled = New(ErrCanceled, 499001, "computation cancelled", "", nil)
	// ErrPublishUnavailable 控制结果下发通道不可用。
	ErrPublishUnavailable = New(ErrUnavailable, 503001, "controls publisher unavailable", "", nil)
)

// FromContext 将 ctx.Err() 映射为超时或取消错误，并保留原始错误作为 Cause.
func FromContext(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.Clone().WithCause(err)
	}
	return ErrCancelled.Clone().WithCause(err)
}
