// Package contextx 提供了在 context.Context 中注入与提取请求级业务信息（请求 ID、航段 ID、计算批次 ID）的工具函数。
// 它通过使用私有类型作为 Key，有效防止了跨包的 Key 冲突。
package contextx

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	RequestIDKey contextKey = iota // 请求唯一标识 Key。
	LegIDKey                       // 航段（资源）标识 Key。
	RunIDKey                       // 单次计算的批次标识 Key。
	IPKey                          // 客户端 IP Key。
)

// KeyNames 映射 Key 到日志字段名。
var KeyNames = map[contextKey]string{
	RequestIDKey: "request_id",
	LegIDKey:     "leg_id",
	RunIDKey:     "run_id",
	IPKey:        "client_ip",
}

// AllKeys 返回所有标准业务上下文 Key，顺序固定。
var AllKeys = []contextKey{RequestIDKey, LegIDKey, RunIDKey, IPKey}

func with(ctx context.Context, key contextKey, val string) context.Context {
	return context.WithValue(ctx, key, val)
}

func get(ctx context.Context, key contextKey) string {
	if val, ok := ctx.Value(key).(string); ok {
		return val
	}
	return ""
}

// WithRequestID 将请求 ID 注入到 Context 中。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, RequestIDKey, requestID)
}

// GetRequestID 从 Context 中提取请求 ID。
func GetRequestID(ctx context.Context) string {
	return get(ctx, RequestIDKey)
}

// WithLegID 将航段 ID 注入到 Context 中。
func WithLegID(ctx context.Context, legID string) context.Context {
	return with(ctx, LegIDKey, legID)
}

// GetLegID 从 Context 中提取航段 ID。
func GetLegID(ctx context.Context) string {
	return get(ctx, LegIDKey)
}

// WithRunID 将计算批次 ID 注入到 Context 中。
func WithRunID(ctx context.Context, runID string) context.Context {
	return with(ctx, RunIDKey, runID)
}

// GetRunID 从 Context 中提取计算批次 ID。
func GetRunID(ctx context.Context) string {
	return get(ctx, RunIDKey)
}

// WithIP 将客户端 IP 地址注入到 Context 中。
func WithIP(ctx context.Context, ip string) context.Context {
	return with(ctx, IPKey, ip)
}

// GetIP 从 Context 中提取客户端 IP。
func GetIP(ctx context.Context) string {
	return get(ctx, IPKey)
}

// LogAttrs 将 Context 中已存在的业务字段转换为日志属性。
func LogAttrs(ctx context.Context) []any {
	attrs := make([]any, 0, len(AllKeys))
	for _, key := range AllKeys {
		if val := get(ctx, key); val != "" {
			attrs = append(attrs, slog.String(KeyNames[key], val))
		}
	}
	return attrs
}
