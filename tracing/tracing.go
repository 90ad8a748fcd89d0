// Package tracing 封装 OpenTelemetry，统一座位控制计算链路上的 Span 属性.
package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wyfcoding/revmgmt/config"
	"github.com/wyfcoding/revmgmt/xerrors"
)

const tracerName = "github.com/wyfcoding/revmgmt"

// 计算链路上使用的 Span 属性键.
const (
	RunIDKey       = attribute.Key("revmgmt.run_id")
	LegIDKey       = attribute.Key("revmgmt.leg_id")
	MethodKey      = attribute.Key("revmgmt.method")
	CapacityKey    = attribute.Key("revmgmt.capacity")
	ClassesKey     = attribute.Key("revmgmt.classes")
	EfficientKey   = attribute.Key("revmgmt.efficient_indices")
	IncrementalKey = attribute.Key("revmgmt.incremental")
	ErrorCodeKey   = attribute.Key("revmgmt.error_code")
)

// InitTracer 安装 W3C 传播器；启用时再安装导出到 OTLP 的 TracerProvider.
// 未启用时返回空操作 shutdown，Span 照常创建但不导出.
func InitTracer(cfg config.TracingConfig) (shutdown func(context.Context) error, err error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	tp, err := newProvider(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	slog.Info("tracer provider initialized",
		"service", cfg.ServiceName,
		"endpoint", cfg.OTLPEndpoint,
		"sampler_ratio", samplerRatio(cfg.SamplerRatio),
	)
	return tp.Shutdown, nil
}

func newProvider(ctx context.Context, cfg config.TracingConfig) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(samplerRatio(cfg.SamplerRatio)))),
	), nil
}

// samplerRatio 超出 (0, 1] 的取值按全采样处理.
func samplerRatio(r float64) float64 {
	if r <= 0 || r > 1 {
		return 1
	}
	return r
}

// StartSpan 开始一个内部 Span，调用方负责 End.
//
//nolint:spancheck // 生命周期由调用方管理.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddTag 为当前 Span 追加属性，未采样时直接返回.
func AddTag(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// Ints 把 int 切片转换为属性值.
func Ints(key attribute.Key, v []int) attribute.KeyValue {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return key.Int64Slice(out)
}

// SetError 记录错误并把 Span 状态置为 Error；*xerrors.Error 额外记录业务码.
func SetError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if e, ok := xerrors.FromError(err); ok {
		span.SetAttributes(ErrorCodeKey.Int(e.Code))
	}
}

// GetTraceID 返回当前链路的 TraceID，不在链路中时为空串.
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// InjectContext 把链路上下文序列化为消息头键值对.
func InjectContext(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}
