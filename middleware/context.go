package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/wyfcoding/revmgmt/contextx"
	"github.com/wyfcoding/revmgmt/idgen"
	"github.com/wyfcoding/revmgmt/tracing"
)

const (
	HeaderXRequestID = "X-Request-ID"
	HeaderXTraceID   = "X-Trace-ID"
	HeaderXLegID     = "X-Leg-ID"
)

// RequestID 沿用调用方传入的请求号，缺失时生成一个，并回写到响应头.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderXRequestID)
		if id == "" {
			id = idgen.GenRequestID()
		}
		c.Header(HeaderXRequestID, id)
		c.Request = c.Request.WithContext(contextx.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// TracingMiddleware 为每个请求创建服务端 Span，skipPaths 中的探针与指标路径不采集.
func TracingMiddleware(serviceName string, skipPaths ...string) gin.HandlerFunc {
	skip := pathSet(skipPaths)
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		_, skipped := skip[r.URL.Path]
		return !skipped
	}))
}

// TraceIDHeader 把 TraceID 回写到响应头，须位于 TracingMiddleware 之后.
func TraceIDHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := tracing.GetTraceID(c.Request.Context()); id != "" {
			c.Header(HeaderXTraceID, id)
		}
		c.Next()
	}
}

// RequestContextEnricher 把客户端 IP 与 X-Leg-ID 放入请求上下文，供日志与错误响应使用.
func RequestContextEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := contextx.WithIP(c.Request.Context(), c.ClientIP())
		if leg := c.GetHeader(HeaderXLegID); leg != "" {
			ctx = contextx.WithLegID(ctx, leg)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func pathSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}
