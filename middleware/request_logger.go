package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/revmgmt/contextx"
	"github.com/wyfcoding/revmgmt/tracing"
)

// Logger 访问日志中间件，按状态码选择日志级别。
func Logger(logger *slog.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if _, ok := skip[path]; ok {
			return
		}

		ctx := c.Request.Context()
		status := c.Writer.Status()
		args := []any{
			"trace_id", tracing.GetTraceID(ctx),
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"cost", time.Since(start),
			"user_agent", c.Request.UserAgent(),
		}
		args = append(args, contextx.LogAttrs(ctx)...)
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.Last().Error())
		}

		switch {
		case status >= 500:
			logger.ErrorContext(ctx, "HTTP Request", args...)
		case status >= 400:
			logger.WarnContext(ctx, "HTTP Request", args...)
		default:
			logger.InfoContext(ctx, "HTTP Request", args...)
		}
	}
}
