package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/revmgmt/contextx"
	"github.com/wyfcoding/revmgmt/limiter"
	"github.com/wyfcoding/revmgmt/response"
	"github.com/wyfcoding/revmgmt/xerrors"
)

var (
	// ErrRateLimited 客户端超出限流配额.
	ErrRateLimited = xerrors.New(xerrors.ErrLimitExceeded, 429001, "too many requests", "", nil)
	// ErrRequestTimeout 请求处理超过 server.http.timeout.
	ErrRequestTimeout = xerrors.New(xerrors.ErrDeadlineExceeded, 504002, "request timeout", "", nil)
)

// Recovery 捕获处理链中的 panic，记录堆栈后返回 500.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			ctx := c.Request.Context()
			logger.With(contextx.LogAttrs(ctx)...).ErrorContext(ctx, "panic recovered",
				"panic", r,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"stack", string(debug.Stack()),
			)
			response.Error(c, xerrors.Internal("internal server error", fmt.Errorf("panic: %v", r)))
		}()
		c.Next()
	}
}

// RateLimitMiddleware 以客户端 IP 为键限流；限流器自身出错时放行并告警.
func RateLimitMiddleware(l limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := c.ClientIP()

		ok, err := l.Allow(ctx, key)
		switch {
		case err != nil:
			slog.ErrorContext(ctx, "rate limiter failed, request let through", "key", key, "error", err)
		case !ok:
			slog.WarnContext(ctx, "request rate limited", "key", key, "path", c.Request.URL.Path)
			response.Error(c, ErrRateLimited.Clone().WithDetail("client %s", key))
			return
		}
		c.Next()
	}
}

// MaxBodyBytes 拒绝声明长度超限的请求，并限制实际读取的字节数；limit <= 0 不限制.
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			response.ErrorWithStatus(c, http.StatusRequestEntityTooLarge, "request body too large",
				fmt.Sprintf("content length %d exceeds %d bytes", c.Request.ContentLength, limit))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// TimeoutMiddleware 为请求上下文设置截止时间. 计算逻辑通过 ctx 感知取消，
// 处理函数超时且尚未写出响应时返回 504.
func TimeoutMiddleware(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			response.Error(c, ErrRequestTimeout.Clone().WithDetail("exceeded %s", d))
		}
	}
}
