// Package response 提供了统一的 HTTP 响应封装，支持业务错误码映射及 gRPC 状态码转换。
package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/revmgmt/tracing"
	"github.com/wyfcoding/revmgmt/xerrors"
)

// HTTPStatusProvider 定义了能够提供 HTTP 状态码的错误接口。
type HTTPStatusProvider interface {
	HTTPStatus() int // 返回对应的 HTTP 标准状态码
}

// Body 是所有接口统一的响应体。
type Body struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	Data    any    `json:"data,omitempty"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
	Time    int64  `json:"timestamp"`
}

// Success 发送一个标准的成功响应。
// 默认：HTTP 200，业务码 0，消息 "success"。
func Success(c *gin.Context, data any) {
	SuccessWithStatus(c, http.StatusOK, data)
}

// SuccessWithStatus 发送一个带有指定 HTTP 状态码的成功响应。
func SuccessWithStatus(c *gin.Context, status int, data any) {
	c.JSON(status, Body{
		Code:    0,
		Msg:     "success",
		Data:    data,
		TraceID: tracing.GetTraceID(c.Request.Context()),
		Time:    time.Now().Unix(),
	})
}

// SuccessWithRawData 发送原始数据的成功响应 (不包装 code 和 msg)。
// 用于健康检查等系统接口。
func SuccessWithRawData(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// Error 发送错误响应。
// 优先识别 xerrors 业务错误，其次识别 gRPC Status，无法识别时返回 500。
func Error(c *gin.Context, err error) {
	if err == nil {
		Success(c, nil)
		return
	}

	statusCode := http.StatusInternalServerError
	code := statusCode
	msg := err.Error()
	detail := ""

	var xe *xerrors.Error
	var sp HTTPStatusProvider
	switch {
	case errors.As(err, &xe):
		statusCode = xe.HTTPStatus()
		code = xe.Code
		msg = xe.Message
		detail = xe.Detail
	case errors.As(err, &sp):
		statusCode = sp.HTTPStatus()
		code = statusCode
	default:
		if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
			statusCode = grpcCodeToHTTP(st.Code())
			code = statusCode
			msg = st.Message()
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(statusCode, Body{
		Code:    code,
		Msg:     msg,
		Detail:  detail,
		TraceID: tracing.GetTraceID(c.Request.Context()),
		Time:    time.Now().Unix(),
	})
}

// ErrorWithStatus 发送一个带有指定 HTTP 状态码、消息和详情的错误响应。
func ErrorWithStatus(c *gin.Context, status int, msg string, detail string) {
	c.AbortWithStatusJSON(status, Body{
		Code:    status,
		Msg:     msg,
		Detail:  detail,
		TraceID: tracing.GetTraceID(c.Request.Context()),
		Time:    time.Now().Unix(),
	})
}

// grpcCodeToHTTP 执行 gRPC 到 HTTP 的标准协议映射。
func grpcCodeToHTTP(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.Canceled:
		return 499 // Client Closed Request
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
