// Package api 提供座位控制计算的 HTTP 接口。
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/wyfcoding/revmgmt/health"
	"github.com/wyfcoding/revmgmt/inventory"
	"github.com/wyfcoding/revmgmt/response"
	"github.com/wyfcoding/revmgmt/xerrors"
)

// Handler 座位控制接口处理器。
type Handler struct {
	svc     *inventory.Service
	checks  *health.Registry
	service string
}

// NewHandler 创建处理器，checks 为 nil 时就绪检查恒为 UP。
func NewHandler(svc *inventory.Service, checks *health.Registry, service string) *Handler {
	if checks == nil {
		checks = health.NewRegistry(0)
	}
	return &Handler{svc: svc, checks: checks, service: service}
}

// Register 注册全部路由。
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	v1 := r.Group("/v1")
	v1.POST("/transformations", h.Transform)
	v1.POST("/protection-levels", h.ProtectionLevels)
	v1.POST("/booking-limits", h.BookingLimits)
	v1.POST("/booking-limits/batch", h.BookingLimitsBatch)
}

// Healthz 存活检查。
func (h *Handler) Healthz(c *gin.Context) {
	response.SuccessWithRawData(c, http.StatusOK, gin.H{
		"status":    health.StatusUp,
		"service":   h.service,
		"timestamp": time.Now().Unix(),
	})
}

// Readyz 就绪检查，任一探针失败返回 503。
func (h *Handler) Readyz(c *gin.Context) {
	report := h.checks.Check(c.Request.Context())
	status := http.StatusOK
	if report.Status != health.StatusUp {
		status = http.StatusServiceUnavailable
	}
	response.SuccessWithRawData(c, status, report)
}

// Transform 票价转换。
func (h *Handler) Transform(c *gin.Context) {
	req, ok := bindLeg(c)
	if !ok {
		return
	}
	t, err := h.svc.Transform(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, t)
}

// ProtectionLevels 计算保护水平。
func (h *Handler) ProtectionLevels(c *gin.Context) {
	req, ok := bindLeg(c)
	if !ok {
		return
	}
	levels, err := h.svc.ProtectionLevels(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	method := req.Method
	if method == 0 {
		method = h.svc.DefaultMethod()
	}
	response.Success(c, ProtectionLevelsResponse{
		LegID:            req.LegID,
		Method:           method,
		Capacity:         req.Capacity,
		ProtectionLevels: levels,
	})
}

// BookingLimits 计算单航段订座限额。
func (h *Handler) BookingLimits(c *gin.Context) {
	req, ok := bindLeg(c)
	if !ok {
		return
	}
	controls, err := h.svc.Compute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, controls)
}

// BookingLimitsBatch 批量计算订座限额，单个航段失败在对应条目中返回。
func (h *Handler) BookingLimitsBatch(c *gin.Context) {
	var body BatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, bindError(err))
		return
	}

	items := make([]BatchItem, len(body.Legs))
	reqs := make([]inventory.LegRequest, 0, len(body.Legs))
	pos := make([]int, 0, len(body.Legs))
	for i, leg := range body.Legs {
		items[i].LegID = leg.LegID
		req, err := leg.toLegRequest()
		if err != nil {
			items[i].Error = itemError(err)
			continue
		}
		reqs = append(reqs, req)
		pos = append(pos, i)
	}

	for _, r := range h.svc.ComputeBatch(c.Request.Context(), reqs) {
		i := pos[r.Index]
		if r.Err != nil {
			items[i].Error = itemError(r.Err)
			continue
		}
		items[i].Controls = r.Controls
	}
	response.Success(c, items)
}

func bindLeg(c *gin.Context) (inventory.LegRequest, bool) {
	var body LegRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, bindError(err))
		return inventory.LegRequest{}, false
	}
	req, err := body.toLegRequest()
	if err != nil {
		response.Error(c, err)
		return inventory.LegRequest{}, false
	}
	return req, true
}

// bindError 将绑定与校验错误转换为参数错误，已是业务错误时原样返回。
func bindError(err error) error {
	if _, ok := xerrors.FromError(err); ok {
		return err
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
		}
		return xerrors.InvalidArg("invalid request").WithDetail("%s", strings.Join(fields, "; "))
	}
	return xerrors.InvalidArg("malformed request body").WithCause(err)
}

func itemError(err error) *ItemError {
	if xe, ok := xerrors.FromError(err); ok {
		return &ItemError{Code: xe.Code, Msg: xe.Message, Detail: xe.Detail}
	}
	return &ItemError{Code: http.StatusInternalServerError, Msg: err.Error()}
}
