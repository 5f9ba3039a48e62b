package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/devlpr-X/qr-attendance/internal/dto"
	"github.com/devlpr-X/qr-attendance/internal/service"
	"github.com/devlpr-X/qr-attendance/pkg/response"
)

// AttendanceHandler 学生扫码签到 HTTP 处理器（无需教职工认证）
type AttendanceHandler struct {
	sessionSvc    service.SessionService
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(sessionSvc service.SessionService, attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{sessionSvc: sessionSvc, attendanceSvc: attendanceSvc}
}

// CheckToken 扫码页加载时查询令牌对应的课次
// GET /api/v1/attendance/check?token=
func (h *AttendanceHandler) CheckToken(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.BadRequest(c, 20001, "token 不能为空")
		return
	}

	view, err := h.sessionSvc.CheckToken(c.Request.Context(), token)
	if err != nil {
		h.handleScanError(c, err)
		return
	}
	response.OK(c, view)
}

// Scan 学生提交签到
// POST /api/v1/attendance/scan
//
// 业务判定结果（含 EXPIRED、DEVICE_MISMATCH 等）均以 200 返回，由 outcome 区分
func (h *AttendanceHandler) Scan(c *gin.Context) {
	var req dto.ScanRequest
	// 限流中间件已读取并缓存请求体
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.BadRequest(c, 20001, "参数校验失败")
		return
	}
	req.DeviceInfo = c.Request.UserAgent()

	resp, err := h.attendanceSvc.VerifyScan(c.Request.Context(), &req)
	if err != nil {
		h.handleScanError(c, err)
		return
	}
	response.OK(c, resp)
}

func (h *AttendanceHandler) handleScanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTokenNotFound):
		response.NotFound(c, 20101, "签到二维码无效")
	case errors.Is(err, service.ErrTokenExpired), errors.Is(err, service.ErrSessionCancelled):
		response.Error(c, http.StatusGone, 20102, "签到二维码已过期")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 20103, "学号不存在")
	case errors.Is(err, service.ErrStudentCodeNeeded):
		response.BadRequest(c, 20104, "学号不能为空")
	case errors.Is(err, service.ErrInvalidCoordinates):
		response.BadRequest(c, 20105, "经纬度须同时提供且在有效范围内")
	case errors.Is(err, service.ErrDeviceIDRequired):
		response.BadRequest(c, 20106, "缺少设备 ID")
	default:
		response.InternalError(c)
	}
}
