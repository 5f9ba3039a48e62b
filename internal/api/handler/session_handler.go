package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devlpr-X/qr-attendance/internal/dto"
	"github.com/devlpr-X/qr-attendance/internal/service"
	"github.com/devlpr-X/qr-attendance/pkg/response"
)

// SessionHandler 课次模块 HTTP 处理器
type SessionHandler struct {
	sessionSvc    service.SessionService
	attendanceSvc service.AttendanceService
}

// NewSessionHandler 创建 SessionHandler
func NewSessionHandler(sessionSvc service.SessionService, attendanceSvc service.AttendanceService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc, attendanceSvc: attendanceSvc}
}

// CreateSession 创建临时课次（不属于任何规律）
// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 19001, "参数校验失败")
		return
	}

	resp, err := h.sessionSvc.CreateAdHoc(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	response.Created(c, resp)
}

// GetSession 获取课次详情
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	resp, err := h.sessionSvc.GetByID(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	response.OK(c, resp)
}

// IssueToken 签发新的签到令牌，旧令牌立即失效
// POST /api/v1/sessions/:id/token
func (h *SessionHandler) IssueToken(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	resp, err := h.sessionSvc.IssueToken(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	response.Created(c, resp)
}

// CancelSession 取消课次
// POST /api/v1/sessions/:id/cancel
func (h *SessionHandler) CancelSession(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	resp, err := h.sessionSvc.Cancel(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	response.OK(c, resp)
}

// GetQRCode 当前有效令牌的扫码二维码（PNG）
// GET /api/v1/sessions/:id/qr
func (h *SessionHandler) GetQRCode(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	png, err := h.sessionSvc.QRCode(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// ListAttendance 课次签到记录
// GET /api/v1/sessions/:id/attendance
func (h *SessionHandler) ListAttendance(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	items, err := h.attendanceSvc.ListBySession(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	response.OK(c, gin.H{"list": items, "total": len(items)})
}

// MarkManual 教师手动标记学生到课
// POST /api/v1/sessions/:id/attendance/manual
//
// 新建记录返回 201；学生已有记录时原样返回 200，不覆盖
func (h *SessionHandler) MarkManual(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.ManualMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 19001, "参数校验失败")
		return
	}

	rec, inserted, err := h.attendanceSvc.MarkManual(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	if inserted {
		response.Created(c, rec)
		return
	}
	response.OK(c, rec)
}

func (h *SessionHandler) handleSessionError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 19101, "课次不存在")
	case errors.Is(err, service.ErrSessionCancelled):
		response.Conflict(c, 19102, "课次已取消")
	case errors.Is(err, service.ErrNoLiveToken):
		response.Conflict(c, 19103, "课次当前没有有效的签到令牌")
	case errors.Is(err, service.ErrStudentNotEnrolled):
		response.BadRequest(c, 19104, "该学生未选修本课程")
	default:
		response.InternalError(c)
	}
}
