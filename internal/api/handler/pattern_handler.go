package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devlpr-X/qr-attendance/internal/api/middleware"
	"github.com/devlpr-X/qr-attendance/internal/dto"
	"github.com/devlpr-X/qr-attendance/internal/service"
	"github.com/devlpr-X/qr-attendance/pkg/response"
)

// PatternHandler 排课规律模块 HTTP 处理器
type PatternHandler struct {
	patternSvc service.PatternService
	sessionSvc service.SessionService
}

// NewPatternHandler 创建 PatternHandler
func NewPatternHandler(patternSvc service.PatternService, sessionSvc service.SessionService) *PatternHandler {
	return &PatternHandler{patternSvc: patternSvc, sessionSvc: sessionSvc}
}

// CreatePattern 创建排课规律
// POST /api/v1/patterns
func (h *PatternHandler) CreatePattern(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CreatePatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 18001, "参数校验失败")
		return
	}

	resp, err := h.patternSvc.Create(c.Request.Context(), &req, caller)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}
	response.Created(c, resp)
}

// ListPatterns 排课规律列表
// GET /api/v1/patterns?semester_id=
func (h *PatternHandler) ListPatterns(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.PatternListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 18001, "semester_id 不能为空")
		return
	}

	items, err := h.patternSvc.List(c.Request.Context(), &req, caller)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}
	response.OK(c, gin.H{"list": items})
}

// GetPattern 获取排课规律
// GET /api/v1/patterns/:id
func (h *PatternHandler) GetPattern(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	resp, err := h.patternSvc.GetByID(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}
	response.OK(c, resp)
}

// DeactivatePattern 停用排课规律，已生成的课次保留
// PUT /api/v1/patterns/:id/deactivate
func (h *PatternHandler) DeactivatePattern(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	resp, err := h.patternSvc.Deactivate(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}
	response.OK(c, resp)
}

// ImportICS 从 ICS 课表导入排课规律
// POST /api/v1/patterns/import
//
// multipart/form-data：
//   - file: ICS 文件
//   - ics_url: 未上传文件时从该地址拉取（支持 webcal://）
func (h *PatternHandler) ImportICS(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.ImportPatternsRequest
	if err := c.ShouldBind(&req); err != nil {
		if middleware.IsBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBodyTooLarge, "ICS 文件过大")
			return
		}
		response.BadRequest(c, 18001, "参数校验失败")
		return
	}

	var content io.ReadCloser
	if file, _, err := c.Request.FormFile("file"); err == nil {
		content = file
	} else if req.ICSURL != "" {
		body, err := service.FetchICSContent(c.Request.Context(), req.ICSURL)
		if err != nil {
			response.BadRequest(c, 18108, err.Error())
			return
		}
		content = body
	} else {
		response.BadRequest(c, 18001, "请上传 ICS 文件或提供 ICS URL")
		return
	}
	defer content.Close()

	resp, err := h.patternSvc.ImportICS(c.Request.Context(), &req, content, caller)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}
	response.Created(c, resp)
}

// GenerateSessions 按规律生成学期内的课次，可重复调用
// POST /api/v1/patterns/:id/generate
func (h *PatternHandler) GenerateSessions(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.GenerateSessionsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 18001, "参数校验失败")
			return
		}
	}

	resp, err := h.sessionSvc.GenerateSessions(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}
	response.OK(c, resp)
}

func (h *PatternHandler) handlePatternError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrPatternNotFound):
		response.NotFound(c, 18101, "排课规律不存在")
	case errors.Is(err, service.ErrPatternConflict):
		response.Conflict(c, 18102, "排课规律已被其他操作修改，请刷新后重试")
	case errors.Is(err, service.ErrICSEmpty):
		response.BadRequest(c, 18103, "ICS 中没有可导入的每周重复课程")
	case errors.Is(err, service.ErrInvalidDayOfWeek):
		response.BadRequest(c, 18104, "星期必须在 0（周一）到 6（周日）之间")
	case errors.Is(err, service.ErrInvalidFrequency):
		response.BadRequest(c, 18105, "重复周期必须为不小于 1 的整数周")
	case errors.Is(err, service.ErrInvalidWindow):
		response.BadRequest(c, 18106, "学期结束日期早于开始日期")
	case errors.Is(err, service.ErrICSInvalid):
		response.BadRequest(c, 18107, "ICS 格式解析失败")
	case errors.Is(err, service.ErrPatternInactive):
		response.Conflict(c, 18109, "排课规律已停用，不能生成课次")
	case errors.Is(err, service.ErrSemesterMismatch):
		response.BadRequest(c, 18110, "学期与排课规律不一致")
	default:
		response.InternalError(c)
	}
}
