package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/devlpr-X/qr-attendance/internal/service"
	"github.com/devlpr-X/qr-attendance/pkg/response"
)

// ReferenceHandler 学期与节次只读查询
type ReferenceHandler struct {
	referenceSvc service.ReferenceService
}

// NewReferenceHandler 创建 ReferenceHandler
func NewReferenceHandler(referenceSvc service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{referenceSvc: referenceSvc}
}

// GetCurrentSemester 获取当前学期
// GET /api/v1/semesters/current
func (h *ReferenceHandler) GetCurrentSemester(c *gin.Context) {
	semester, err := h.referenceSvc.GetCurrentSemester(c.Request.Context())
	if err != nil {
		h.handleReferenceError(c, err)
		return
	}
	response.OK(c, semester)
}

// GetSemester 获取学期详情
// GET /api/v1/semesters/:id
func (h *ReferenceHandler) GetSemester(c *gin.Context) {
	semester, err := h.referenceSvc.GetSemester(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleReferenceError(c, err)
		return
	}
	response.OK(c, semester)
}

// ListTimeSlots 启用中的节次
// GET /api/v1/time-slots
func (h *ReferenceHandler) ListTimeSlots(c *gin.Context) {
	slots, err := h.referenceSvc.ListTimeSlots(c.Request.Context())
	if err != nil {
		h.handleReferenceError(c, err)
		return
	}
	response.OK(c, gin.H{"list": slots})
}

func (h *ReferenceHandler) handleReferenceError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrNoCurrentSemester):
		response.NotFound(c, 10107, "当前没有启用的学期")
	default:
		response.InternalError(c)
	}
}
