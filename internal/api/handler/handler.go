package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/devlpr-X/qr-attendance/internal/service"
	"github.com/devlpr-X/qr-attendance/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Pattern    *PatternHandler
	Session    *SessionHandler
	Attendance *AttendanceHandler
	Reference  *ReferenceHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Pattern:    NewPatternHandler(svc.Pattern, svc.Session),
		Session:    NewSessionHandler(svc.Session, svc.Attendance),
		Attendance: NewAttendanceHandler(svc.Session, svc.Attendance),
		Reference:  NewReferenceHandler(svc.Reference),
	}
}

// handleCommonError 处理各模块共用的权限与引用错误，已写入响应时返回 true
func handleCommonError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, response.CodeForbidden, "无权操作该课程")
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, response.CodeValidation, "日期格式错误，应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrSemesterNotFound):
		response.NotFound(c, 10101, "学期不存在")
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 10102, "课程不存在")
	case errors.Is(err, service.ErrTeacherNotFound):
		response.NotFound(c, 10103, "教师不存在")
	case errors.Is(err, service.ErrLocationNotFound):
		response.NotFound(c, 10104, "地点不存在")
	case errors.Is(err, service.ErrTimeSlotNotFound):
		response.NotFound(c, 10105, "节次不存在")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 10106, "学号不存在")
	case errors.Is(err, service.ErrStudentCodeNeeded):
		response.BadRequest(c, response.CodeValidation, "学号不能为空")
	default:
		return false
	}
	return true
}
