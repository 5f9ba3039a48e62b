package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/devlpr-X/qr-attendance/internal/api/middleware"
	"github.com/devlpr-X/qr-attendance/internal/dto"
	"github.com/devlpr-X/qr-attendance/pkg/response"
)

// MustGetCaller 从 Gin 上下文中提取教职工身份。
// 如果 JWT 中间件未正确注入 user_id 或 role，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetCaller(c *gin.Context) (dto.Caller, bool) {
	userID := c.GetString(middleware.CtxUserID)
	role := c.GetString(middleware.CtxRole)
	if userID == "" || role == "" {
		response.Unauthorized(c, response.CodeUnauthenticated, "未认证")
		return dto.Caller{}, false
	}
	return dto.Caller{
		UserID:    userID,
		Role:      role,
		TeacherID: c.GetString(middleware.CtxTeacherID),
	}, true
}
