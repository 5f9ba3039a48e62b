package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/devlpr-X/qr-attendance/pkg/metrics"
)

// Metrics 按路由模板统计请求数
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		m.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status())
	}
}
