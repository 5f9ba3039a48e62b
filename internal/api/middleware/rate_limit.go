package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/devlpr-X/qr-attendance/pkg/redis"
	"github.com/devlpr-X/qr-attendance/pkg/response"
)

// RateKeyFunc 从请求中取出限流维度，返回空串时只按客户端 IP 计数
type RateKeyFunc func(c *gin.Context) string

// ByStudentCode 以请求体中的学号细分限流维度
// 请求体经 ShouldBindBodyWith 缓存，后续处理器须以同样方式绑定
func ByStudentCode(c *gin.Context) string {
	var body struct {
		StudentCode string `json:"student_code"`
	}
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		return ""
	}
	return strings.TrimSpace(body.StudentCode)
}

// RateLimit 基于 Redis 滑动窗口的限流中间件
// 计数键为 客户端IP:路由[:keyFn 结果]；rdb 为 nil 或 Redis 出错时降级放行
func RateLimit(rdb *redis.Client, limit int, window time.Duration, keyFn RateKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("%s:%s", c.ClientIP(), c.FullPath())
		if keyFn != nil {
			if sub := keyFn(c); sub != "" {
				key += ":" + sub
			}
		}
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			response.TooManyRequests(c)
			c.Abort()
			return
		}

		c.Next()
	}
}
