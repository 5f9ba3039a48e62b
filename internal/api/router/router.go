package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/devlpr-X/qr-attendance/config"
	"github.com/devlpr-X/qr-attendance/internal/api/handler"
	"github.com/devlpr-X/qr-attendance/internal/api/middleware"
	"github.com/devlpr-X/qr-attendance/pkg/jwt"
	"github.com/devlpr-X/qr-attendance/pkg/metrics"
	"github.com/devlpr-X/qr-attendance/pkg/redis"
)

const (
	jsonBodyLimit = 64 << 10 // 64KB
	icsBodyLimit  = 6 << 20  // 6MB，留出 multipart 开销
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时扫码接口不限流；扫码按 IP 与学号计数
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 仅信任配置中的反向代理，其余请求忽略 X-Forwarded-For
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Warn("trusted_proxies 配置无效，不信任任何代理", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	// ── 运维 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 学生扫码（无需认证）
		attendance := v1.Group("/attendance")
		attendance.Use(middleware.BodyLimit(jsonBodyLimit))
		{
			attendance.GET("/check", h.Attendance.CheckToken)
			attendance.POST("/scan",
				middleware.RateLimit(rdb, cfg.Attendance.ScanRateLimit, cfg.Attendance.ScanRateWindow, middleware.ByStudentCode),
				h.Attendance.Scan,
			)
		}

		// 教职工接口
		staff := v1.Group("")
		staff.Use(middleware.JWTAuth(jwtMgr))
		staff.Use(middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleTeacher))
		{
			// 学期与节次（只读）
			staff.GET("/semesters/current", h.Reference.GetCurrentSemester)
			staff.GET("/semesters/:id", h.Reference.GetSemester)
			staff.GET("/time-slots", h.Reference.ListTimeSlots)

			// 排课规律模块
			patterns := staff.Group("/patterns")
			{
				patterns.GET("", h.Pattern.ListPatterns)
				patterns.GET("/:id", h.Pattern.GetPattern)
				patterns.POST("", middleware.BodyLimit(jsonBodyLimit), h.Pattern.CreatePattern)
				patterns.PUT("/:id/deactivate", h.Pattern.DeactivatePattern)
				patterns.POST("/:id/generate", middleware.BodyLimit(jsonBodyLimit), h.Pattern.GenerateSessions)
				patterns.POST("/import", middleware.BodyLimit(icsBodyLimit), h.Pattern.ImportICS)
			}

			// 课次模块
			sessions := staff.Group("/sessions")
			sessions.Use(middleware.BodyLimit(jsonBodyLimit))
			{
				sessions.POST("", h.Session.CreateSession)
				sessions.GET("/:id", h.Session.GetSession)
				sessions.POST("/:id/token", h.Session.IssueToken)
				sessions.POST("/:id/cancel", h.Session.CancelSession)
				sessions.GET("/:id/qr", h.Session.GetQRCode)
				sessions.GET("/:id/attendance", h.Session.ListAttendance)
				sessions.POST("/:id/attendance/manual", h.Session.MarkManual)
			}
		}
	}

	return r
}
