package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/devlpr-X/qr-attendance/config"
	"github.com/devlpr-X/qr-attendance/pkg/jwt"
	"github.com/devlpr-X/qr-attendance/pkg/redis"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWTManager() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{JWTSecret: "middleware-test-secret", AccessTokenTTL: time.Minute})
}

// ── JWTAuth ──

func TestJWTAuth_Rejects(t *testing.T) {
	mgr := newJWTManager()
	cases := []struct {
		name   string
		header string
	}{
		{"缺少认证头", ""},
		{"格式错误", "Token abc"},
		{"签名无效", "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", JWTAuth(mgr), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("期望 401，实际 %d", w.Code)
			}
		})
	}
}

func TestJWTAuth_InjectsCaller(t *testing.T) {
	mgr := newJWTManager()
	token, err := mgr.GenerateAccessToken("user-1", jwt.RoleTeacher, "teacher-1", 0)
	if err != nil {
		t.Fatalf("签发 token 失败: %v", err)
	}

	var gotUser, gotRole, gotTeacher string
	r := gin.New()
	r.GET("/x", JWTAuth(mgr), func(c *gin.Context) {
		gotUser = c.GetString(CtxUserID)
		gotRole = c.GetString(CtxRole)
		gotTeacher = c.GetString(CtxTeacherID)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if gotUser != "user-1" || gotRole != jwt.RoleTeacher || gotTeacher != "teacher-1" {
		t.Errorf("上下文注入错误: %s/%s/%s", gotUser, gotRole, gotTeacher)
	}
}

// ── RoleAuth ──

func TestRoleAuth(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{jwt.RoleAdmin, http.StatusOK},
		{jwt.RoleTeacher, http.StatusOK},
		{"student", http.StatusForbidden},
		{"", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) {
			if tc.role != "" {
				c.Set(CtxRole, tc.role)
			}
			c.Next()
		}, RoleAuth(jwt.RoleAdmin, jwt.RoleTeacher), func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
		if w.Code != tc.want {
			t.Errorf("角色 %q 期望 %d，实际 %d", tc.role, tc.want, w.Code)
		}
	}
}

// ── RateLimit ──

func TestRateLimit_NilClientPasses(t *testing.T) {
	r := gin.New()
	r.POST("/scan", RateLimit(nil, 1, time.Minute, ByStudentCode), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/scan", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("第 %d 次请求期望放行，实际 %d", i+1, w.Code)
		}
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return redis.NewFromClient(rdb, "test:", zap.NewNop())
}

// newScanRouter 扫码路由：限流后处理器仍能读到学号
func newScanRouter(rdb *redis.Client, limit int) *gin.Engine {
	r := gin.New()
	r.POST("/scan", RateLimit(rdb, limit, time.Minute, ByStudentCode), func(c *gin.Context) {
		var req struct {
			StudentCode string `json:"student_code" binding:"required"`
		}
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.String(http.StatusOK, req.StudentCode)
	})
	return r
}

func postScan(r http.Handler, ip, code string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/scan", bytes.NewBufferString(fmt.Sprintf(`{"student_code":%q}`, code)))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = ip + ":40000"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_SharedIPWholeClassPasses(t *testing.T) {
	r := newScanRouter(newTestRedis(t), 30)

	rejected := 0
	for i := 0; i < 40; i++ {
		code := fmt.Sprintf("2024%04d", i)
		w := postScan(r, "10.0.0.1", code)
		switch {
		case w.Code == http.StatusTooManyRequests:
			rejected++
		case w.Code != http.StatusOK || w.Body.String() != code:
			t.Fatalf("学号 %s 期望 200 且处理器读到学号，实际 %d %q", code, w.Code, w.Body.String())
		}
	}
	if rejected != 0 {
		t.Errorf("同一出口 IP 的 40 名学生不应被限流，实际拒绝 %d 次", rejected)
	}
}

func TestRateLimit_SameStudentLimited(t *testing.T) {
	r := newScanRouter(newTestRedis(t), 3)

	for i := 1; i <= 3; i++ {
		if w := postScan(r, "10.0.0.1", "20240001"); w.Code != http.StatusOK {
			t.Fatalf("第 %d 次期望 200，实际 %d", i, w.Code)
		}
	}
	if w := postScan(r, "10.0.0.1", "20240001"); w.Code != http.StatusTooManyRequests {
		t.Errorf("同一学生超限期望 429，实际 %d", w.Code)
	}
	if w := postScan(r, "10.0.0.2", "20240001"); w.Code != http.StatusOK {
		t.Errorf("其他 IP 不受影响，期望 200，实际 %d", w.Code)
	}
}

// ── BodyLimit ──

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/x", BodyLimit(16), func(c *gin.Context) {
		var v map[string]string
		if err := c.ShouldBindJSON(&v); err != nil {
			if IsBodyTooLarge(err) {
				c.Status(http.StatusRequestEntityTooLarge)
				return
			}
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/x", bytes.NewBufferString(`{"a":"b"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("小请求体期望 200，实际 %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/x", bytes.NewBufferString(`{"a":"`+string(bytes.Repeat([]byte("x"), 64))+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("超限请求体期望 413，实际 %d", w.Code)
	}
}

// ── RequestID ──

func TestRequestID(t *testing.T) {
	var seen string
	r := gin.New()
	r.GET("/x", RequestID(), func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", "rid-123")
	r.ServeHTTP(w, req)
	if seen != "rid-123" || w.Header().Get("X-Request-ID") != "rid-123" {
		t.Errorf("应沿用请求头中的 ID，实际 %q", seen)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
	if len(w.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("缺失时应生成 UUID，实际 %q", w.Header().Get("X-Request-ID"))
	}
}
