package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Auth:   AuthConfig{JWTSecret: "test-secret-key-for-unit-testing"},
		Attendance: AttendanceConfig{
			TokenTTL: 10 * time.Minute,
			Timezone: "Asia/Ulaanbaatar",
			QRSize:   256,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("合法配置不应报错: %v", err)
	}
}

func TestValidate_TrustedProxies(t *testing.T) {
	cfg := validConfig()
	cfg.Server.TrustedProxies = []string{"10.0.0.0/8", "192.168.1.10", "::1"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("合法的 IP/CIDR 不应报错: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"空密钥", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"短密钥", func(c *Config) { c.Auth.JWTSecret = "short" }},
		{"端口越界", func(c *Config) { c.Server.Port = 70000 }},
		{"令牌有效期为零", func(c *Config) { c.Attendance.TokenTTL = 0 }},
		{"未知时区", func(c *Config) { c.Attendance.Timezone = "Mars/Olympus" }},
		{"二维码过小", func(c *Config) { c.Attendance.QRSize = 10 }},
		{"代理地址无效", func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/8", "not-an-ip"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("期望校验失败")
			}
		})
	}
}

func TestLoad_DefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("QRATT_AUTH_JWT_SECRET", "env-secret-key-0123456789")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Attendance.TokenTTL != 10*time.Minute {
		t.Errorf("默认令牌有效期期望 10m，实际 %v", cfg.Attendance.TokenTTL)
	}
	if !cfg.Attendance.RequireDeviceID {
		t.Error("默认应要求设备 ID")
	}
	if len(cfg.Server.TrustedProxies) != 0 {
		t.Errorf("默认不应信任任何代理，实际 %v", cfg.Server.TrustedProxies)
	}
	if cfg.Attendance.ScanRateLimit != 10 {
		t.Errorf("默认扫码限流期望 10，实际 %d", cfg.Attendance.ScanRateLimit)
	}
	if cfg.Redis.KeyPrefix != "qratt:" {
		t.Errorf("默认 key 前缀期望 qratt:，实际 %s", cfg.Redis.KeyPrefix)
	}
}
