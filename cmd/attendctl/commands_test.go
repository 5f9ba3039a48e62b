package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/devlpr-X/qr-attendance/config"
	"github.com/devlpr-X/qr-attendance/pkg/jwt"
)

const (
	testUserID    = "7a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
	testTeacherID = "8b2c3d4e-5f6a-4b7c-9d8e-0f1a2b3c4d5e"
)

func TestTokenOptions_Validate(t *testing.T) {
	cases := []struct {
		name    string
		opts    tokenOptions
		wantErr bool
	}{
		{"管理员", tokenOptions{userID: testUserID, role: jwt.RoleAdmin}, false},
		{"教师", tokenOptions{userID: testUserID, role: jwt.RoleTeacher, teacherID: testTeacherID}, false},
		{"教师缺少教师ID", tokenOptions{userID: testUserID, role: jwt.RoleTeacher}, true},
		{"用户ID非uuid", tokenOptions{userID: "admin", role: jwt.RoleAdmin}, true},
		{"未知角色", tokenOptions{userID: testUserID, role: "student"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.opts.validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("期望 wantErr=%v，实际 %v", tc.wantErr, err)
			}
		})
	}
}

func TestWriteToken_RoundTrip(t *testing.T) {
	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: "attendctl-test-secret", AccessTokenTTL: time.Hour})
	var out bytes.Buffer

	err := writeToken(&out, mgr, tokenOptions{userID: testUserID, role: jwt.RoleTeacher, teacherID: testTeacherID})
	if err != nil {
		t.Fatalf("签发失败: %v", err)
	}

	claims, err := mgr.ParseToken(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("解析签发的 token 失败: %v", err)
	}
	if claims.UserID != testUserID || claims.Role != jwt.RoleTeacher || claims.TeacherID != testTeacherID {
		t.Errorf("声明不一致: %+v", claims)
	}
}

func TestWriteToken_AdminDropsTeacherID(t *testing.T) {
	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: "attendctl-test-secret", AccessTokenTTL: time.Hour})
	var out bytes.Buffer

	if err := writeToken(&out, mgr, tokenOptions{userID: testUserID, role: jwt.RoleAdmin, teacherID: testTeacherID}); err != nil {
		t.Fatalf("签发失败: %v", err)
	}
	claims, _ := mgr.ParseToken(strings.TrimSpace(out.String()))
	if claims == nil || claims.TeacherID != "" {
		t.Errorf("管理员凭证不应携带教师 ID: %+v", claims)
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"migrate", "token", "generate"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("缺少子命令 %s: %v", name, err)
		}
	}
}
