package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/devlpr-X/qr-attendance/config"
	"github.com/devlpr-X/qr-attendance/internal/repository"
	"github.com/devlpr-X/qr-attendance/pkg/metrics"
)

// ── 跨模块业务错误 ──

var (
	ErrForbidden         = errors.New("无权操作该课程")
	ErrInvalidDate       = errors.New("日期格式错误，应为 YYYY-MM-DD")
	ErrSemesterNotFound  = errors.New("学期不存在")
	ErrCourseNotFound    = errors.New("课程不存在")
	ErrTeacherNotFound   = errors.New("教师不存在")
	ErrLocationNotFound  = errors.New("地点不存在")
	ErrTimeSlotNotFound  = errors.New("节次不存在")
	ErrStudentNotFound   = errors.New("学号不存在")
	ErrStudentCodeNeeded = errors.New("学号不能为空")
)

// Service 所有 Service 的聚合入口
type Service struct {
	Pattern    PatternService
	Session    SessionService
	Attendance AttendanceService
	Reference  ReferenceService
}

// NewService 创建 Service 聚合
// cache 为 nil 时设备绑定只走数据库
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	cache BindingCache,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	loc, err := cfg.Attendance.Location()
	if err != nil {
		logger.Warn("学校时区无效，回退 UTC", zap.String("timezone", cfg.Attendance.Timezone), zap.Error(err))
		loc = time.UTC
	}

	devices := NewDeviceRegistry(repo, cache, logger)

	return &Service{
		Pattern: NewPatternService(repo, loc, logger),
		Session: NewSessionService(repo, SessionOptions{
			TokenTTL: cfg.Attendance.TokenTTL,
			BaseURL:  cfg.Server.BaseURL,
			QRSize:   cfg.Attendance.QRSize,
			Location: loc,
		}, m, logger),
		Attendance: NewAttendanceService(repo, devices, AttendanceOptions{
			RequireDeviceID: cfg.Attendance.RequireDeviceID,
		}, m, logger),
		Reference: NewReferenceService(repo, logger),
	}
}

// userRef 审计字段为 uuid 列，空调用者写入 NULL
func userRef(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
