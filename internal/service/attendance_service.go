package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devlpr-X/qr-attendance/internal/dto"
	"github.com/devlpr-X/qr-attendance/internal/model"
	"github.com/devlpr-X/qr-attendance/internal/repository"
	pkgerrors "github.com/devlpr-X/qr-attendance/pkg/errors"
	"github.com/devlpr-X/qr-attendance/pkg/geo"
	"github.com/devlpr-X/qr-attendance/pkg/metrics"
)

// ── 签到模块业务错误 ──

var (
	ErrInvalidCoordinates = errors.New("经纬度须同时提供且在有效范围内")
	ErrDeviceIDRequired   = errors.New("缺少设备 ID")
	ErrStudentNotEnrolled = errors.New("该学生未选修本课程")
)

// 扫码指标中传输层错误的标签
const (
	scanLabelInvalidInput    = "INVALID_INPUT"
	scanLabelTokenNotFound   = "TOKEN_NOT_FOUND"
	scanLabelStudentNotFound = "STUDENT_NOT_FOUND"
	scanLabelError           = "ERROR"
)

var outcomeMessages = map[model.AttendanceOutcome]string{
	model.OutcomePresent:          "签到成功",
	model.OutcomeNotEnrolled:      "您未选修本课程",
	model.OutcomeLocationRejected: "不在上课地点范围内",
	model.OutcomeDeviceMismatch:   "当前设备与首次签到设备不一致",
	model.OutcomeExpired:          "二维码已过期，请扫描最新二维码",
}

// AttendanceService 签到业务接口
type AttendanceService interface {
	// VerifyScan 校验一次扫码并写入签到结果
	// 令牌不存在、学号不存在、输入非法以错误返回；其余情况以 Outcome 返回
	VerifyScan(ctx context.Context, req *dto.ScanRequest) (*dto.ScanResponse, error)
	// MarkManual 教师手动标记到课；已有记录时原样返回，inserted=false
	MarkManual(ctx context.Context, sessionID string, req *dto.ManualMarkRequest, caller dto.Caller) (*dto.AttendanceRecordResponse, bool, error)
	ListBySession(ctx context.Context, sessionID string, caller dto.Caller) ([]dto.AttendanceRecordResponse, error)
}

// AttendanceOptions 签到服务配置
type AttendanceOptions struct {
	RequireDeviceID bool
}

type attendanceService struct {
	repo    *repository.Repository
	devices *DeviceRegistry
	opts    AttendanceOptions
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(repo *repository.Repository, devices *DeviceRegistry, opts AttendanceOptions, m *metrics.Metrics, logger *zap.Logger) AttendanceService {
	return &attendanceService{repo: repo, devices: devices, opts: opts, metrics: m, logger: logger, now: time.Now}
}

// ────────────────────── VerifyScan ──────────────────────

func (s *attendanceService) VerifyScan(ctx context.Context, req *dto.ScanRequest) (*dto.ScanResponse, error) {
	started := time.Now()
	label := scanLabelError
	defer func() { s.metrics.ObserveScan(label, time.Since(started)) }()

	// ── 0. 输入校验，不触碰任何状态 ──
	code := strings.TrimSpace(req.StudentCode)
	if code == "" {
		label = scanLabelInvalidInput
		return nil, ErrStudentCodeNeeded
	}
	point, hasPoint, err := scanPoint(req.Latitude, req.Longitude)
	if err != nil {
		label = scanLabelInvalidInput
		return nil, err
	}
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" && s.opts.RequireDeviceID {
		label = scanLabelInvalidInput
		return nil, ErrDeviceIDRequired
	}

	now := s.now()

	// ── 1. 令牌 ──
	tok, err := resolveSessionToken(ctx, s.repo, req.Token, now)
	switch {
	case errors.Is(err, ErrTokenNotFound):
		label = scanLabelTokenNotFound
		return nil, err
	case errors.Is(err, ErrTokenExpired):
		label = string(model.OutcomeExpired)
		return expiredResponse(), nil
	case err != nil:
		s.logger.Error("查询签到令牌失败", zap.Error(err))
		return nil, err
	}
	sess := tok.Session

	// ── 2. 学生 ──
	student, err := s.repo.Student.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			label = scanLabelStudentNotFound
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学生失败", zap.Error(err))
		return nil, err
	}

	rec := &model.AttendanceRecord{
		SessionID:  sess.SessionID,
		StudentID:  student.StudentID,
		Source:     model.RecordSourceScan,
		RecordedAt: now,
		DeviceID:   deviceID,
		DeviceInfo: truncate(req.DeviceInfo, 255),
	}
	if hasPoint {
		rec.Latitude = &point.Lat
		rec.Longitude = &point.Lon
	}
	guard := repository.InsertGuard{Token: tok.Token, Now: now}

	// ── 3. 选课 ──
	schoolYear, term, err := s.enrollmentTerm(ctx, sess)
	if err != nil {
		s.logger.Error("查询课次所属学期失败", zap.Error(err))
		return nil, err
	}
	enrolled, err := s.repo.Enrollment.Exists(ctx, student.StudentID, sess.CourseID, schoolYear, term)
	if err != nil {
		s.logger.Error("查询选课失败", zap.Error(err))
		return nil, err
	}
	if !enrolled {
		rec.Outcome = model.OutcomeNotEnrolled
		return s.persist(ctx, rec, guard, &label)
	}

	// ── 4. 已有记录原样返回 ──
	existing, err := s.repo.Attendance.FindBySessionAndStudent(ctx, sess.SessionID, student.StudentID)
	if err == nil {
		label = string(existing.Outcome)
		return toScanResponse(existing, true), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询签到记录失败", zap.Error(err))
		return nil, err
	}

	// ── 5. 设备 ──
	status, err := s.devices.BindOrCheck(ctx, student.StudentID, deviceID)
	if err != nil {
		s.logger.Error("设备绑定校验失败", zap.Error(err))
		return nil, err
	}
	if status == BindingMismatch {
		rec.Outcome = model.OutcomeDeviceMismatch
		return s.persist(ctx, rec, guard, &label)
	}

	// ── 6. 地理围栏 ──
	within, dist := checkGeofence(sess, point, hasPoint)
	rec.DistanceM = dist
	if !within {
		rec.Outcome = model.OutcomeLocationRejected
		return s.persist(ctx, rec, guard, &label)
	}

	// ── 7. 到课 ──
	rec.Outcome = model.OutcomePresent
	return s.persist(ctx, rec, guard, &label)
}

// persist 条件写入；并发冲突时返回先写入的记录，课次失效时按过期处理
func (s *attendanceService) persist(ctx context.Context, rec *model.AttendanceRecord, guard repository.InsertGuard, label *string) (*dto.ScanResponse, error) {
	stored, inserted, err := s.repo.Attendance.TryInsert(ctx, rec, guard)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrSessionNotLive) {
			*label = string(model.OutcomeExpired)
			return expiredResponse(), nil
		}
		s.logger.Error("写入签到记录失败",
			zap.String("session_id", rec.SessionID),
			zap.String("student_id", rec.StudentID),
			zap.Error(err),
		)
		return nil, err
	}

	*label = string(stored.Outcome)
	if inserted {
		s.logger.Info("写入签到记录",
			zap.String("session_id", stored.SessionID),
			zap.String("student_id", stored.StudentID),
			zap.String("outcome", string(stored.Outcome)),
		)
	}
	return toScanResponse(stored, !inserted), nil
}

// ────────────────────── MarkManual ──────────────────────

func (s *attendanceService) MarkManual(ctx context.Context, sessionID string, req *dto.ManualMarkRequest, caller dto.Caller) (*dto.AttendanceRecordResponse, bool, error) {
	sess, err := s.authorizedSession(ctx, sessionID, caller)
	if err != nil {
		return nil, false, err
	}
	if sess.IsCancelled {
		return nil, false, ErrSessionCancelled
	}

	code := strings.TrimSpace(req.StudentCode)
	if code == "" {
		return nil, false, ErrStudentCodeNeeded
	}
	student, err := s.repo.Student.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrStudentNotFound
		}
		return nil, false, err
	}

	schoolYear, term, err := s.enrollmentTerm(ctx, sess)
	if err != nil {
		return nil, false, err
	}
	enrolled, err := s.repo.Enrollment.Exists(ctx, student.StudentID, sess.CourseID, schoolYear, term)
	if err != nil {
		return nil, false, err
	}
	if !enrolled {
		return nil, false, ErrStudentNotEnrolled
	}

	now := s.now()
	rec := &model.AttendanceRecord{
		SessionID:  sess.SessionID,
		StudentID:  student.StudentID,
		Outcome:    model.OutcomePresent,
		Source:     model.RecordSourceManual,
		RecordedAt: now,
	}
	rec.CreatedBy = userRef(caller.UserID)
	rec.UpdatedBy = userRef(caller.UserID)

	// 手动标记只要求课次未取消，不校验令牌有效期
	stored, inserted, err := s.repo.Attendance.TryInsert(ctx, rec, repository.InsertGuard{Now: now})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrSessionNotLive) {
			return nil, false, ErrSessionCancelled
		}
		s.logger.Error("手动标记到课失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, false, err
	}
	stored.Student = student

	if inserted {
		s.logger.Info("手动标记到课",
			zap.String("session_id", sessionID),
			zap.String("student_id", student.StudentID),
			zap.String("caller", caller.UserID),
		)
	}
	return toRecordResponse(stored), inserted, nil
}

// ────────────────────── ListBySession ──────────────────────

func (s *attendanceService) ListBySession(ctx context.Context, sessionID string, caller dto.Caller) ([]dto.AttendanceRecordResponse, error) {
	if _, err := s.authorizedSession(ctx, sessionID, caller); err != nil {
		return nil, err
	}

	records, err := s.repo.Attendance.ListBySession(ctx, sessionID)
	if err != nil {
		s.logger.Error("列出签到记录失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.AttendanceRecordResponse, 0, len(records))
	for i := range records {
		result = append(result, *toRecordResponse(&records[i]))
	}
	return result, nil
}

// ────────────────────── 内部方法 ──────────────────────

func (s *attendanceService) authorizedSession(ctx context.Context, id string, caller dto.Caller) (*model.ClassSession, error) {
	sess, err := s.repo.Session.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("查询课次失败", zap.String("session_id", id), zap.Error(err))
		return nil, err
	}
	if !caller.CanActAsTeacher(sess.TeacherID) {
		return nil, ErrForbidden
	}
	return sess, nil
}

// scanPoint 经纬度须成对出现
func scanPoint(lat, lon *float64) (geo.Point, bool, error) {
	if lat == nil && lon == nil {
		return geo.Point{}, false, nil
	}
	if lat == nil || lon == nil {
		return geo.Point{}, false, ErrInvalidCoordinates
	}
	p := geo.Point{Lat: *lat, Lon: *lon}
	if !p.Valid() {
		return geo.Point{}, false, ErrInvalidCoordinates
	}
	return p, true, nil
}

// enrollmentTerm 课次所属学年与学期
// 规律生成的课次取规律所在学期；临时课次或规律已删除时按课次日期推导
func (s *attendanceService) enrollmentTerm(ctx context.Context, sess *model.ClassSession) (int, int, error) {
	if sess.PatternID != nil {
		p, err := s.repo.Pattern.GetByID(ctx, *sess.PatternID)
		switch {
		case err == nil:
			sem, err := s.repo.Semester.GetByID(ctx, p.SemesterID)
			if err == nil {
				return sem.SchoolYear, sem.Term, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, 0, err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return 0, 0, err
		}
	}
	schoolYear, term := model.TermOf(sess.SessionDate)
	return schoolYear, term, nil
}

// checkGeofence 课次无地点时直接通过；有地点但未提供坐标时不通过
func checkGeofence(sess *model.ClassSession, point geo.Point, hasPoint bool) (bool, *int) {
	if !sess.HasGeofence() {
		return true, nil
	}
	if !hasPoint {
		return false, nil
	}
	origin := geo.Point{Lat: *sess.Latitude, Lon: *sess.Longitude}
	within, dist := geo.WithinRadius(origin, *sess.RadiusM, point)
	return within, &dist
}

func expiredResponse() *dto.ScanResponse {
	return &dto.ScanResponse{
		Outcome: string(model.OutcomeExpired),
		Message: outcomeMessages[model.OutcomeExpired],
	}
}

func toScanResponse(rec *model.AttendanceRecord, replayed bool) *dto.ScanResponse {
	return &dto.ScanResponse{
		Outcome:    string(rec.Outcome),
		Message:    outcomeMessages[rec.Outcome],
		DistanceM:  rec.DistanceM,
		RecordID:   rec.RecordID,
		RecordedAt: rec.RecordedAt.Format(dto.TimeLayout),
		Replayed:   replayed,
	}
}

func toRecordResponse(rec *model.AttendanceRecord) *dto.AttendanceRecordResponse {
	resp := &dto.AttendanceRecordResponse{
		ID:         rec.RecordID,
		SessionID:  rec.SessionID,
		StudentID:  rec.StudentID,
		Outcome:    string(rec.Outcome),
		Source:     rec.Source,
		RecordedAt: rec.RecordedAt.Format(dto.TimeLayout),
		Latitude:   rec.Latitude,
		Longitude:  rec.Longitude,
		DistanceM:  rec.DistanceM,
		DeviceID:   rec.DeviceID,
	}
	if rec.Student != nil {
		resp.StudentCode = rec.Student.StudentCode
		resp.StudentName = rec.Student.FullName
	}
	return resp
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
