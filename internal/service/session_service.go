package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devlpr-X/qr-attendance/internal/dto"
	"github.com/devlpr-X/qr-attendance/internal/model"
	"github.com/devlpr-X/qr-attendance/internal/repository"
	pkgerrors "github.com/devlpr-X/qr-attendance/pkg/errors"
	"github.com/devlpr-X/qr-attendance/pkg/metrics"
)

// ── 课次模块业务错误 ──

var (
	ErrSessionNotFound  = errors.New("课次不存在")
	ErrSessionCancelled = errors.New("课次已取消")
	ErrTokenNotFound    = errors.New("签到令牌不存在")
	ErrTokenExpired     = errors.New("签到令牌已过期")
	ErrNoLiveToken      = errors.New("课次当前没有有效的签到令牌")
	ErrPatternInactive  = errors.New("排课规律已停用，不能生成课次")
	ErrSemesterMismatch = errors.New("学期与排课规律不一致")
	ErrTokenGeneration  = errors.New("生成签到令牌失败")
	ErrQRCodeGeneration = errors.New("生成二维码失败")
)

// tokenBytes 令牌熵（32 字节，base64url 编码后 43 字符）
const tokenBytes = 32

// SessionService 课次业务接口
type SessionService interface {
	// GenerateSessions 按排课规律展开学期内的课次，已存在的日期不重复创建
	GenerateSessions(ctx context.Context, patternID string, req *dto.GenerateSessionsRequest, caller dto.Caller) (*dto.GenerateSessionsResponse, error)
	CreateAdHoc(ctx context.Context, req *dto.CreateSessionRequest, caller dto.Caller) (*dto.SessionResponse, error)
	GetByID(ctx context.Context, id string, caller dto.Caller) (*dto.SessionResponse, error)
	// IssueToken 签发新令牌，同一课次的旧令牌全部作废
	IssueToken(ctx context.Context, id string, caller dto.Caller) (*dto.IssueTokenResponse, error)
	Cancel(ctx context.Context, id string, caller dto.Caller) (*dto.SessionResponse, error)
	// CheckToken 扫码页展示课次信息
	CheckToken(ctx context.Context, token string) (*dto.SessionView, error)
	// QRCode 当前有效令牌的扫码地址二维码（PNG）
	QRCode(ctx context.Context, id string, caller dto.Caller) ([]byte, error)
}

// SessionOptions 课次服务配置
type SessionOptions struct {
	TokenTTL time.Duration
	BaseURL  string
	QRSize   int
	Location *time.Location // 学校时区，用于"今天"
}

type sessionService struct {
	repo    *repository.Repository
	opts    SessionOptions
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewSessionService 创建 SessionService 实例
func NewSessionService(repo *repository.Repository, opts SessionOptions, m *metrics.Metrics, logger *zap.Logger) SessionService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &sessionService{repo: repo, opts: opts, metrics: m, logger: logger, now: time.Now}
}

// ────────────────────── GenerateSessions ──────────────────────

func (s *sessionService) GenerateSessions(ctx context.Context, patternID string, req *dto.GenerateSessionsRequest, caller dto.Caller) (*dto.GenerateSessionsResponse, error) {
	p, err := s.repo.Pattern.GetByID(ctx, patternID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPatternNotFound
		}
		s.logger.Error("查询排课规律失败", zap.String("pattern_id", patternID), zap.Error(err))
		return nil, err
	}
	if !caller.CanActAsTeacher(p.TeacherID) {
		return nil, ErrForbidden
	}
	if !p.IsActive {
		return nil, ErrPatternInactive
	}

	semesterID := p.SemesterID
	if req != nil && req.SemesterID != "" {
		if req.SemesterID != p.SemesterID {
			return nil, ErrSemesterMismatch
		}
		semesterID = req.SemesterID
	}
	sem, err := s.repo.Semester.GetByID(ctx, semesterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSemesterNotFound
		}
		s.logger.Error("查询学期失败", zap.String("semester_id", semesterID), zap.Error(err))
		return nil, err
	}

	dates, err := ExpandDates(RecurrenceOf(p), sem.StartDate, sem.EndDate)
	if err != nil {
		return nil, err
	}

	resp := &dto.GenerateSessionsResponse{
		PatternID:  p.PatternID,
		SemesterID: sem.SemesterID,
		Errors:     []string{},
	}
	for d := range dates {
		resp.TotalDates++

		sess := &model.ClassSession{
			PatternID:   &p.PatternID,
			CourseID:    p.CourseID,
			TeacherID:   p.TeacherID,
			TimeSlotID:  &p.TimeSlotID,
			SessionDate: d,
		}
		sess.SnapshotLocation(p.Location)
		sess.CreatedBy = userRef(caller.UserID)
		sess.UpdatedBy = userRef(caller.UserID)

		inserted, err := s.repo.Session.UpsertForPattern(ctx, sess)
		if err != nil {
			s.logger.Error("写入课次失败",
				zap.String("pattern_id", p.PatternID),
				zap.String("date", d.Format(model.DateLayout)),
				zap.Error(err),
			)
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: 写入课次失败", d.Format(model.DateLayout)))
			continue
		}
		if inserted {
			resp.CreatedCount++
		}
	}

	s.metrics.AddSessionsGenerated(resp.CreatedCount)
	s.logger.Info("按规律生成课次",
		zap.String("pattern_id", p.PatternID),
		zap.String("semester_id", sem.SemesterID),
		zap.Int("created", resp.CreatedCount),
		zap.Int("total", resp.TotalDates),
		zap.Int("errors", len(resp.Errors)),
	)
	return resp, nil
}

// ────────────────────── CreateAdHoc ──────────────────────

func (s *sessionService) CreateAdHoc(ctx context.Context, req *dto.CreateSessionRequest, caller dto.Caller) (*dto.SessionResponse, error) {
	if !caller.CanActAsTeacher(req.TeacherID) {
		return nil, ErrForbidden
	}

	date := model.CivilDate(s.now().In(s.opts.Location))
	if req.SessionDate != "" {
		d, err := model.ParseDate(req.SessionDate)
		if err != nil {
			return nil, ErrInvalidDate
		}
		date = d
	}

	course, err := s.repo.Course.GetByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	if _, err := s.repo.Teacher.GetByID(ctx, req.TeacherID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeacherNotFound
		}
		return nil, err
	}

	sess := &model.ClassSession{
		CourseID:    req.CourseID,
		TeacherID:   req.TeacherID,
		SessionDate: date,
	}
	if req.TimeSlotID != nil {
		if _, err := s.repo.TimeSlot.GetByID(ctx, *req.TimeSlotID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTimeSlotNotFound
			}
			return nil, err
		}
		sess.TimeSlotID = req.TimeSlotID
	}
	if req.LocationID != nil {
		loc, err := s.repo.Location.GetByID(ctx, *req.LocationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrLocationNotFound
			}
			return nil, err
		}
		sess.SnapshotLocation(loc)
	}
	sess.CreatedBy = userRef(caller.UserID)
	sess.UpdatedBy = userRef(caller.UserID)

	if err := s.repo.Session.Create(ctx, sess); err != nil {
		s.logger.Error("创建临时课次失败", zap.String("course_id", req.CourseID), zap.Error(err))
		return nil, err
	}
	sess.Course = course

	s.logger.Info("创建临时课次",
		zap.String("session_id", sess.SessionID),
		zap.String("date", date.Format(model.DateLayout)),
		zap.String("caller", caller.UserID),
	)
	return toSessionResponse(sess), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *sessionService) GetByID(ctx context.Context, id string, caller dto.Caller) (*dto.SessionResponse, error) {
	sess, err := s.authorizedSession(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(sess), nil
}

// ────────────────────── IssueToken ──────────────────────

func (s *sessionService) IssueToken(ctx context.Context, id string, caller dto.Caller) (*dto.IssueTokenResponse, error) {
	sess, err := s.authorizedSession(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if sess.IsCancelled {
		return nil, ErrSessionCancelled
	}

	token, err := newSessionToken()
	if err != nil {
		s.logger.Error("读取随机数失败", zap.Error(err))
		return nil, ErrTokenGeneration
	}

	now := s.now()
	tok := &model.SessionToken{
		Token:     token,
		SessionID: sess.SessionID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.opts.TokenTTL),
	}
	if err := s.repo.Session.RotateToken(ctx, tok); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrSessionNotFound
		case errors.Is(err, pkgerrors.ErrSessionCancelled):
			return nil, ErrSessionCancelled
		}
		s.logger.Error("签发签到令牌失败", zap.String("session_id", id), zap.Error(err))
		return nil, err
	}

	s.metrics.IncTokensIssued()
	s.logger.Info("签发签到令牌",
		zap.String("session_id", sess.SessionID),
		zap.Time("expires_at", tok.ExpiresAt),
		zap.String("caller", caller.UserID),
	)
	return &dto.IssueTokenResponse{
		SessionID: sess.SessionID,
		Token:     token,
		ExpiresAt: tok.ExpiresAt.Format(dto.TimeLayout),
		ScanURL:   s.scanURL(token),
	}, nil
}

// ────────────────────── Cancel ──────────────────────

func (s *sessionService) Cancel(ctx context.Context, id string, caller dto.Caller) (*dto.SessionResponse, error) {
	sess, err := s.authorizedSession(ctx, id, caller)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Session.Cancel(ctx, sess.SessionID, s.now(), caller.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("取消课次失败", zap.String("session_id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("取消课次", zap.String("session_id", sess.SessionID), zap.String("caller", caller.UserID))

	updated, err := s.repo.Session.GetByID(ctx, sess.SessionID)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(updated), nil
}

// ────────────────────── CheckToken ──────────────────────

func (s *sessionService) CheckToken(ctx context.Context, token string) (*dto.SessionView, error) {
	tok, err := resolveSessionToken(ctx, s.repo, token, s.now())
	if err != nil {
		if !errors.Is(err, ErrTokenNotFound) && !errors.Is(err, ErrTokenExpired) {
			s.logger.Error("查询签到令牌失败", zap.Error(err))
		}
		return nil, err
	}

	sess := tok.Session
	view := &dto.SessionView{
		SessionID:    sess.SessionID,
		SessionDate:  sess.SessionDate.Format(model.DateLayout),
		LocationName: sess.LocationName,
		HasGeofence:  sess.HasGeofence(),
		ExpiresAt:    tok.ExpiresAt.Format(dto.TimeLayout),
	}
	if sess.Course != nil {
		view.CourseName = sess.Course.Name
	}
	return view, nil
}

// ────────────────────── QRCode ──────────────────────

func (s *sessionService) QRCode(ctx context.Context, id string, caller dto.Caller) ([]byte, error) {
	sess, err := s.authorizedSession(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if sess.IsCancelled {
		return nil, ErrSessionCancelled
	}
	if sess.Token == nil || sess.ExpiresAt == nil || !s.now().Before(*sess.ExpiresAt) {
		return nil, ErrNoLiveToken
	}

	png, err := qrcode.Encode(s.scanURL(*sess.Token), qrcode.Medium, s.opts.QRSize)
	if err != nil {
		s.logger.Error("生成二维码失败", zap.String("session_id", id), zap.Error(err))
		return nil, ErrQRCodeGeneration
	}
	return png, nil
}

// ────────────────────── 内部方法 ──────────────────────

func (s *sessionService) authorizedSession(ctx context.Context, id string, caller dto.Caller) (*model.ClassSession, error) {
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

func (s *sessionService) scanURL(token string) string {
	return strings.TrimRight(s.opts.BaseURL, "/") + "/attendance/scan?token=" + url.QueryEscape(token)
}

// newSessionToken 生成不可猜测的令牌
func newSessionToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// resolveSessionToken 按令牌定位课次
// 未知令牌返回 ErrTokenNotFound；已过期、已被新令牌替换或课次已取消返回 ErrTokenExpired
func resolveSessionToken(ctx context.Context, repo *repository.Repository, token string, now time.Time) (*model.SessionToken, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}
	tok, err := repo.Session.FindToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if !tok.LiveAt(now) {
		return nil, ErrTokenExpired
	}
	return tok, nil
}

func toSessionResponse(sess *model.ClassSession) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		ID:           sess.SessionID,
		PatternID:    sess.PatternID,
		CourseID:     sess.CourseID,
		TeacherID:    sess.TeacherID,
		TimeSlotID:   sess.TimeSlotID,
		SessionDate:  sess.SessionDate.Format(model.DateLayout),
		LocationName: sess.LocationName,
		Latitude:     sess.Latitude,
		Longitude:    sess.Longitude,
		RadiusM:      sess.RadiusM,
		IsCancelled:  sess.IsCancelled,
	}
	if sess.Course != nil {
		resp.CourseName = sess.Course.Name
	}
	if sess.IssuedAt != nil {
		resp.IssuedAt = sess.IssuedAt.Format(dto.TimeLayout)
	}
	if sess.ExpiresAt != nil {
		resp.ExpiresAt = sess.ExpiresAt.Format(dto.TimeLayout)
	}
	return resp
}
