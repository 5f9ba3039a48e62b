package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devlpr-X/qr-attendance/internal/dto"
	"github.com/devlpr-X/qr-attendance/internal/model"
	"github.com/devlpr-X/qr-attendance/internal/repository"
	pkgerrors "github.com/devlpr-X/qr-attendance/pkg/errors"
)

// ── 排课规律模块业务错误 ──

var (
	ErrPatternNotFound = errors.New("排课规律不存在")
	ErrPatternConflict = errors.New("排课规律已被其他操作修改，请刷新后重试")
	ErrICSEmpty        = errors.New("ICS 中没有可导入的每周重复课程")
)

// PatternService 排课规律业务接口
type PatternService interface {
	Create(ctx context.Context, req *dto.CreatePatternRequest, caller dto.Caller) (*dto.PatternResponse, error)
	GetByID(ctx context.Context, id string, caller dto.Caller) (*dto.PatternResponse, error)
	List(ctx context.Context, req *dto.PatternListRequest, caller dto.Caller) ([]dto.PatternResponse, error)
	// Deactivate 停用规律，已生成的课次保留
	Deactivate(ctx context.Context, id string, caller dto.Caller) (*dto.PatternResponse, error)
	// ImportICS 将 ICS 中的每周重复事件导入为规律
	ImportICS(ctx context.Context, req *dto.ImportPatternsRequest, content io.Reader, caller dto.Caller) (*dto.ImportPatternsResponse, error)
}

type patternService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewPatternService 创建 PatternService 实例
func NewPatternService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) PatternService {
	if loc == nil {
		loc = time.UTC
	}
	return &patternService{repo: repo, loc: loc, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *patternService) Create(ctx context.Context, req *dto.CreatePatternRequest, caller dto.Caller) (*dto.PatternResponse, error) {
	if !caller.CanActAsTeacher(req.TeacherID) {
		return nil, ErrForbidden
	}

	sem, err := s.checkReferences(ctx, req.SemesterID, req.CourseID, req.TeacherID, req.LocationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.TimeSlot.GetByID(ctx, req.TimeSlotID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimeSlotNotFound
		}
		return nil, err
	}

	p := &model.SchedulePattern{
		SemesterID:     req.SemesterID,
		CourseID:       req.CourseID,
		TeacherID:      req.TeacherID,
		LocationID:     req.LocationID,
		TimeSlotID:     req.TimeSlotID,
		DayOfWeek:      *req.DayOfWeek,
		FrequencyWeeks: 1,
		AnchorDate:     sem.StartDate,
		Source:         model.PatternSourceManual,
		IsActive:       true,
	}
	if req.FrequencyWeeks != nil {
		p.FrequencyWeeks = *req.FrequencyWeeks
	}
	if req.AnchorDate != "" {
		d, err := model.ParseDate(req.AnchorDate)
		if err != nil {
			return nil, ErrInvalidDate
		}
		p.AnchorDate = d
	}
	if err := RecurrenceOf(p).Validate(); err != nil {
		return nil, err
	}
	p.CreatedBy = userRef(caller.UserID)
	p.UpdatedBy = userRef(caller.UserID)

	if err := s.repo.Pattern.Create(ctx, p); err != nil {
		s.logger.Error("创建排课规律失败", zap.String("course_id", req.CourseID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("创建排课规律",
		zap.String("pattern_id", p.PatternID),
		zap.Int("day_of_week", p.DayOfWeek),
		zap.Int("frequency_weeks", p.FrequencyWeeks),
		zap.String("caller", caller.UserID),
	)
	return toPatternResponse(p), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *patternService) GetByID(ctx context.Context, id string, caller dto.Caller) (*dto.PatternResponse, error) {
	p, err := s.authorizedPattern(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	return toPatternResponse(p), nil
}

// ────────────────────── List ──────────────────────

func (s *patternService) List(ctx context.Context, req *dto.PatternListRequest, caller dto.Caller) ([]dto.PatternResponse, error) {
	patterns, err := s.repo.Pattern.ListBySemester(ctx, req.SemesterID, req.IncludeInactive)
	if err != nil {
		s.logger.Error("列出排课规律失败", zap.String("semester_id", req.SemesterID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.PatternResponse, 0, len(patterns))
	for i := range patterns {
		// 教师只能看到自己的课
		if !caller.CanActAsTeacher(patterns[i].TeacherID) {
			continue
		}
		result = append(result, *toPatternResponse(&patterns[i]))
	}
	return result, nil
}

// ────────────────────── Deactivate ──────────────────────

func (s *patternService) Deactivate(ctx context.Context, id string, caller dto.Caller) (*dto.PatternResponse, error) {
	p, err := s.authorizedPattern(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return toPatternResponse(p), nil
	}

	if err := s.repo.Pattern.Deactivate(ctx, p, caller.UserID); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrPatternConflict
		}
		s.logger.Error("停用排课规律失败", zap.String("pattern_id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("停用排课规律", zap.String("pattern_id", id), zap.String("caller", caller.UserID))
	return toPatternResponse(p), nil
}

// ────────────────────── ImportICS ──────────────────────

func (s *patternService) ImportICS(ctx context.Context, req *dto.ImportPatternsRequest, content io.Reader, caller dto.Caller) (*dto.ImportPatternsResponse, error) {
	if !caller.CanActAsTeacher(req.TeacherID) {
		return nil, ErrForbidden
	}

	sem, err := s.checkReferences(ctx, req.SemesterID, req.CourseID, req.TeacherID, req.LocationID)
	if err != nil {
		return nil, err
	}

	recs, skipped, err := ParsePatternsICS(content, s.loc)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrICSEmpty
	}

	slots, err := s.repo.TimeSlot.ListActive(ctx)
	if err != nil {
		s.logger.Error("查询节次失败", zap.Error(err))
		return nil, err
	}
	slotByStart := make(map[string]string, len(slots))
	for _, slot := range slots {
		slotByStart[hhmm(slot.StartTime)] = slot.TimeSlotID
	}

	resp := &dto.ImportPatternsResponse{
		Created: []dto.PatternResponse{},
		Errors:  append([]string{}, skipped...),
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("开启事务失败: %w", err)
	}
	txRepo := s.repo.WithTx(tx)

	var created []*model.SchedulePattern
	for _, r := range recs {
		slotID, ok := slotByStart[r.StartTime]
		if !ok {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: 开始时间 %s 没有对应的节次", r.Summary, r.StartTime))
			continue
		}
		anchor := r.AnchorDate
		if anchor.After(sem.EndDate) {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: 首次上课 %s 晚于学期结束", r.Summary, anchor.Format(model.DateLayout)))
			continue
		}

		p := &model.SchedulePattern{
			SemesterID:     req.SemesterID,
			CourseID:       req.CourseID,
			TeacherID:      req.TeacherID,
			LocationID:     req.LocationID,
			TimeSlotID:     slotID,
			DayOfWeek:      r.DayOfWeek,
			FrequencyWeeks: r.FrequencyWeeks,
			AnchorDate:     anchor,
			Source:         model.PatternSourceICS,
			IsActive:       true,
		}
		if err := RecurrenceOf(p).Validate(); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", r.Summary, err))
			continue
		}
		p.CreatedBy = userRef(caller.UserID)
		p.UpdatedBy = userRef(caller.UserID)

		if err := txRepo.Pattern.Create(ctx, p); err != nil {
			if tx != nil {
				tx.Rollback()
			}
			s.logger.Error("导入排课规律失败", zap.String("summary", r.Summary), zap.Error(err))
			return nil, err
		}
		created = append(created, p)
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			return nil, fmt.Errorf("提交事务失败: %w", err)
		}
	}

	for _, p := range created {
		resp.Created = append(resp.Created, *toPatternResponse(p))
	}
	s.logger.Info("ICS 导入排课规律",
		zap.String("semester_id", req.SemesterID),
		zap.String("course_id", req.CourseID),
		zap.Int("created", len(resp.Created)),
		zap.Int("errors", len(resp.Errors)),
	)
	return resp, nil
}

// ────────────────────── 内部方法 ──────────────────────

func (s *patternService) authorizedPattern(ctx context.Context, id string, caller dto.Caller) (*model.SchedulePattern, error) {
	p, err := s.repo.Pattern.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPatternNotFound
		}
		s.logger.Error("查询排课规律失败", zap.String("pattern_id", id), zap.Error(err))
		return nil, err
	}
	if !caller.CanActAsTeacher(p.TeacherID) {
		return nil, ErrForbidden
	}
	return p, nil
}

// checkReferences 校验学期、课程、教师、地点均存在，返回学期
func (s *patternService) checkReferences(ctx context.Context, semesterID, courseID, teacherID string, locationID *string) (*model.Semester, error) {
	sem, err := s.repo.Semester.GetByID(ctx, semesterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSemesterNotFound
		}
		return nil, err
	}
	if _, err := s.repo.Course.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	if _, err := s.repo.Teacher.GetByID(ctx, teacherID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeacherNotFound
		}
		return nil, err
	}
	if locationID != nil {
		if _, err := s.repo.Location.GetByID(ctx, *locationID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrLocationNotFound
			}
			return nil, err
		}
	}
	return sem, nil
}

// hhmm 节次时间统一为 HH:MM（数据库 time 列读出为 HH:MM:SS）
func hhmm(t string) string {
	if len(t) > 5 {
		return t[:5]
	}
	return t
}

func toPatternResponse(p *model.SchedulePattern) *dto.PatternResponse {
	resp := &dto.PatternResponse{
		ID:             p.PatternID,
		SemesterID:     p.SemesterID,
		CourseID:       p.CourseID,
		TeacherID:      p.TeacherID,
		LocationID:     p.LocationID,
		TimeSlotID:     p.TimeSlotID,
		DayOfWeek:      p.DayOfWeek,
		FrequencyWeeks: p.FrequencyWeeks,
		AnchorDate:     p.AnchorDate.Format(model.DateLayout),
		Source:         p.Source,
		IsActive:       p.IsActive,
		Version:        p.Version,
	}
	if p.Course != nil {
		resp.CourseName = p.Course.Name
	}
	if p.TimeSlot != nil {
		resp.TimeSlotName = p.TimeSlot.Name
	}
	return resp
}
