package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devlpr-X/qr-attendance/internal/dto"
	"github.com/devlpr-X/qr-attendance/internal/model"
	"github.com/devlpr-X/qr-attendance/internal/repository"
)

// ErrNoCurrentSemester 没有启用中的学期
var ErrNoCurrentSemester = errors.New("当前没有启用的学期")

// ReferenceService 学期与节次的只读查询，供排课界面选择
// 学期与节次的维护由外部系统完成
type ReferenceService interface {
	GetCurrentSemester(ctx context.Context) (*dto.SemesterResponse, error)
	GetSemester(ctx context.Context, id string) (*dto.SemesterResponse, error)
	ListTimeSlots(ctx context.Context) ([]dto.TimeSlotResponse, error)
}

type referenceService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewReferenceService 创建 ReferenceService 实例
func NewReferenceService(repo *repository.Repository, logger *zap.Logger) ReferenceService {
	return &referenceService{repo: repo, logger: logger}
}

// ────────────────────── 学期 ──────────────────────

func (s *referenceService) GetCurrentSemester(ctx context.Context) (*dto.SemesterResponse, error) {
	sem, err := s.repo.Semester.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCurrentSemester
		}
		s.logger.Error("查询当前学期失败", zap.Error(err))
		return nil, err
	}
	return toSemesterResponse(sem), nil
}

func (s *referenceService) GetSemester(ctx context.Context, id string) (*dto.SemesterResponse, error) {
	sem, err := s.repo.Semester.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSemesterNotFound
		}
		s.logger.Error("查询学期失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toSemesterResponse(sem), nil
}

// ────────────────────── 节次 ──────────────────────

func (s *referenceService) ListTimeSlots(ctx context.Context) ([]dto.TimeSlotResponse, error) {
	slots, err := s.repo.TimeSlot.ListActive(ctx)
	if err != nil {
		s.logger.Error("列出节次失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.TimeSlotResponse, 0, len(slots))
	for i := range slots {
		result = append(result, dto.TimeSlotResponse{
			ID:        slots[i].TimeSlotID,
			Name:      slots[i].Name,
			StartTime: hhmm(slots[i].StartTime),
			EndTime:   hhmm(slots[i].EndTime),
		})
	}
	return result, nil
}

func toSemesterResponse(sem *model.Semester) *dto.SemesterResponse {
	days := int(sem.EndDate.Sub(sem.StartDate).Hours()/24) + 1
	return &dto.SemesterResponse{
		ID:         sem.SemesterID,
		Name:       sem.Name,
		SchoolYear: sem.SchoolYear,
		Term:       sem.Term,
		StartDate:  sem.StartDate.Format(model.DateLayout),
		EndDate:    sem.EndDate.Format(model.DateLayout),
		IsActive:   sem.IsActive,
		Weeks:      (days + 6) / 7,
	}
}
