package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/devlpr-X/qr-attendance/internal/model"
	pkgerrors "github.com/devlpr-X/qr-attendance/pkg/errors"
)

// PatternRepository 排课规律数据访问接口
type PatternRepository interface {
	Create(ctx context.Context, p *model.SchedulePattern) error
	GetByID(ctx context.Context, id string) (*model.SchedulePattern, error)
	ListBySemester(ctx context.Context, semesterID string, includeInactive bool) ([]model.SchedulePattern, error)
	// Deactivate 停用规律（乐观锁），版本不匹配时返回 ErrOptimisticLock
	Deactivate(ctx context.Context, p *model.SchedulePattern, callerID string) error
}

type patternRepo struct {
	db *gorm.DB
}

// NewPatternRepo 创建 PatternRepository 实例
func NewPatternRepo(db *gorm.DB) PatternRepository {
	return &patternRepo{db: db}
}

func (r *patternRepo) Create(ctx context.Context, p *model.SchedulePattern) error {
	return r.db.WithContext(ctx).Omit("Semester", "Course", "Teacher", "Location", "TimeSlot").Create(p).Error
}

func (r *patternRepo) GetByID(ctx context.Context, id string) (*model.SchedulePattern, error) {
	var p model.SchedulePattern
	err := r.db.WithContext(ctx).
		Preload("Course").
		Preload("Location").
		Preload("TimeSlot").
		Where("pattern_id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patternRepo) ListBySemester(ctx context.Context, semesterID string, includeInactive bool) ([]model.SchedulePattern, error) {
	var patterns []model.SchedulePattern
	db := r.db.WithContext(ctx).Where("semester_id = ?", semesterID)
	if !includeInactive {
		db = db.Where("is_active = ?", true)
	}
	err := db.Preload("Course").
		Preload("TimeSlot").
		Order("day_of_week ASC, created_at ASC").
		Find(&patterns).Error
	return patterns, err
}

func (r *patternRepo) Deactivate(ctx context.Context, p *model.SchedulePattern, callerID string) error {
	oldVersion := p.Version
	result := r.db.WithContext(ctx).
		Model(&model.SchedulePattern{}).
		Where("pattern_id = ? AND version = ?", p.PatternID, oldVersion).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_by": callerID,
			"updated_at": gorm.Expr("NOW()"),
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	p.IsActive = false
	p.Version = oldVersion + 1
	return nil
}
