package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/devlpr-X/qr-attendance/internal/model"
)

// StudentRepository 学生数据访问接口
type StudentRepository interface {
	GetByCode(ctx context.Context, code string) (*model.Student, error)
}

type studentRepo struct {
	db *gorm.DB
}

// NewStudentRepo 创建 StudentRepository 实例
func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db: db}
}

func (r *studentRepo) GetByCode(ctx context.Context, code string) (*model.Student, error) {
	var s model.Student
	err := r.db.WithContext(ctx).
		Where("student_code = ?", code).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// EnrollmentRepository 选课事实查询接口
type EnrollmentRepository interface {
	Exists(ctx context.Context, studentID, courseID string, schoolYear, term int) (bool, error)
}

type enrollmentRepo struct {
	db *gorm.DB
}

// NewEnrollmentRepo 创建 EnrollmentRepository 实例
func NewEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) Exists(ctx context.Context, studentID, courseID string, schoolYear, term int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("student_id = ? AND course_id = ? AND school_year = ? AND term = ?", studentID, courseID, schoolYear, term).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}
