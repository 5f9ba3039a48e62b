package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/devlpr-X/qr-attendance/internal/model"
)

// ── 课程 ──

// CourseRepository 课程数据访问接口
type CourseRepository interface {
	GetByID(ctx context.Context, id string) (*model.Course, error)
}

type courseRepo struct {
	db *gorm.DB
}

// NewCourseRepo 创建 CourseRepository 实例
func NewCourseRepo(db *gorm.DB) CourseRepository {
	return &courseRepo{db: db}
}

func (r *courseRepo) GetByID(ctx context.Context, id string) (*model.Course, error) {
	var c model.Course
	if err := r.db.WithContext(ctx).Where("course_id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ── 教师 ──

// TeacherRepository 教师数据访问接口
type TeacherRepository interface {
	GetByID(ctx context.Context, id string) (*model.Teacher, error)
}

type teacherRepo struct {
	db *gorm.DB
}

// NewTeacherRepo 创建 TeacherRepository 实例
func NewTeacherRepo(db *gorm.DB) TeacherRepository {
	return &teacherRepo{db: db}
}

func (r *teacherRepo) GetByID(ctx context.Context, id string) (*model.Teacher, error) {
	var t model.Teacher
	if err := r.db.WithContext(ctx).Where("teacher_id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}
