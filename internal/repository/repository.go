package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Semester   SemesterRepository
	TimeSlot   TimeSlotRepository
	Location   LocationRepository
	Course     CourseRepository
	Teacher    TeacherRepository
	Student    StudentRepository
	Enrollment EnrollmentRepository
	Pattern    PatternRepository
	Session    SessionRepository
	Device     DeviceBindingRepository
	Attendance AttendanceRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		Semester:   NewSemesterRepo(db),
		TimeSlot:   NewTimeSlotRepo(db),
		Location:   NewLocationRepo(db),
		Course:     NewCourseRepo(db),
		Teacher:    NewTeacherRepo(db),
		Student:    NewStudentRepo(db),
		Enrollment: NewEnrollmentRepo(db),
		Pattern:    NewPatternRepo(db),
		Session:    NewSessionRepo(db),
		Device:     NewDeviceBindingRepo(db),
		Attendance: NewAttendanceRepo(db),
	}
}

// BeginTx 开启事务；单元测试中 db 为 nil 时返回 nil，调用方按无事务处理
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx 返回绑定到事务连接的 Repository 聚合；tx 为 nil 时返回自身
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}
