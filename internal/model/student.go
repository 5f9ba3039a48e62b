package model

// Student 学生表，对应 students，扫码时以学号定位
type Student struct {
	StudentID   string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_id"`
	StudentCode string `gorm:"type:varchar(30);not null;uniqueIndex"          json:"student_code"`
	FullName    string `gorm:"type:varchar(100);not null"                     json:"full_name"`
	SoftDeleteModel
}

// TableName 指定表名
func (Student) TableName() string { return "students" }

// Enrollment 选课事实，对应 enrollments，核心只读
type Enrollment struct {
	EnrollmentID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"       json:"enrollment_id"`
	StudentID    string `gorm:"type:uuid;not null;uniqueIndex:uk_enrollments,priority:1" json:"student_id"`
	CourseID     string `gorm:"type:uuid;not null;uniqueIndex:uk_enrollments,priority:2" json:"course_id"`
	SchoolYear   int    `gorm:"type:smallint;not null;uniqueIndex:uk_enrollments,priority:3" json:"school_year"`
	Term         int    `gorm:"type:smallint;not null;uniqueIndex:uk_enrollments,priority:4" json:"term"`
	BaseModel
}

// TableName 指定表名
func (Enrollment) TableName() string { return "enrollments" }
