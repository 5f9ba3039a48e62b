package model

// Course 课程表，对应 courses（由外部 CRUD 维护）
type Course struct {
	CourseID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"course_id"`
	Code     string `gorm:"type:varchar(30);not null;uniqueIndex"          json:"code"`
	Name     string `gorm:"type:varchar(150);not null"                     json:"name"`
	SoftDeleteModel
}

// TableName 指定表名
func (Course) TableName() string { return "courses" }

// Teacher 教师表，对应 teachers
type Teacher struct {
	TeacherID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"teacher_id"`
	Code      string `gorm:"type:varchar(30);not null;uniqueIndex"          json:"code"`
	FullName  string `gorm:"type:varchar(100);not null"                     json:"full_name"`
	SoftDeleteModel
}

// TableName 指定表名
func (Teacher) TableName() string { return "teachers" }
