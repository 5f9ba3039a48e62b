package model

import "time"

// Semester 学期表，对应 semesters
// 学年以 8 月开学计：term 1 为 8–12 月，term 2 为次年 1–7 月
type Semester struct {
	SemesterID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"semester_id"`
	Name       string    `gorm:"type:varchar(100);not null"                     json:"name"`
	SchoolYear int       `gorm:"type:smallint;not null"                         json:"school_year"`
	Term       int       `gorm:"type:smallint;not null"                         json:"term"`
	StartDate  time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate    time.Time `gorm:"type:date;not null"                             json:"end_date"`
	IsActive   bool      `gorm:"not null;default:false"                         json:"is_active"`
	VersionedModel
}

// TableName 指定表名
func (Semester) TableName() string { return "semesters" }

// TermOf 根据课次日期推导所属学年与学期
// 8–12 月 → (当年, 1)；1–7 月 → (上一年, 2)
func TermOf(date time.Time) (schoolYear, term int) {
	y, m, _ := date.Date()
	if m >= time.August {
		return y, 1
	}
	return y - 1, 2
}
