package model

import "time"

// 排课规律来源
const (
	PatternSourceManual = "manual"
	PatternSourceICS    = "ics"
)

// SchedulePattern 排课规律表，对应 schedule_patterns
// 一条规律描述某课程每 FrequencyWeeks 周在 DayOfWeek 上的一节课。
// 已生成课次后只允许停用，不允许修改时间要素。
type SchedulePattern struct {
	PatternID      string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"pattern_id"`
	SemesterID     string    `gorm:"type:uuid;not null;index"                       json:"semester_id"`
	CourseID       string    `gorm:"type:uuid;not null"                             json:"course_id"`
	TeacherID      string    `gorm:"type:uuid;not null"                             json:"teacher_id"`
	LocationID     *string   `gorm:"type:uuid"                                      json:"location_id,omitempty"`
	TimeSlotID     string    `gorm:"type:uuid;not null"                             json:"time_slot_id"`
	DayOfWeek      int       `gorm:"type:smallint;not null"                         json:"day_of_week"` // 0=周一 … 6=周日
	FrequencyWeeks int       `gorm:"type:smallint;not null;default:1"               json:"frequency_weeks"`
	AnchorDate     time.Time `gorm:"type:date;not null"                             json:"anchor_date"`
	Source         string    `gorm:"type:varchar(10);not null;default:'manual'"     json:"source"`
	IsActive       bool      `gorm:"not null;default:true"                          json:"is_active"`
	VersionedModel

	// 关联
	Semester *Semester `gorm:"foreignKey:SemesterID;references:SemesterID" json:"semester,omitempty"`
	Course   *Course   `gorm:"foreignKey:CourseID;references:CourseID"     json:"course,omitempty"`
	Teacher  *Teacher  `gorm:"foreignKey:TeacherID;references:TeacherID"   json:"teacher,omitempty"`
	Location *Location `gorm:"foreignKey:LocationID;references:LocationID" json:"location,omitempty"`
	TimeSlot *TimeSlot `gorm:"foreignKey:TimeSlotID;references:TimeSlotID" json:"time_slot,omitempty"`
}

// TableName 指定表名
func (SchedulePattern) TableName() string { return "schedule_patterns" }
