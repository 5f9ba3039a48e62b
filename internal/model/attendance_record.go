package model

import "time"

// AttendanceOutcome 签到结果（封闭枚举，新增拒绝原因必须在此登记）
type AttendanceOutcome string

const (
	OutcomePresent          AttendanceOutcome = "PRESENT"
	OutcomeNotEnrolled      AttendanceOutcome = "NOT_ENROLLED"
	OutcomeLocationRejected AttendanceOutcome = "LOCATION_REJECTED"
	OutcomeDeviceMismatch   AttendanceOutcome = "DEVICE_MISMATCH"
	OutcomeExpired          AttendanceOutcome = "EXPIRED"
)

// Valid 是否为已登记的结果
func (o AttendanceOutcome) Valid() bool {
	switch o {
	case OutcomePresent, OutcomeNotEnrolled, OutcomeLocationRejected, OutcomeDeviceMismatch, OutcomeExpired:
		return true
	}
	return false
}

// 签到记录来源
const (
	RecordSourceScan   = "scan"
	RecordSourceManual = "manual"
)

// AttendanceRecord 签到记录表，对应 attendance_records
// (session_id, student_id) 唯一：每个学生每个课次至多一条，写入后不再修改
type AttendanceRecord struct {
	RecordID   string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"                 json:"record_id"`
	SessionID  string            `gorm:"type:uuid;not null;uniqueIndex:uk_attendance_session_student,priority:1" json:"session_id"`
	StudentID  string            `gorm:"type:uuid;not null;uniqueIndex:uk_attendance_session_student,priority:2" json:"student_id"`
	Outcome    AttendanceOutcome `gorm:"type:varchar(20);not null"                                      json:"outcome"`
	Source     string            `gorm:"type:varchar(10);not null;default:'scan'"                       json:"source"`
	RecordedAt time.Time         `gorm:"not null"                                                       json:"recorded_at"`
	Latitude   *float64          `gorm:"type:double precision"                                          json:"latitude,omitempty"`
	Longitude  *float64          `gorm:"type:double precision"                                          json:"longitude,omitempty"`
	DistanceM  *int              `                                                                      json:"distance_m,omitempty"`
	DeviceID   string            `gorm:"type:varchar(128)"                                              json:"device_id,omitempty"`
	DeviceInfo string            `gorm:"type:varchar(255)"                                              json:"device_info,omitempty"`
	BaseModel

	Student *Student `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
}

// TableName 指定表名
func (AttendanceRecord) TableName() string { return "attendance_records" }
