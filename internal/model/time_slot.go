package model

// TimeSlot 节次表，对应 time_slots
type TimeSlot struct {
	TimeSlotID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"time_slot_id"`
	Name       string `gorm:"type:varchar(50);not null"                      json:"name"`
	StartTime  string `gorm:"type:time;not null"                             json:"start_time"` // HH:MM
	EndTime    string `gorm:"type:time;not null"                             json:"end_time"`
	IsActive   bool   `gorm:"not null;default:true"                          json:"is_active"`
	SoftDeleteModel
}

// TableName 指定表名
func (TimeSlot) TableName() string { return "time_slots" }
