package model

import "time"

// DeviceBinding 设备绑定表，对应 device_bindings
// 学生首次携带设备 ID 扫码时写入，之后永不自动覆盖
type DeviceBinding struct {
	StudentID   string    `gorm:"type:uuid;primaryKey"       json:"student_id"`
	DeviceID    string    `gorm:"type:varchar(128);not null" json:"device_id"`
	FirstSeenAt time.Time `gorm:"not null"                   json:"first_seen_at"`
}

// TableName 指定表名
func (DeviceBinding) TableName() string { return "device_bindings" }
