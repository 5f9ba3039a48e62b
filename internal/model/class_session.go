package model

import "time"

// ClassSession 课次表，对应 class_sessions
// PatternID 为空表示临时课次；(pattern_id, session_date) 唯一。
// 地点信息在创建时快照，之后修改地点不影响已生成课次。
type ClassSession struct {
	SessionID    string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"              json:"session_id"`
	PatternID    *string    `gorm:"type:uuid;uniqueIndex:uk_class_sessions_pattern_date,priority:1" json:"pattern_id,omitempty"`
	CourseID     string     `gorm:"type:uuid;not null"                                          json:"course_id"`
	TeacherID    string     `gorm:"type:uuid;not null"                                          json:"teacher_id"`
	TimeSlotID   *string    `gorm:"type:uuid"                                                   json:"time_slot_id,omitempty"`
	LocationID   *string    `gorm:"type:uuid"                                                   json:"location_id,omitempty"`
	LocationName string     `gorm:"type:varchar(100)"                                           json:"location_name,omitempty"`
	Latitude     *float64   `gorm:"type:double precision"                                       json:"latitude,omitempty"`
	Longitude    *float64   `gorm:"type:double precision"                                       json:"longitude,omitempty"`
	RadiusM      *int       `                                                                   json:"radius_m,omitempty"`
	SessionDate  time.Time  `gorm:"type:date;not null;uniqueIndex:uk_class_sessions_pattern_date,priority:2" json:"session_date"`
	Token        *string    `gorm:"type:varchar(64)"                                            json:"-"`
	IssuedAt     *time.Time `                                                                   json:"issued_at,omitempty"`
	ExpiresAt    *time.Time `                                                                   json:"expires_at,omitempty"`
	IsCancelled  bool       `gorm:"not null;default:false"                                      json:"is_cancelled"`
	CancelledAt  *time.Time `                                                                   json:"cancelled_at,omitempty"`
	SoftDeleteModel

	// 关联
	Course   *Course   `gorm:"foreignKey:CourseID;references:CourseID"     json:"course,omitempty"`
	Teacher  *Teacher  `gorm:"foreignKey:TeacherID;references:TeacherID"   json:"teacher,omitempty"`
	TimeSlot *TimeSlot `gorm:"foreignKey:TimeSlotID;references:TimeSlotID" json:"time_slot,omitempty"`
}

// TableName 指定表名
func (ClassSession) TableName() string { return "class_sessions" }

// HasGeofence 课次是否带地点围栏
func (s *ClassSession) HasGeofence() bool {
	return s.Latitude != nil && s.Longitude != nil && s.RadiusM != nil
}

// SnapshotLocation 将地点坐标与半径复制到课次
func (s *ClassSession) SnapshotLocation(loc *Location) {
	if loc == nil {
		return
	}
	lat, lon := loc.Latitude, loc.Longitude
	radius := loc.RadiusM
	if radius <= 0 {
		radius = DefaultRadiusMeters
	}
	id := loc.LocationID
	s.LocationID = &id
	s.LocationName = loc.Name
	s.Latitude = &lat
	s.Longitude = &lon
	s.RadiusM = &radius
}

// SessionToken 签到令牌台账，对应 session_tokens
// 每个课次同一时刻至多一条 RevokedAt 为空的记录
type SessionToken struct {
	Token     string     `gorm:"type:varchar(64);primaryKey" json:"token"`
	SessionID string     `gorm:"type:uuid;not null;index"    json:"session_id"`
	IssuedAt  time.Time  `gorm:"not null"                    json:"issued_at"`
	ExpiresAt time.Time  `gorm:"not null"                    json:"expires_at"`
	RevokedAt *time.Time `                                   json:"revoked_at,omitempty"`

	Session *ClassSession `gorm:"foreignKey:SessionID;references:SessionID" json:"session,omitempty"`
}

// TableName 指定表名
func (SessionToken) TableName() string { return "session_tokens" }

// LiveAt 令牌在 now 时刻是否可用于签到
// 已作废、已过期或所属课次已取消均视为失效
func (t *SessionToken) LiveAt(now time.Time) bool {
	if t.RevokedAt != nil || !now.Before(t.ExpiresAt) {
		return false
	}
	return t.Session != nil && !t.Session.IsCancelled
}
