package dto

// ── 课次模块请求 ──

// CreateSessionRequest 创建临时课次
type CreateSessionRequest struct {
	CourseID    string  `json:"course_id"    binding:"required,uuid"`
	TeacherID   string  `json:"teacher_id"   binding:"required,uuid"`
	LocationID  *string `json:"location_id"  binding:"omitempty,uuid"`
	TimeSlotID  *string `json:"time_slot_id" binding:"omitempty,uuid"`
	SessionDate string  `json:"session_date" binding:"omitempty"` // YYYY-MM-DD，缺省为学校时区的今天
}

// ── 课次模块响应 ──

// SessionResponse 课次详情（教职工视角）
type SessionResponse struct {
	ID           string   `json:"id"`
	PatternID    *string  `json:"pattern_id,omitempty"`
	CourseID     string   `json:"course_id"`
	CourseName   string   `json:"course_name,omitempty"`
	TeacherID    string   `json:"teacher_id"`
	TimeSlotID   *string  `json:"time_slot_id,omitempty"`
	SessionDate  string   `json:"session_date"`
	LocationName string   `json:"location_name,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	RadiusM      *int     `json:"radius_m,omitempty"`
	IssuedAt     string   `json:"issued_at,omitempty"`
	ExpiresAt    string   `json:"expires_at,omitempty"`
	IsCancelled  bool     `json:"is_cancelled"`
}

// IssueTokenResponse 签发令牌结果
type IssueTokenResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	ScanURL   string `json:"scan_url"`
}

// SessionView 扫码页展示的课次信息（公开，不含令牌）
type SessionView struct {
	SessionID    string `json:"session_id"`
	CourseName   string `json:"course_name"`
	SessionDate  string `json:"session_date"`
	LocationName string `json:"location_name,omitempty"`
	HasGeofence  bool   `json:"has_geofence"`
	ExpiresAt    string `json:"expires_at"`
}
