package dto

// ── 签到模块请求 ──

// ScanRequest 学生扫码签到
// 经纬度须成对出现；DeviceID 由客户端生成并持久保存
type ScanRequest struct {
	Token       string   `json:"token"        binding:"required,max=64"`
	StudentCode string   `json:"student_code" binding:"required,max=30"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	DeviceID    string   `json:"device_id"    binding:"max=128"`
	DeviceInfo  string   `json:"-"` // 由 handler 从 User-Agent 填充
}

// ManualMarkRequest 教师手动标记到课
type ManualMarkRequest struct {
	StudentCode string `json:"student_code" binding:"required,max=30"`
}

// ── 签到模块响应 ──

// ScanResponse 扫码结果
// Outcome 为 PRESENT / NOT_ENROLLED / LOCATION_REJECTED / DEVICE_MISMATCH / EXPIRED 之一
type ScanResponse struct {
	Outcome    string `json:"outcome"`
	Message    string `json:"message"`
	DistanceM  *int   `json:"distance_m,omitempty"`
	RecordID   string `json:"record_id,omitempty"`
	RecordedAt string `json:"recorded_at,omitempty"`
	Replayed   bool   `json:"replayed"` // 返回的是已有记录
}

// Success 是否签到成功
func (r *ScanResponse) Success() bool { return r.Outcome == "PRESENT" }

// AttendanceRecordResponse 签到记录
type AttendanceRecordResponse struct {
	ID          string   `json:"id"`
	SessionID   string   `json:"session_id"`
	StudentID   string   `json:"student_id"`
	StudentCode string   `json:"student_code,omitempty"`
	StudentName string   `json:"student_name,omitempty"`
	Outcome     string   `json:"outcome"`
	Source      string   `json:"source"`
	RecordedAt  string   `json:"recorded_at"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	DistanceM   *int     `json:"distance_m,omitempty"`
	DeviceID    string   `json:"device_id,omitempty"`
}
