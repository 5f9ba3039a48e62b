package dto

// ── 排课规律模块请求 ──

// CreatePatternRequest 创建排课规律
type CreatePatternRequest struct {
	SemesterID     string  `json:"semester_id"     binding:"required,uuid"`
	CourseID       string  `json:"course_id"       binding:"required,uuid"`
	TeacherID      string  `json:"teacher_id"      binding:"required,uuid"`
	LocationID     *string `json:"location_id"     binding:"omitempty,uuid"`
	TimeSlotID     string  `json:"time_slot_id"    binding:"required,uuid"`
	DayOfWeek      *int    `json:"day_of_week"     binding:"required"`  // 0=周一 … 6=周日
	FrequencyWeeks *int    `json:"frequency_weeks" binding:"omitempty"` // 缺省为 1
	AnchorDate     string  `json:"anchor_date"     binding:"omitempty"` // YYYY-MM-DD，缺省为学期开始日
}

// PatternListRequest 排课规律列表查询
type PatternListRequest struct {
	SemesterID      string `form:"semester_id"      binding:"required,uuid"`
	IncludeInactive bool   `form:"include_inactive"`
}

// ImportPatternsRequest ICS 导入排课规律（multipart 表单字段）
// 未上传 file 时从 ICSURL 拉取（支持 webcal://）
type ImportPatternsRequest struct {
	SemesterID string  `form:"semester_id" binding:"required,uuid"`
	CourseID   string  `form:"course_id"   binding:"required,uuid"`
	TeacherID  string  `form:"teacher_id"  binding:"required,uuid"`
	LocationID *string `form:"location_id" binding:"omitempty,uuid"`
	ICSURL     string  `form:"ics_url"     binding:"omitempty,max=500"`
}

// GenerateSessionsRequest 按规律生成课次；SemesterID 缺省为规律所属学期
type GenerateSessionsRequest struct {
	SemesterID string `json:"semester_id" binding:"omitempty,uuid"`
}

// ── 排课规律模块响应 ──

// PatternResponse 排课规律
type PatternResponse struct {
	ID             string  `json:"id"`
	SemesterID     string  `json:"semester_id"`
	CourseID       string  `json:"course_id"`
	CourseName     string  `json:"course_name,omitempty"`
	TeacherID      string  `json:"teacher_id"`
	LocationID     *string `json:"location_id,omitempty"`
	TimeSlotID     string  `json:"time_slot_id"`
	TimeSlotName   string  `json:"time_slot_name,omitempty"`
	DayOfWeek      int     `json:"day_of_week"`
	FrequencyWeeks int     `json:"frequency_weeks"`
	AnchorDate     string  `json:"anchor_date"`
	Source         string  `json:"source"`
	IsActive       bool    `json:"is_active"`
	Version        int     `json:"version"`
}

// ImportPatternsResponse ICS 导入结果
type ImportPatternsResponse struct {
	Created []PatternResponse `json:"created"`
	Errors  []string          `json:"errors"`
}

// GenerateSessionsResponse 生成课次结果
type GenerateSessionsResponse struct {
	PatternID    string   `json:"pattern_id"`
	SemesterID   string   `json:"semester_id"`
	CreatedCount int      `json:"created_count"`
	TotalDates   int      `json:"total_dates"`
	Errors       []string `json:"errors"`
}
