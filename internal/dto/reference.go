package dto

// ── 学期与节次（只读） ──

// SemesterResponse 学期
type SemesterResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SchoolYear int    `json:"school_year"`
	Term       int    `json:"term"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	IsActive   bool   `json:"is_active"`
	Weeks      int    `json:"weeks"` // 学期覆盖的周数（不足一周按一周计）
}

// TimeSlotResponse 节次
type TimeSlotResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}
