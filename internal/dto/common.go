package dto

// Caller 教职工调用者身份，由认证中间件从 JWT 中解析后显式传入各业务方法
type Caller struct {
	UserID    string
	Role      string // admin | teacher
	TeacherID string // teacher 角色对应的教师 ID
}

// IsAdmin 是否管理员
func (c Caller) IsAdmin() bool { return c.Role == "admin" }

// CanActAsTeacher 管理员或本课教师可操作
func (c Caller) CanActAsTeacher(teacherID string) bool {
	return c.IsAdmin() || (c.TeacherID != "" && c.TeacherID == teacherID)
}

// TimeLayout 响应中的时间格式
const TimeLayout = "2006-01-02T15:04:05Z07:00"
