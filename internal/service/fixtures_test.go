package service

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/devlpr-X/qr-attendance/internal/dto"
	"github.com/devlpr-X/qr-attendance/internal/model"
)

// ── 测试夹具 ──

const (
	fxSemesterID = "sem-2024-1"
	fxCourseID   = "course-db"
	fxTeacherID  = "teacher-001"
	fxLocationID = "loc-a101"
	fxSlotID     = "slot-0800"
	fxStudentID  = "stu-001"
	fxStudentNo  = "20240001"
	fxOtherID    = "stu-002"
	fxOtherNo    = "20240002"
)

var (
	fxAdmin   = dto.Caller{UserID: "admin-001", Role: "admin"}
	fxTeacher = dto.Caller{UserID: "user-t1", Role: "teacher", TeacherID: fxTeacherID}
	fxOutside = dto.Caller{UserID: "user-t2", Role: "teacher", TeacherID: "teacher-999"}

	// 课堂中心点
	fxLat = 47.9184
	fxLon = 106.9177
)

// fakeClock 可手动推进的时钟
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// seedStore 2024 秋季学期（9/2 周一 至 12/20），课程每周一在 A101 上课，
// 学生 20240001 已选课，20240002 未选课
func seedStore() *mockStore {
	s := newMockStore()
	s.semesters[fxSemesterID] = &model.Semester{
		SemesterID: fxSemesterID,
		Name:       "2024-2025 第一学期",
		SchoolYear: 2024,
		Term:       1,
		StartDate:  date("2024-09-02"),
		EndDate:    date("2024-12-20"),
		IsActive:   true,
	}
	s.courses[fxCourseID] = &model.Course{CourseID: fxCourseID, Code: "CS301", Name: "数据库系统"}
	s.teachers[fxTeacherID] = &model.Teacher{TeacherID: fxTeacherID, Code: "T001", FullName: "Bat-Erdene"}
	s.locations[fxLocationID] = &model.Location{
		LocationID: fxLocationID,
		Name:       "A101",
		Latitude:   fxLat,
		Longitude:  fxLon,
		RadiusM:    100,
		IsActive:   true,
	}
	s.timeSlots[fxSlotID] = &model.TimeSlot{TimeSlotID: fxSlotID, Name: "第1节", StartTime: "08:00:00", EndTime: "09:30:00", IsActive: true}
	s.students[fxStudentNo] = &model.Student{StudentID: fxStudentID, StudentCode: fxStudentNo, FullName: "Anu"}
	s.students[fxOtherNo] = &model.Student{StudentID: fxOtherID, StudentCode: fxOtherNo, FullName: "Tuya"}
	s.enrollments[fxStudentID+"|"+fxCourseID+"|2024|1"] = true
	return s
}

// seedPattern 每周一 08:00，锚定学期首日
func seedPattern(s *mockStore) *model.SchedulePattern {
	loc := fxLocationID
	p := &model.SchedulePattern{
		PatternID:      "pat-mon",
		SemesterID:     fxSemesterID,
		CourseID:       fxCourseID,
		TeacherID:      fxTeacherID,
		LocationID:     &loc,
		TimeSlotID:     fxSlotID,
		DayOfWeek:      0,
		FrequencyWeeks: 1,
		AnchorDate:     date("2024-09-02"),
		Source:         model.PatternSourceManual,
		IsActive:       true,
	}
	p.Version = 1
	s.patterns[p.PatternID] = p
	return p
}

// seedSession 2024-09-09 的课次（带 A101 围栏）
func seedSession(s *mockStore) *model.ClassSession {
	patternID := "pat-mon"
	sess := &model.ClassSession{
		SessionID:   "ses-0909",
		PatternID:   &patternID,
		CourseID:    fxCourseID,
		TeacherID:   fxTeacherID,
		SessionDate: date("2024-09-09"),
	}
	sess.SnapshotLocation(s.locations[fxLocationID])
	s.sessions[sess.SessionID] = sess
	return sess
}

func newTestSessionService(t *testing.T, s *mockStore, clock *fakeClock) *sessionService {
	t.Helper()
	svc := NewSessionService(s.repo(), SessionOptions{
		TokenTTL: 10 * time.Minute,
		BaseURL:  "https://attendance.example.edu/",
		QRSize:   256,
		Location: time.UTC,
	}, nil, zap.NewNop()).(*sessionService)
	svc.now = clock.Now
	return svc
}

func newTestAttendanceService(t *testing.T, s *mockStore, clock *fakeClock, requireDevice bool) *attendanceService {
	t.Helper()
	repo := s.repo()
	devices := NewDeviceRegistry(repo, nil, zap.NewNop())
	devices.now = clock.Now
	svc := NewAttendanceService(repo, devices, AttendanceOptions{RequireDeviceID: requireDevice}, nil, zap.NewNop()).(*attendanceService)
	svc.now = clock.Now
	return svc
}

func ptrFloat(v float64) *float64 { return &v }
