package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/devlpr-X/qr-attendance/internal/model"
	"github.com/devlpr-X/qr-attendance/internal/repository"
	pkgerrors "github.com/devlpr-X/qr-attendance/pkg/errors"
)

// ── Mock 数据存储 ──
//
// 所有 mock 共享同一个 store，以便条件写入能看到课次与令牌的最新状态。

type mockStore struct {
	mu sync.Mutex

	semesters   map[string]*model.Semester
	timeSlots   map[string]*model.TimeSlot
	locations   map[string]*model.Location
	courses     map[string]*model.Course
	teachers    map[string]*model.Teacher
	students    map[string]*model.Student // key: student_code
	enrollments map[string]bool           // key: student|course|year|term
	patterns    map[string]*model.SchedulePattern
	sessions    map[string]*model.ClassSession
	tokens      map[string]*model.SessionToken
	devices     map[string]*model.DeviceBinding
	records     map[string]*model.AttendanceRecord // key: session|student

	seq int
}

func newMockStore() *mockStore {
	return &mockStore{
		semesters:   make(map[string]*model.Semester),
		timeSlots:   make(map[string]*model.TimeSlot),
		locations:   make(map[string]*model.Location),
		courses:     make(map[string]*model.Course),
		teachers:    make(map[string]*model.Teacher),
		students:    make(map[string]*model.Student),
		enrollments: make(map[string]bool),
		patterns:    make(map[string]*model.SchedulePattern),
		sessions:    make(map[string]*model.ClassSession),
		tokens:      make(map[string]*model.SessionToken),
		devices:     make(map[string]*model.DeviceBinding),
		records:     make(map[string]*model.AttendanceRecord),
	}
}

func (s *mockStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%03d", prefix, s.seq)
}

// repo 组装使用 mock 的 Repository 聚合
func (s *mockStore) repo() *repository.Repository {
	return &repository.Repository{
		Semester:   &mockSemesterRepo{s},
		TimeSlot:   &mockTimeSlotRepo{s},
		Location:   &mockLocationRepo{s},
		Course:     &mockCourseRepo{s},
		Teacher:    &mockTeacherRepo{s},
		Student:    &mockStudentRepo{s},
		Enrollment: &mockEnrollmentRepo{s},
		Pattern:    &mockPatternRepo{s},
		Session:    &mockSessionRepo{s},
		Device:     &mockDeviceRepo{s},
		Attendance: &mockAttendanceRepo{s},
	}
}

// ── Mock 只读目录 ──

type mockSemesterRepo struct{ s *mockStore }

func (m *mockSemesterRepo) GetByID(_ context.Context, id string) (*model.Semester, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if v, ok := m.s.semesters[id]; ok {
		return v, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSemesterRepo) GetCurrent(_ context.Context) (*model.Semester, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, v := range m.s.semesters {
		if v.IsActive {
			return v, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type mockTimeSlotRepo struct{ s *mockStore }

func (m *mockTimeSlotRepo) GetByID(_ context.Context, id string) (*model.TimeSlot, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if v, ok := m.s.timeSlots[id]; ok {
		return v, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTimeSlotRepo) ListActive(_ context.Context) ([]model.TimeSlot, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.TimeSlot
	for _, v := range m.s.timeSlots {
		if v.IsActive {
			result = append(result, *v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime < result[j].StartTime })
	return result, nil
}

type mockLocationRepo struct{ s *mockStore }

func (m *mockLocationRepo) GetByID(_ context.Context, id string) (*model.Location, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if v, ok := m.s.locations[id]; ok {
		return v, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type mockCourseRepo struct{ s *mockStore }

func (m *mockCourseRepo) GetByID(_ context.Context, id string) (*model.Course, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if v, ok := m.s.courses[id]; ok {
		return v, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type mockTeacherRepo struct{ s *mockStore }

func (m *mockTeacherRepo) GetByID(_ context.Context, id string) (*model.Teacher, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if v, ok := m.s.teachers[id]; ok {
		return v, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type mockStudentRepo struct{ s *mockStore }

func (m *mockStudentRepo) GetByCode(_ context.Context, code string) (*model.Student, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if v, ok := m.s.students[code]; ok {
		return v, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type mockEnrollmentRepo struct{ s *mockStore }

func (m *mockEnrollmentRepo) Exists(_ context.Context, studentID, courseID string, schoolYear, term int) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.enrollments[fmt.Sprintf("%s|%s|%d|%d", studentID, courseID, schoolYear, term)], nil
}

// ── Mock PatternRepository ──

type mockPatternRepo struct{ s *mockStore }

func (m *mockPatternRepo) Create(_ context.Context, p *model.SchedulePattern) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p.PatternID == "" {
		p.PatternID = m.s.nextID("pat")
	}
	p.Version = 1
	m.s.patterns[p.PatternID] = p
	return nil
}

func (m *mockPatternRepo) GetByID(_ context.Context, id string) (*model.SchedulePattern, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.patterns[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	if p.LocationID != nil {
		cp.Location = m.s.locations[*p.LocationID]
	}
	cp.Course = m.s.courses[p.CourseID]
	cp.TimeSlot = m.s.timeSlots[p.TimeSlotID]
	return &cp, nil
}

func (m *mockPatternRepo) ListBySemester(_ context.Context, semesterID string, includeInactive bool) ([]model.SchedulePattern, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.SchedulePattern
	for _, p := range m.s.patterns {
		if p.SemesterID != semesterID || (!includeInactive && !p.IsActive) {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PatternID < result[j].PatternID })
	return result, nil
}

func (m *mockPatternRepo) Deactivate(_ context.Context, p *model.SchedulePattern, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.patterns[p.PatternID]
	if !ok || stored.Version != p.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.IsActive = false
	stored.Version++
	p.IsActive = false
	p.Version = stored.Version
	return nil
}

// ── Mock SessionRepository ──

type mockSessionRepo struct{ s *mockStore }

func (m *mockSessionRepo) GetByID(_ context.Context, id string) (*model.ClassSession, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sess, ok := m.s.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sess
	cp.Course = m.s.courses[sess.CourseID]
	return &cp, nil
}

func (m *mockSessionRepo) UpsertForPattern(_ context.Context, sess *model.ClassSession) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.sessions {
		if existing.PatternID != nil && sess.PatternID != nil &&
			*existing.PatternID == *sess.PatternID && existing.SessionDate.Equal(sess.SessionDate) {
			return false, nil
		}
	}
	sess.SessionID = m.s.nextID("ses")
	cp := *sess
	m.s.sessions[sess.SessionID] = &cp
	return true, nil
}

func (m *mockSessionRepo) Create(_ context.Context, sess *model.ClassSession) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sess.SessionID = m.s.nextID("ses")
	cp := *sess
	m.s.sessions[sess.SessionID] = &cp
	return nil
}

func (m *mockSessionRepo) RotateToken(_ context.Context, tok *model.SessionToken) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sess, ok := m.s.sessions[tok.SessionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if sess.IsCancelled {
		return pkgerrors.ErrSessionCancelled
	}
	for _, t := range m.s.tokens {
		if t.SessionID == tok.SessionID && t.RevokedAt == nil {
			at := tok.IssuedAt
			t.RevokedAt = &at
		}
	}
	cp := *tok
	m.s.tokens[tok.Token] = &cp
	token, issued, expires := tok.Token, tok.IssuedAt, tok.ExpiresAt
	sess.Token = &token
	sess.IssuedAt = &issued
	sess.ExpiresAt = &expires
	return nil
}

func (m *mockSessionRepo) Cancel(_ context.Context, sessionID string, at time.Time, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sess, ok := m.s.sessions[sessionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if sess.IsCancelled {
		return nil
	}
	sess.IsCancelled = true
	sess.CancelledAt = &at
	for _, t := range m.s.tokens {
		if t.SessionID == sessionID && t.RevokedAt == nil {
			revoked := at
			t.RevokedAt = &revoked
		}
	}
	return nil
}

func (m *mockSessionRepo) FindToken(_ context.Context, token string) (*model.SessionToken, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.tokens[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	if sess, ok := m.s.sessions[t.SessionID]; ok {
		sc := *sess
		sc.Course = m.s.courses[sess.CourseID]
		cp.Session = &sc
	}
	return &cp, nil
}

// ── Mock DeviceBindingRepository ──

type mockDeviceRepo struct{ s *mockStore }

func (m *mockDeviceRepo) Get(_ context.Context, studentID string) (*model.DeviceBinding, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if b, ok := m.s.devices[studentID]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeviceRepo) CreateIfAbsent(_ context.Context, b *model.DeviceBinding) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.devices[b.StudentID]; ok {
		return false, nil
	}
	cp := *b
	m.s.devices[b.StudentID] = &cp
	return true, nil
}

// ── Mock AttendanceRepository ──
//
// TryInsert 与 SQL 条件写入语义一致：课次已取消、令牌已作废或过期时不写入。

type mockAttendanceRepo struct{ s *mockStore }

func (m *mockAttendanceRepo) TryInsert(_ context.Context, rec *model.AttendanceRecord, guard repository.InsertGuard) (*model.AttendanceRecord, bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	key := rec.SessionID + "|" + rec.StudentID
	if existing, ok := m.s.records[key]; ok {
		cp := *existing
		return &cp, false, nil
	}

	sess, ok := m.s.sessions[rec.SessionID]
	if !ok || sess.IsCancelled {
		return nil, false, pkgerrors.ErrSessionNotLive
	}
	if guard.Token != "" {
		t, ok := m.s.tokens[guard.Token]
		if !ok || t.SessionID != rec.SessionID || t.RevokedAt != nil || !guard.Now.Before(t.ExpiresAt) {
			return nil, false, pkgerrors.ErrSessionNotLive
		}
	}

	rec.RecordID = m.s.nextID("rec")
	cp := *rec
	m.s.records[key] = &cp
	return rec, true, nil
}

func (m *mockAttendanceRepo) FindBySessionAndStudent(_ context.Context, sessionID, studentID string) (*model.AttendanceRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if r, ok := m.s.records[sessionID+"|"+studentID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) ListBySession(_ context.Context, sessionID string) ([]model.AttendanceRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.AttendanceRecord
	for _, r := range m.s.records {
		if r.SessionID != sessionID {
			continue
		}
		cp := *r
		for _, st := range m.s.students {
			if st.StudentID == r.StudentID {
				cp.Student = st
			}
		}
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RecordedAt.Before(result[j].RecordedAt) })
	return result, nil
}

// ── Mock 设备绑定缓存 ──

type mockBindingCache struct {
	mu    sync.Mutex
	data  map[string]string
	gets  int
	fails bool
}

func newMockBindingCache() *mockBindingCache {
	return &mockBindingCache{data: make(map[string]string)}
}

func (c *mockBindingCache) GetDeviceBinding(_ context.Context, studentID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.fails {
		return "", false, fmt.Errorf("redis unavailable")
	}
	v, ok := c.data[studentID]
	return v, ok, nil
}

func (c *mockBindingCache) SetDeviceBinding(_ context.Context, studentID, deviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fails {
		return fmt.Errorf("redis unavailable")
	}
	c.data[studentID] = deviceID
	return nil
}
