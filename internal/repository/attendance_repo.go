package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/devlpr-X/qr-attendance/internal/model"
	pkgerrors "github.com/devlpr-X/qr-attendance/pkg/errors"
)

// InsertGuard 写入签到记录时课次必须满足的条件
// Token 非空时还要求该令牌仍是课次的有效令牌且在 Now 时刻未过期
type InsertGuard struct {
	Token string
	Now   time.Time
}

// AttendanceRepository 签到记录数据访问接口
type AttendanceRepository interface {
	// TryInsert 原子写入签到记录。
	//   - 写入成功：返回 rec 本身与 inserted=true
	//   - (session, student) 已有记录：返回已有记录与 inserted=false
	//   - 课次已取消或令牌失效且无已有记录：返回 ErrSessionNotLive
	TryInsert(ctx context.Context, rec *model.AttendanceRecord, guard InsertGuard) (*model.AttendanceRecord, bool, error)
	FindBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*model.AttendanceRecord, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.AttendanceRecord, error)
}

type attendanceRepo struct {
	db *gorm.DB
}

// NewAttendanceRepo 创建 AttendanceRepository 实例
func NewAttendanceRepo(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

// 条件插入：课次行与令牌行以 FOR SHARE 锁定，
// 与取消/重新签发（对同一行加写锁）串行化，先提交的取消会使本次插入不生效。
const guardedInsertSQL = `
INSERT INTO attendance_records
    (session_id, student_id, outcome, source, recorded_at,
     latitude, longitude, distance_m, device_id, device_info,
     created_at, created_by, updated_at, updated_by)
SELECT ?::uuid, ?::uuid, ?::varchar, ?::varchar, ?::timestamptz,
       ?::double precision, ?::double precision, ?::int, ?::varchar, ?::varchar,
       ?::timestamptz, ?::uuid, ?::timestamptz, ?::uuid
WHERE EXISTS (
    SELECT 1 FROM class_sessions cs
    WHERE cs.session_id = ?::uuid
      AND cs.is_cancelled = FALSE
      AND cs.deleted_at IS NULL
    FOR SHARE
)
AND (?::text = '' OR EXISTS (
    SELECT 1 FROM session_tokens st
    WHERE st.token = ?::text
      AND st.session_id = ?::uuid
      AND st.revoked_at IS NULL
      AND st.expires_at > ?::timestamptz
    FOR SHARE
))
ON CONFLICT (session_id, student_id) DO NOTHING
RETURNING record_id`

func (r *attendanceRepo) TryInsert(ctx context.Context, rec *model.AttendanceRecord, guard InsertGuard) (*model.AttendanceRecord, bool, error) {
	now := rec.RecordedAt
	var ids []string
	err := r.db.WithContext(ctx).Raw(guardedInsertSQL,
		rec.SessionID, rec.StudentID, string(rec.Outcome), rec.Source, rec.RecordedAt,
		rec.Latitude, rec.Longitude, rec.DistanceM, rec.DeviceID, rec.DeviceInfo,
		now, rec.CreatedBy, now, rec.CreatedBy,
		rec.SessionID,
		guard.Token, guard.Token, rec.SessionID, guard.Now,
	).Scan(&ids).Error
	if err != nil {
		return nil, false, err
	}

	if len(ids) == 1 {
		rec.RecordID = ids[0]
		rec.CreatedAt = now
		rec.UpdatedAt = now
		return rec, true, nil
	}

	existing, err := r.FindBySessionAndStudent(ctx, rec.SessionID, rec.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, pkgerrors.ErrSessionNotLive
		}
		return nil, false, err
	}
	return existing, false, nil
}

func (r *attendanceRepo) FindBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND student_id = ?", sessionID, studentID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *attendanceRepo) ListBySession(ctx context.Context, sessionID string) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("session_id = ?", sessionID).
		Order("recorded_at ASC").
		Find(&records).Error
	return records, err
}
