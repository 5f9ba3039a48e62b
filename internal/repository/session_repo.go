package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devlpr-X/qr-attendance/internal/model"
	pkgerrors "github.com/devlpr-X/qr-attendance/pkg/errors"
)

// SessionRepository 课次与签到令牌数据访问接口
type SessionRepository interface {
	GetByID(ctx context.Context, id string) (*model.ClassSession, error)
	// UpsertForPattern 按 (pattern_id, session_date) 插入课次，已存在时不做任何修改并返回 false
	UpsertForPattern(ctx context.Context, s *model.ClassSession) (bool, error)
	// Create 创建临时课次（无排课规律）
	Create(ctx context.Context, s *model.ClassSession) error
	// RotateToken 作废课次的旧令牌并写入新令牌，整个过程持有课次行锁
	// 课次已取消返回 ErrSessionCancelled，课次不存在返回 gorm.ErrRecordNotFound
	RotateToken(ctx context.Context, tok *model.SessionToken) error
	// Cancel 取消课次并作废其令牌；重复取消为幂等操作
	Cancel(ctx context.Context, sessionID string, at time.Time, callerID string) error
	// FindToken 按令牌查询台账记录（含所属课次与课程）
	FindToken(ctx context.Context, token string) (*model.SessionToken, error)
}

type sessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo 创建 SessionRepository 实例
func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.ClassSession, error) {
	var s model.ClassSession
	err := r.db.WithContext(ctx).
		Preload("Course").
		Preload("Teacher").
		Preload("TimeSlot").
		Where("session_id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) UpsertForPattern(ctx context.Context, s *model.ClassSession) (bool, error) {
	result := r.db.WithContext(ctx).
		Omit("Course", "Teacher", "TimeSlot").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pattern_id"}, {Name: "session_date"}},
			DoNothing: true,
		}).
		Create(s)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *sessionRepo) Create(ctx context.Context, s *model.ClassSession) error {
	return r.db.WithContext(ctx).Omit("Course", "Teacher", "TimeSlot").Create(s).Error
}

func (r *sessionRepo) RotateToken(ctx context.Context, tok *model.SessionToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess model.ClassSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id = ?", tok.SessionID).
			First(&sess).Error
		if err != nil {
			return err
		}
		if sess.IsCancelled {
			return pkgerrors.ErrSessionCancelled
		}

		if err := tx.Model(&model.SessionToken{}).
			Where("session_id = ? AND revoked_at IS NULL", tok.SessionID).
			Update("revoked_at", tok.IssuedAt).Error; err != nil {
			return err
		}

		if err := tx.Omit("Session").Create(tok).Error; err != nil {
			return err
		}

		return tx.Model(&model.ClassSession{}).
			Where("session_id = ?", tok.SessionID).
			Updates(map[string]interface{}{
				"token":      tok.Token,
				"issued_at":  tok.IssuedAt,
				"expires_at": tok.ExpiresAt,
				"updated_at": tok.IssuedAt,
			}).Error
	})
}

func (r *sessionRepo) Cancel(ctx context.Context, sessionID string, at time.Time, callerID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess model.ClassSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id = ?", sessionID).
			First(&sess).Error
		if err != nil {
			return err
		}
		if sess.IsCancelled {
			return nil
		}

		updates := map[string]interface{}{
			"is_cancelled": true,
			"cancelled_at": at,
			"updated_at":   at,
		}
		if callerID != "" {
			updates["updated_by"] = callerID
		}
		if err := tx.Model(&model.ClassSession{}).
			Where("session_id = ?", sessionID).
			Updates(updates).Error; err != nil {
			return err
		}

		return tx.Model(&model.SessionToken{}).
			Where("session_id = ? AND revoked_at IS NULL", sessionID).
			Update("revoked_at", at).Error
	})
}

func (r *sessionRepo) FindToken(ctx context.Context, token string) (*model.SessionToken, error) {
	var t model.SessionToken
	err := r.db.WithContext(ctx).
		Preload("Session").
		Preload("Session.Course").
		Where("token = ?", token).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}
