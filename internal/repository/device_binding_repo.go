package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devlpr-X/qr-attendance/internal/model"
)

// DeviceBindingRepository 设备绑定数据访问接口
type DeviceBindingRepository interface {
	Get(ctx context.Context, studentID string) (*model.DeviceBinding, error)
	// CreateIfAbsent 仅在学生尚无绑定时写入，返回是否写入成功
	CreateIfAbsent(ctx context.Context, b *model.DeviceBinding) (bool, error)
}

type deviceBindingRepo struct {
	db *gorm.DB
}

// NewDeviceBindingRepo 创建 DeviceBindingRepository 实例
func NewDeviceBindingRepo(db *gorm.DB) DeviceBindingRepository {
	return &deviceBindingRepo{db: db}
}

func (r *deviceBindingRepo) Get(ctx context.Context, studentID string) (*model.DeviceBinding, error) {
	var b model.DeviceBinding
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *deviceBindingRepo) CreateIfAbsent(ctx context.Context, b *model.DeviceBinding) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}},
			DoNothing: true,
		}).
		Create(b)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
