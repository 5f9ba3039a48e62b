package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devlpr-X/qr-attendance/internal/model"
	"github.com/devlpr-X/qr-attendance/internal/repository"
)

// BindingStatus 设备校验结果
type BindingStatus int

const (
	// BindingUnbound 学生尚无绑定且本次未携带设备 ID，不做设备校验
	BindingUnbound BindingStatus = iota
	// BindingFirst 本次扫码完成首次绑定
	BindingFirst
	// BindingBound 设备与已绑定设备一致
	BindingBound
	// BindingMismatch 设备与已绑定设备不一致
	BindingMismatch
)

func (s BindingStatus) String() string {
	switch s {
	case BindingFirst:
		return "first_binding"
	case BindingBound:
		return "bound"
	case BindingMismatch:
		return "mismatch"
	default:
		return "unbound"
	}
}

// BindingCache 设备绑定缓存（绑定不可变，无需失效）
type BindingCache interface {
	GetDeviceBinding(ctx context.Context, studentID string) (string, bool, error)
	SetDeviceBinding(ctx context.Context, studentID, deviceID string) error
}

// DeviceRegistry 学生与首个扫码设备的永久绑定
type DeviceRegistry struct {
	repo   *repository.Repository
	cache  BindingCache
	logger *zap.Logger
	now    func() time.Time
}

// NewDeviceRegistry 创建设备绑定登记处；cache 可为 nil
func NewDeviceRegistry(repo *repository.Repository, cache BindingCache, logger *zap.Logger) *DeviceRegistry {
	return &DeviceRegistry{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// BindOrCheck 首次携带设备 ID 时绑定，之后比对设备是否一致
func (d *DeviceRegistry) BindOrCheck(ctx context.Context, studentID, deviceID string) (BindingStatus, error) {
	stored, ok, err := d.lookup(ctx, studentID)
	if err != nil {
		return 0, err
	}
	if ok {
		return compareDevice(stored, deviceID), nil
	}
	if deviceID == "" {
		return BindingUnbound, nil
	}

	inserted, err := d.repo.Device.CreateIfAbsent(ctx, &model.DeviceBinding{
		StudentID:   studentID,
		DeviceID:    deviceID,
		FirstSeenAt: d.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("写入设备绑定失败: %w", err)
	}
	if inserted {
		d.remember(ctx, studentID, deviceID)
		d.logger.Info("学生设备首次绑定", zap.String("student_id", studentID))
		return BindingFirst, nil
	}

	// 并发的首次扫码已抢先绑定，以数据库中的结果为准
	b, err := d.repo.Device.Get(ctx, studentID)
	if err != nil {
		return 0, fmt.Errorf("读取设备绑定失败: %w", err)
	}
	d.remember(ctx, studentID, b.DeviceID)
	return compareDevice(b.DeviceID, deviceID), nil
}

func (d *DeviceRegistry) lookup(ctx context.Context, studentID string) (string, bool, error) {
	if d.cache != nil {
		v, ok, err := d.cache.GetDeviceBinding(ctx, studentID)
		if err != nil {
			d.logger.Warn("读取设备绑定缓存失败，回退数据库", zap.Error(err))
		} else if ok {
			return v, true, nil
		}
	}

	b, err := d.repo.Device.Get(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("读取设备绑定失败: %w", err)
	}
	d.remember(ctx, studentID, b.DeviceID)
	return b.DeviceID, true, nil
}

func (d *DeviceRegistry) remember(ctx context.Context, studentID, deviceID string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.SetDeviceBinding(ctx, studentID, deviceID); err != nil {
		d.logger.Warn("写入设备绑定缓存失败", zap.Error(err))
	}
}

func compareDevice(stored, supplied string) BindingStatus {
	if stored == supplied {
		return BindingBound
	}
	return BindingMismatch
}
