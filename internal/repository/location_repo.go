package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/devlpr-X/qr-attendance/internal/model"
)

// LocationRepository 地点数据访问接口
type LocationRepository interface {
	GetByID(ctx context.Context, id string) (*model.Location, error)
}

type locationRepo struct {
	db *gorm.DB
}

// NewLocationRepo 创建 LocationRepository 实例
func NewLocationRepo(db *gorm.DB) LocationRepository {
	return &locationRepo{db: db}
}

func (r *locationRepo) GetByID(ctx context.Context, id string) (*model.Location, error) {
	var loc model.Location
	err := r.db.WithContext(ctx).
		Where("location_id = ?", id).
		First(&loc).Error
	if err != nil {
		return nil, err
	}
	return &loc, nil
}
