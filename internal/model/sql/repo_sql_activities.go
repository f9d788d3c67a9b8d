package sql

import (
	"context"
	"fmt"
	"strings"

	"scribbly/internal/entity"

	"gorm.io/gorm"
)

// CreateActivity 保存一条成功的生成记录。
func (r *GormRepository) CreateActivity(ctx context.Context, activity *entity.DbActivity) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if activity == nil {
		return fmt.Errorf("activity is nil")
	}
	return r.db.WithContext(ctx).Create(activity).Error
}

// GetActivity 按 ID 读取生成记录。
func (r *GormRepository) GetActivity(ctx context.Context, id uint) (*entity.DbActivity, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid activity id")
	}
	var activity entity.DbActivity
	if err := r.db.WithContext(ctx).First(&activity, id).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

// ListActivities 分页查询生成记录。非管理员查询必须带 UserID。
func (r *GormRepository) ListActivities(ctx context.Context, params *entity.ActivityQuery) ([]entity.DbActivity, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbActivity{})
	if params != nil {
		if !params.IncludeAll {
			query = query.Where("user_id = ?", params.UserID)
		}
		if kind := strings.TrimSpace(params.Kind); kind != "" {
			query = query.Where("kind = ?", kind)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var base *entity.BaseParams
	if params != nil {
		base = &params.BaseParams
	}
	page, pageSize, offset := normalizePaging(base)

	var activities []entity.DbActivity
	if err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&activities).Error; err != nil {
		return nil, nil, err
	}

	meta := r.calculatePagination(total, page, pageSize)
	return activities, meta, nil
}

// DeleteActivity 删除一条生成记录。
func (r *GormRepository) DeleteActivity(ctx context.Context, id uint) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return fmt.Errorf("invalid activity id")
	}
	result := r.db.WithContext(ctx).Delete(&entity.DbActivity{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
