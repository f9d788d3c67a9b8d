package sql

import (
	"context"
	"fmt"
	"strings"

	"scribbly/internal/entity"

	"gorm.io/gorm"
)

// CreateSubscription 保存一条结账记录。
func (r *GormRepository) CreateSubscription(ctx context.Context, sub *entity.DbSubscription) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if sub == nil {
		return fmt.Errorf("subscription is nil")
	}
	if strings.TrimSpace(sub.Reference) == "" {
		return fmt.Errorf("subscription reference is required")
	}
	return r.db.WithContext(ctx).Create(sub).Error
}

// GetSubscriptionByReference 按引用号查询订阅（webhook 回调用）。
func (r *GormRepository) GetSubscriptionByReference(ctx context.Context, reference string) (*entity.DbSubscription, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return nil, fmt.Errorf("reference is empty")
	}

	var sub entity.DbSubscription
	if err := r.db.WithContext(ctx).Where("reference = ?", trimmed).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetLatestSubscriptionByUser 返回用户最近的一条订阅记录。
func (r *GormRepository) GetLatestSubscriptionByUser(ctx context.Context, userID uint) (*entity.DbSubscription, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if userID == 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	var sub entity.DbSubscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateSubscription 更新订阅字段。
func (r *GormRepository) UpdateSubscription(ctx context.Context, id uint, updates entity.SubscriptionUpdates) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return fmt.Errorf("invalid subscription id")
	}
	if updates.IsEmpty() {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&entity.DbSubscription{}).Where("id = ?", id).Updates(updates.ToMap())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
