package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scribbly/internal/entity"

	"gorm.io/gorm"
)

// UpsertNewsletterSubscription 订阅邮件列表。重复订阅是幂等的，
// 已退订的地址重新订阅时清除退订标记。
func (r *GormRepository) UpsertNewsletterSubscription(ctx context.Context, email, source string) (*entity.DbNewsletterSubscription, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, fmt.Errorf("email is empty")
	}

	var sub entity.DbNewsletterSubscription
	err := r.db.WithContext(ctx).Where("email = ?", normalized).First(&sub).Error
	switch {
	case err == nil:
		if sub.UnsubscribedAt != nil {
			if err := r.db.WithContext(ctx).Model(&sub).Updates(map[string]interface{}{
				"unsubscribed_at": nil,
				"source":          strings.TrimSpace(source),
			}).Error; err != nil {
				return nil, err
			}
			sub.UnsubscribedAt = nil
		}
		return &sub, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = entity.DbNewsletterSubscription{
			Email:  normalized,
			Source: strings.TrimSpace(source),
		}
		if err := r.db.WithContext(ctx).Create(&sub).Error; err != nil {
			return nil, err
		}
		return &sub, nil
	default:
		return nil, err
	}
}

// UnsubscribeNewsletter 标记退订时间。
func (r *GormRepository) UnsubscribeNewsletter(ctx context.Context, email string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return fmt.Errorf("email is empty")
	}

	result := r.db.WithContext(ctx).
		Model(&entity.DbNewsletterSubscription{}).
		Where("email = ? AND unsubscribed_at IS NULL", normalized).
		Update("unsubscribed_at", gorm.Expr("CURRENT_TIMESTAMP"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListNewsletterSubscriptions 分页查询订阅列表（管理端）。
func (r *GormRepository) ListNewsletterSubscriptions(ctx context.Context, params *entity.BaseParams) ([]entity.DbNewsletterSubscription, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbNewsletterSubscription{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	page, pageSize, offset := normalizePaging(params)

	var subs []entity.DbNewsletterSubscription
	if err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&subs).Error; err != nil {
		return nil, nil, err
	}

	meta := r.calculatePagination(total, page, pageSize)
	return subs, meta, nil
}
