package model

import (
	"context"
	"time"

	"scribbly/internal/entity"
)

// Repository 定义数据库操作接口
type Repository interface {
	// 用户管理
	CreateUser(ctx context.Context, user *entity.DbUser) error
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error)
	DeleteUser(ctx context.Context, id uint) error
	CountUsers(ctx context.Context) (int64, error)

	// 用户当日用量（配额记账）
	UserUsage(ctx context.Context, userID uint) (count int, updatedAt time.Time, err error)
	ResetUserUsage(ctx context.Context, userID uint, count int, now time.Time) error
	IncrementUserUsage(ctx context.Context, userID uint, now time.Time) error

	// 生成记录
	CreateActivity(ctx context.Context, activity *entity.DbActivity) error
	GetActivity(ctx context.Context, id uint) (*entity.DbActivity, error)
	ListActivities(ctx context.Context, params *entity.ActivityQuery) ([]entity.DbActivity, *entity.Meta, error)
	DeleteActivity(ctx context.Context, id uint) error

	// 邮件订阅
	UpsertNewsletterSubscription(ctx context.Context, email, source string) (*entity.DbNewsletterSubscription, error)
	UnsubscribeNewsletter(ctx context.Context, email string) error
	ListNewsletterSubscriptions(ctx context.Context, params *entity.BaseParams) ([]entity.DbNewsletterSubscription, *entity.Meta, error)

	// 付费订阅
	CreateSubscription(ctx context.Context, sub *entity.DbSubscription) error
	GetSubscriptionByReference(ctx context.Context, reference string) (*entity.DbSubscription, error)
	GetLatestSubscriptionByUser(ctx context.Context, userID uint) (*entity.DbSubscription, error)
	UpdateSubscription(ctx context.Context, id uint, updates entity.SubscriptionUpdates) error

	// 服务商和模型
	CreateProvider(ctx context.Context, provider *entity.DbProvider) error
	UpdateProvider(ctx context.Context, id string, updates entity.ProviderUpdates) error
	DeleteProvider(ctx context.Context, id string) error
	ListProviders(ctx context.Context, includeInactive bool) ([]entity.DbProvider, error)
	GetProvider(ctx context.Context, id string) (*entity.DbProvider, error)
	GetProviderWithModel(ctx context.Context, providerID, modelID string, includeInactive bool) (*entity.DbProvider, *entity.DbModel, error)

	GetModel(ctx context.Context, providerID, modelID string) (*entity.DbModel, error)
	CreateModel(ctx context.Context, model *entity.DbModel) error
	UpdateModel(ctx context.Context, providerID, modelID string, updates entity.ModelUpdates) error
	DeleteModel(ctx context.Context, providerID, modelID string) error
	ListModels(ctx context.Context, providerID string, includeInactive bool) ([]entity.DbModel, error)
}
