package entity

import "time"

const (
	SubscriptionStatusPending  = "pending"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusExpired  = "expired"
)

// DbSubscription tracks one checkout attempt and the resulting premium
// subscription at the payment processor.
type DbSubscription struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint    `gorm:"column:user_id;index;not null" json:"user_id"`
	User   *DbUser `gorm:"foreignKey:UserID" json:"-"`

	// Reference 是我们生成的幂等引用，会原样带给支付服务商
	Reference string `gorm:"column:reference;type:varchar(64);uniqueIndex;not null" json:"reference"`
	SessionID string `gorm:"column:session_id;type:varchar(255);index" json:"session_id"`

	Plan             string     `gorm:"column:plan;type:varchar(32);not null" json:"plan"`
	Status           string     `gorm:"column:status;type:varchar(32);index;not null" json:"status"`
	CurrentPeriodEnd *time.Time `gorm:"column:current_period_end" json:"current_period_end,omitempty"`
}

// TableName 指定表名
func (DbSubscription) TableName() string {
	return "subscriptions"
}

type CheckoutResponse struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
}

type SubscriptionResponse struct {
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}
