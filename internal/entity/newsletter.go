package entity

import "time"

// DbNewsletterSubscription stores a parent newsletter signup.
type DbNewsletterSubscription struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email          string     `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	Source         string     `gorm:"column:source;type:varchar(64)" json:"source"`
	UnsubscribedAt *time.Time `gorm:"column:unsubscribed_at" json:"unsubscribed_at,omitempty"`
}

// TableName 指定表名
func (DbNewsletterSubscription) TableName() string {
	return "newsletter_subscriptions"
}

type NewsletterSubscribeRequest struct {
	Email  string `json:"email" binding:"required,email"`
	Source string `json:"source"`
}

type NewsletterListResponse struct {
	Subscriptions []DbNewsletterSubscription `json:"subscriptions"`
	Meta          *Meta                      `json:"meta"`
}
