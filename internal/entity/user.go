package entity

import "time"

const (
	UserRoleSuperAdmin = "super_admin"
	UserRoleAdmin      = "admin"
	UserRoleUser       = "user"
)

const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// DbUser represents a persisted parent/guardian account.
//
// GenerationCount and UsageUpdatedAt together form the daily usage counter
// for FREE-plan accounts: the count is reset when UsageUpdatedAt falls on an
// earlier calendar day than the current request (server-local time), and is
// only ever incremented after a generation succeeded.
type DbUser struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Email        string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	DisplayName  string    `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	Role         string    `gorm:"column:role;type:varchar(50);index;not null" json:"role"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`

	Plan          string     `gorm:"column:plan;type:varchar(32);index;not null;default:free" json:"plan"`
	PlanExpiresAt *time.Time `gorm:"column:plan_expires_at" json:"plan_expires_at,omitempty"`

	GenerationCount int       `gorm:"column:generation_count;not null;default:0" json:"generation_count"`
	UsageUpdatedAt  time.Time `gorm:"column:usage_updated_at" json:"usage_updated_at"`
}

// TableName overrides default pluralised name.
func (DbUser) TableName() string {
	return "users"
}

// IsPremium reports whether the account currently has an unlimited plan.
func (u *DbUser) IsPremium() bool {
	if u == nil {
		return false
	}
	return u.Plan == PlanPremium
}

// UserSummary is a lightweight user description returned to clients.
type UserSummary struct {
	ID              uint       `json:"id"`
	Email           string     `json:"email"`
	DisplayName     string     `json:"display_name"`
	Role            string     `json:"role"`
	Plan            string     `json:"plan"`
	PlanExpiresAt   *time.Time `json:"plan_expires_at,omitempty"`
	IsActive        bool       `json:"is_active"`
	GenerationCount int        `json:"generation_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// UserQuery supports listing users with pagination.
type UserQuery struct {
	BaseParams
	Role    string `json:"role" form:"role" query:"role"`
	Plan    string `json:"plan" form:"plan" query:"plan"`
	Keyword string `json:"keyword" form:"keyword" query:"keyword"`
}

type AuthLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthRegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name"`
}

type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

type UserCreateRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role" binding:"required"`
	Plan        string `json:"plan"`
	IsActive    *bool  `json:"is_active"`
}

type UserUpdateRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Role        *string `json:"role,omitempty"`
	Plan        *string `json:"plan,omitempty"`
	Password    *string `json:"password,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type UserListResponse struct {
	Users []UserSummary `json:"users"`
	Meta  *Meta         `json:"meta"`
}
