package entity

import "time"

// UserUpdates 用户更新字段
type UserUpdates struct {
	DisplayName   *string
	Role          *string
	Plan          *string
	PlanExpiresAt **time.Time
	PasswordHash  *string
	IsActive      *bool
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u UserUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.DisplayName != nil {
		updates["display_name"] = *u.DisplayName
	}
	if u.Role != nil {
		updates["role"] = *u.Role
	}
	if u.Plan != nil {
		updates["plan"] = *u.Plan
	}
	if u.PlanExpiresAt != nil {
		updates["plan_expires_at"] = *u.PlanExpiresAt
	}
	if u.PasswordHash != nil {
		updates["password_hash"] = *u.PasswordHash
	}
	if u.IsActive != nil {
		updates["is_active"] = *u.IsActive
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u UserUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// ProviderUpdates 提供商更新字段
type ProviderUpdates struct {
	Name        *string
	Driver      *string
	Description *string
	APIKey      *string
	BaseURL     *string
	Config      *JSONMap
	IsActive    *bool
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u ProviderUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Name != nil {
		updates["name"] = *u.Name
	}
	if u.Driver != nil {
		updates["driver"] = *u.Driver
	}
	if u.Description != nil {
		updates["description"] = *u.Description
	}
	if u.APIKey != nil {
		updates["api_key"] = *u.APIKey
	}
	if u.BaseURL != nil {
		updates["base_url"] = *u.BaseURL
	}
	if u.Config != nil {
		updates["config"] = *u.Config
	}
	if u.IsActive != nil {
		updates["is_active"] = *u.IsActive
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u ProviderUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// ModelUpdates 模型更新字段
type ModelUpdates struct {
	Name           *string
	Description    *string
	SupportedSizes *StringArray
	Settings       *JSONMap
	IsActive       *bool
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u ModelUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Name != nil {
		updates["name"] = *u.Name
	}
	if u.Description != nil {
		updates["description"] = *u.Description
	}
	if u.SupportedSizes != nil {
		updates["supported_sizes"] = *u.SupportedSizes
	}
	if u.Settings != nil {
		updates["settings"] = *u.Settings
	}
	if u.IsActive != nil {
		updates["is_active"] = *u.IsActive
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u ModelUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// SubscriptionUpdates 订阅更新字段
type SubscriptionUpdates struct {
	SessionID        *string
	Status           *string
	CurrentPeriodEnd **time.Time
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u SubscriptionUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.SessionID != nil {
		updates["session_id"] = *u.SessionID
	}
	if u.Status != nil {
		updates["status"] = *u.Status
	}
	if u.CurrentPeriodEnd != nil {
		updates["current_period_end"] = *u.CurrentPeriodEnd
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u SubscriptionUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}
