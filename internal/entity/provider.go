package entity

import "time"

const (
	ProviderDriverOpenRouter = "openrouter"
	ProviderDriverGemini     = "gemini"
	ProviderDriverFal        = "fal"
	ProviderDriverVolcengine = "volcengine"
)

// DbProvider stores configurable image provider metadata and credentials.
type DbProvider struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name        string    `gorm:"type:varchar(128);not null" json:"name"`
	Driver      string    `gorm:"type:varchar(64);not null" json:"driver"`
	Description string    `gorm:"type:text" json:"description"`
	APIKey      string    `gorm:"type:text" json:"api_key"`
	BaseURL     string    `gorm:"type:text" json:"base_url"`
	Config      JSONMap   `gorm:"type:json" json:"config"`
	IsActive    bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Models []DbModel `gorm:"foreignKey:ProviderID" json:"models,omitempty"`
}

// TableName overrides the table name for DbProvider.
func (DbProvider) TableName() string {
	return "llm_providers"
}

// DbModel stores provider-specific model configuration.
type DbModel struct {
	ID uint `gorm:"primarykey" json:"id"`

	ProviderID string `gorm:"column:provider_id;type:varchar(64);index:idx_provider_model,priority:1;not null" json:"provider_id"`
	ModelID    string `gorm:"column:model_id;type:varchar(255);index:idx_provider_model,priority:2;not null" json:"model_id"`

	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	SupportedSizes StringArray `gorm:"column:supported_sizes;type:json" json:"supported_sizes"`
	Settings       JSONMap     `gorm:"column:settings;type:json" json:"settings"`

	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name for DbModel.
func (DbModel) TableName() string {
	return "llm_models"
}

// ProviderSummary is the provider view returned to clients, credentials
// stripped.
type ProviderSummary struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Driver      string        `json:"driver"`
	Description string        `json:"description"`
	IsActive    bool          `json:"is_active"`
	Models      []ModelDetail `json:"models"`
}

type ModelDetail struct {
	ID             uint     `json:"id"`
	ModelID        string   `json:"model_id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	SupportedSizes []string `json:"supported_sizes"`
	IsActive       bool     `json:"is_active"`
}

// ToSummary converts a DbProvider with its models into a ProviderSummary.
func (p DbProvider) ToSummary(models []DbModel) ProviderSummary {
	out := ProviderSummary{
		ID:          p.ID,
		Name:        p.Name,
		Driver:      p.Driver,
		Description: p.Description,
		IsActive:    p.IsActive,
	}

	details := make([]ModelDetail, 0, len(models))
	for _, model := range models {
		details = append(details, ModelDetail{
			ID:             model.ID,
			ModelID:        model.ModelID,
			Name:           model.Name,
			Description:    model.Description,
			SupportedSizes: model.SupportedSizes.ToSlice(),
			IsActive:       model.IsActive,
		})
	}
	out.Models = details
	return out
}

type ProviderCreateRequest struct {
	ID          string  `json:"id" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Driver      string  `json:"driver" binding:"required"`
	Description string  `json:"description"`
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Config      JSONMap `json:"config"`
	IsActive    *bool   `json:"is_active"`
}

type ProviderUpdateRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	APIKey      *string  `json:"api_key,omitempty"`
	BaseURL     *string  `json:"base_url,omitempty"`
	Config      *JSONMap `json:"config,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

type ModelCreateRequest struct {
	ModelID        string   `json:"model_id" binding:"required"`
	Name           string   `json:"name" binding:"required"`
	Description    string   `json:"description"`
	SupportedSizes []string `json:"supported_sizes"`
	Settings       JSONMap  `json:"settings"`
	IsActive       *bool    `json:"is_active"`
}

type ModelUpdateRequest struct {
	Name           *string   `json:"name,omitempty"`
	Description    *string   `json:"description,omitempty"`
	SupportedSizes *[]string `json:"supported_sizes,omitempty"`
	Settings       *JSONMap  `json:"settings,omitempty"`
	IsActive       *bool     `json:"is_active,omitempty"`
}

type ProviderListResponse struct {
	Providers []ProviderSummary `json:"providers"`
}
