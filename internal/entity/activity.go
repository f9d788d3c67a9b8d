package entity

import "time"

const (
	ActivityKindColoring = "coloring"
	ActivityKindTracing  = "tracing"
)

// DbActivity stores one successful generation. Records are append-only and
// created only after the upstream image call succeeded.
type DbActivity struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID   uint    `gorm:"column:user_id;index" json:"user_id"`
	User     *DbUser `gorm:"foreignKey:UserID" json:"-"`
	GuestKey string  `gorm:"column:guest_key;type:varchar(255);index" json:"-"`

	Kind           string `gorm:"column:kind;type:varchar(32);index;not null" json:"kind"`
	Prompt         string `gorm:"column:prompt;type:text" json:"prompt"`
	OriginalPrompt string `gorm:"column:original_prompt;type:text" json:"original_prompt"`
	ImagePath      string `gorm:"column:image_path;type:text" json:"image_path"`

	ProviderID string `gorm:"column:provider_id;type:varchar(255);index" json:"provider_id"`
	ModelID    string `gorm:"column:model_id;type:varchar(255);index" json:"model_id"`

	// 仅 tracing 记录填写
	TraceKind    string `gorm:"column:trace_kind;type:varchar(32)" json:"trace_kind,omitempty"`
	TraceContent string `gorm:"column:trace_content;type:varchar(64)" json:"trace_content,omitempty"`
	TraceStyle   string `gorm:"column:trace_style;type:varchar(32)" json:"trace_style,omitempty"`
}

// TableName 指定表名
func (DbActivity) TableName() string {
	return "activities"
}

type ActivityQuery struct {
	BaseParams
	Kind       string `json:"kind" form:"kind" query:"kind"`
	UserID     uint   `json:"-" form:"-" query:"-"`
	IncludeAll bool   `json:"-" form:"-" query:"-"`
}

type ActivityItem struct {
	ID             uint      `json:"id"`
	Kind           string    `json:"kind"`
	Prompt         string    `json:"prompt"`
	OriginalPrompt string    `json:"original_prompt"`
	ImageURL       string    `json:"image_url"`
	ProviderID     string    `json:"provider_id"`
	ModelID        string    `json:"model_id"`
	TraceKind      string    `json:"trace_kind,omitempty"`
	TraceContent   string    `json:"trace_content,omitempty"`
	TraceStyle     string    `json:"trace_style,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ActivityListResponse struct {
	Activities []ActivityItem `json:"activities"`
	Meta       *Meta          `json:"meta"`
}

type ActivityDetailResponse struct {
	Activity ActivityItem `json:"activity"`
}
