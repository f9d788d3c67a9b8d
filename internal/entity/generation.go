package entity

// GenerateRequest 是着色页与描红页生成接口的请求体。
type GenerateRequest struct {
	Prompt     string `json:"prompt"`
	ProviderID string `json:"provider_id"`
	ModelID    string `json:"model_id"`
	Size       string `json:"size"`
}

// GenerateResponse 是生成成功时返回给前端的结构。
// GuestRemaining 仅在游客请求时返回。
type GenerateResponse struct {
	Success        bool   `json:"success"`
	ImageURL       string `json:"imageUrl"`
	Prompt         string `json:"prompt"`
	OriginalPrompt string `json:"originalPrompt"`
	GuestRemaining *int   `json:"guestRemaining,omitempty"`
}

// QuotaStatusResponse 描述当前请求者的配额状态。
type QuotaStatusResponse struct {
	Plan      string `json:"plan"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
}

// LimitsResponse 公布各档位的生成上限，供前端做提示。
type LimitsResponse struct {
	GuestLimit       int `json:"guest_limit"`
	GuestClientLimit int `json:"guest_client_limit"`
	FreeDailyLimit   int `json:"free_daily_limit"`
}
