package billing

import "time"

// 支付服务商回调的事件类型。
const (
	EventPaymentSucceeded     = "payment_succeeded"
	EventPaymentFailed        = "payment_failed"
	EventSubscriptionCanceled = "subscription_canceled"
	EventSubscriptionExpired  = "subscription_expired"
)

// CheckoutSessionRequest 创建托管结账会话的请求体。
type CheckoutSessionRequest struct {
	Reference     string            `json:"reference"`
	AmountCents   int64             `json:"amount_cents"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	Description   string            `json:"description,omitempty"`
	SuccessURL    string            `json:"success_url,omitempty"`
	CancelURL     string            `json:"cancel_url,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CheckoutSessionResponse 是支付服务商返回的会话信息。
type CheckoutSessionResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
	Status      string `json:"status"`
}

// SessionStatus 查询会话状态的返回。
type SessionStatus struct {
	SessionID string `json:"session_id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// WebhookEvent 是支付服务商推送的回调事件。
type WebhookEvent struct {
	Type             string     `json:"type"`
	Reference        string     `json:"reference"`
	SessionID        string     `json:"session_id"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}
