package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"scribbly/internal/config"
	"scribbly/internal/entity"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrNotConfigured     = errors.New("billing is not configured")
	ErrUnknownReference  = errors.New("unknown subscription reference")
	ErrAlreadySubscribed = errors.New("user already has an active subscription")
)

// Store 是订阅流程需要的持久化操作子集。
type Store interface {
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	CreateSubscription(ctx context.Context, sub *entity.DbSubscription) error
	GetSubscriptionByReference(ctx context.Context, reference string) (*entity.DbSubscription, error)
	GetLatestSubscriptionByUser(ctx context.Context, userID uint) (*entity.DbSubscription, error)
	UpdateSubscription(ctx context.Context, id uint, updates entity.SubscriptionUpdates) error
}

// CheckoutClient abstracts the payment processor API for tests.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSessionResponse, error)
}

// Service 负责升级结账与 webhook 回调的状态流转。
type Service struct {
	client        CheckoutClient
	store         Store
	webhookSecret string
	priceCents    int64
	currency      string
	successURL    string
	cancelURL     string
}

// NewService builds the billing service. Returns ErrNotConfigured when the
// processor endpoint is absent, so callers can disable the upgrade routes.
func NewService(cfg config.Config, store Store) (*Service, error) {
	if strings.TrimSpace(cfg.BillingBaseURL) == "" {
		return nil, ErrNotConfigured
	}
	client, err := NewClient(ClientConfig{
		BaseURL: cfg.BillingBaseURL,
		APIKey:  cfg.BillingAPIKey,
	})
	if err != nil {
		return nil, err
	}
	return &Service{
		client:        client,
		store:         store,
		webhookSecret: cfg.BillingWebhookSecret,
		priceCents:    cfg.BillingPremiumPriceCents,
		currency:      cfg.BillingCurrency,
		successURL:    cfg.BillingSuccessURL,
		cancelURL:     cfg.BillingCancelURL,
	}, nil
}

// NewServiceWithClient is used by tests to inject a fake processor client.
func NewServiceWithClient(client CheckoutClient, store Store, webhookSecret string, priceCents int64, currency string) *Service {
	return &Service{
		client:        client,
		store:         store,
		webhookSecret: webhookSecret,
		priceCents:    priceCents,
		currency:      currency,
	}
}

// StartCheckout 为用户创建一条 pending 订阅并发起托管结账。
func (s *Service) StartCheckout(ctx context.Context, userID uint) (*entity.CheckoutResponse, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user failed: %w", err)
	}
	if user.IsPremium() {
		return nil, ErrAlreadySubscribed
	}

	reference := uuid.NewString()
	sub := &entity.DbSubscription{
		UserID:    userID,
		Reference: reference,
		Plan:      entity.PlanPremium,
		Status:    entity.SubscriptionStatusPending,
	}
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription record failed: %w", err)
	}

	session, err := s.client.CreateCheckoutSession(ctx, &CheckoutSessionRequest{
		Reference:     reference,
		AmountCents:   s.priceCents,
		Currency:      s.currency,
		CustomerEmail: user.Email,
		Description:   "Premium monthly subscription",
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
		Metadata: map[string]string{
			"user_id": fmt.Sprintf("%d", userID),
		},
	})
	if err != nil {
		return nil, err
	}

	if session.SessionID != "" {
		sessionID := session.SessionID
		if err := s.store.UpdateSubscription(ctx, sub.ID, entity.SubscriptionUpdates{SessionID: &sessionID}); err != nil {
			logrus.WithError(err).WithField("reference", reference).Warn("store checkout session id failed")
		}
	}

	return &entity.CheckoutResponse{
		Reference:   reference,
		RedirectURL: session.RedirectURL,
	}, nil
}

// VerifySignature checks the HMAC-SHA256 signature of a webhook payload.
func (s *Service) VerifySignature(payload []byte, signature string) bool {
	if s.webhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// HandleEvent 根据回调事件推进订阅状态，并同步用户的套餐字段。
// 重复投递同一事件是幂等的。
func (s *Service) HandleEvent(ctx context.Context, event *WebhookEvent) error {
	sub, err := s.store.GetSubscriptionByReference(ctx, event.Reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownReference
		}
		return fmt.Errorf("load subscription failed: %w", err)
	}

	log := logrus.WithFields(logrus.Fields{
		"reference": event.Reference,
		"event":     event.Type,
		"user_id":   sub.UserID,
	})

	switch event.Type {
	case EventPaymentSucceeded:
		if sub.Status == entity.SubscriptionStatusActive {
			log.Info("billing_event_duplicate")
			return nil
		}
		periodEnd := event.CurrentPeriodEnd
		if periodEnd == nil {
			end := time.Now().AddDate(0, 1, 0)
			periodEnd = &end
		}
		status := entity.SubscriptionStatusActive
		if err := s.store.UpdateSubscription(ctx, sub.ID, entity.SubscriptionUpdates{
			Status:           &status,
			CurrentPeriodEnd: &periodEnd,
		}); err != nil {
			return fmt.Errorf("activate subscription failed: %w", err)
		}
		plan := entity.PlanPremium
		if err := s.store.UpdateUser(ctx, sub.UserID, entity.UserUpdates{
			Plan:          &plan,
			PlanExpiresAt: &periodEnd,
		}); err != nil {
			return fmt.Errorf("upgrade user plan failed: %w", err)
		}
		log.Info("billing_subscription_activated")
		return nil

	case EventPaymentFailed:
		if sub.Status != entity.SubscriptionStatusPending {
			log.Info("billing_event_duplicate")
			return nil
		}
		status := entity.SubscriptionStatusCanceled
		if err := s.store.UpdateSubscription(ctx, sub.ID, entity.SubscriptionUpdates{Status: &status}); err != nil {
			return fmt.Errorf("cancel subscription failed: %w", err)
		}
		log.Info("billing_checkout_failed")
		return nil

	case EventSubscriptionCanceled, EventSubscriptionExpired:
		status := entity.SubscriptionStatusCanceled
		if event.Type == EventSubscriptionExpired {
			status = entity.SubscriptionStatusExpired
		}
		if sub.Status == status {
			log.Info("billing_event_duplicate")
			return nil
		}
		if err := s.store.UpdateSubscription(ctx, sub.ID, entity.SubscriptionUpdates{Status: &status}); err != nil {
			return fmt.Errorf("update subscription status failed: %w", err)
		}
		plan := entity.PlanFree
		var noExpiry *time.Time
		if err := s.store.UpdateUser(ctx, sub.UserID, entity.UserUpdates{
			Plan:          &plan,
			PlanExpiresAt: &noExpiry,
		}); err != nil {
			return fmt.Errorf("downgrade user plan failed: %w", err)
		}
		log.Info("billing_subscription_ended")
		return nil

	default:
		log.Warn("billing_event_ignored")
		return nil
	}
}

// Subscription 返回用户最近一次订阅的状态。
func (s *Service) Subscription(ctx context.Context, userID uint) (*entity.SubscriptionResponse, error) {
	sub, err := s.store.GetLatestSubscriptionByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &entity.SubscriptionResponse{Plan: entity.PlanFree, Status: "none"}, nil
		}
		return nil, err
	}
	return &entity.SubscriptionResponse{
		Plan:             sub.Plan,
		Status:           sub.Status,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}, nil
}
