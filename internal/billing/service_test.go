package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"scribbly/internal/entity"

	"gorm.io/gorm"
)

type fakeBillingStore struct {
	users map[uint]*entity.DbUser
	subs  map[string]*entity.DbSubscription

	nextSubID uint
}

func newFakeBillingStore() *fakeBillingStore {
	return &fakeBillingStore{
		users: make(map[uint]*entity.DbUser),
		subs:  make(map[string]*entity.DbSubscription),
	}
}

func (f *fakeBillingStore) GetUserByID(_ context.Context, id uint) (*entity.DbUser, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeBillingStore) UpdateUser(_ context.Context, id uint, updates entity.UserUpdates) error {
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if updates.Plan != nil {
		user.Plan = *updates.Plan
	}
	if updates.PlanExpiresAt != nil {
		user.PlanExpiresAt = *updates.PlanExpiresAt
	}
	return nil
}

func (f *fakeBillingStore) CreateSubscription(_ context.Context, sub *entity.DbSubscription) error {
	f.nextSubID++
	sub.ID = f.nextSubID
	f.subs[sub.Reference] = sub
	return nil
}

func (f *fakeBillingStore) GetSubscriptionByReference(_ context.Context, reference string) (*entity.DbSubscription, error) {
	sub, ok := f.subs[reference]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return sub, nil
}

func (f *fakeBillingStore) GetLatestSubscriptionByUser(_ context.Context, userID uint) (*entity.DbSubscription, error) {
	var latest *entity.DbSubscription
	for _, sub := range f.subs {
		if sub.UserID != userID {
			continue
		}
		if latest == nil || sub.ID > latest.ID {
			latest = sub
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (f *fakeBillingStore) UpdateSubscription(_ context.Context, id uint, updates entity.SubscriptionUpdates) error {
	for _, sub := range f.subs {
		if sub.ID != id {
			continue
		}
		if updates.SessionID != nil {
			sub.SessionID = *updates.SessionID
		}
		if updates.Status != nil {
			sub.Status = *updates.Status
		}
		if updates.CurrentPeriodEnd != nil {
			sub.CurrentPeriodEnd = *updates.CurrentPeriodEnd
		}
		return nil
	}
	return gorm.ErrRecordNotFound
}

type fakeCheckoutClient struct {
	lastRequest *CheckoutSessionRequest
	err         error
}

func (f *fakeCheckoutClient) CreateCheckoutSession(_ context.Context, req *CheckoutSessionRequest) (*CheckoutSessionResponse, error) {
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	return &CheckoutSessionResponse{
		SessionID:   "sess_abc",
		RedirectURL: "https://pay.example.com/sess_abc",
		Status:      "created",
	}, nil
}

func TestStartCheckout(t *testing.T) {
	store := newFakeBillingStore()
	store.users[7] = &entity.DbUser{ID: 7, Email: "parent@example.com", Plan: entity.PlanFree}
	client := &fakeCheckoutClient{}
	svc := NewServiceWithClient(client, store, "secret", 499, "USD")

	resp, err := svc.StartCheckout(context.Background(), 7)
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if resp.Reference == "" {
		t.Fatal("expected a non-empty reference")
	}
	if resp.RedirectURL != "https://pay.example.com/sess_abc" {
		t.Errorf("redirect url = %q", resp.RedirectURL)
	}

	sub, err := store.GetSubscriptionByReference(context.Background(), resp.Reference)
	if err != nil {
		t.Fatalf("subscription not persisted: %v", err)
	}
	if sub.Status != entity.SubscriptionStatusPending {
		t.Errorf("status = %q, want pending", sub.Status)
	}
	if sub.SessionID != "sess_abc" {
		t.Errorf("session id = %q, want sess_abc", sub.SessionID)
	}
	if client.lastRequest.CustomerEmail != "parent@example.com" {
		t.Errorf("customer email = %q", client.lastRequest.CustomerEmail)
	}
	if client.lastRequest.AmountCents != 499 || client.lastRequest.Currency != "USD" {
		t.Errorf("unexpected amount/currency: %+v", client.lastRequest)
	}
}

func TestStartCheckoutRejectsPremiumUser(t *testing.T) {
	store := newFakeBillingStore()
	store.users[3] = &entity.DbUser{ID: 3, Email: "p@example.com", Plan: entity.PlanPremium}
	svc := NewServiceWithClient(&fakeCheckoutClient{}, store, "secret", 499, "USD")

	if _, err := svc.StartCheckout(context.Background(), 3); !errors.Is(err, ErrAlreadySubscribed) {
		t.Errorf("err = %v, want ErrAlreadySubscribed", err)
	}
}

func TestHandlePaymentSucceeded(t *testing.T) {
	store := newFakeBillingStore()
	store.users[7] = &entity.DbUser{ID: 7, Plan: entity.PlanFree}
	periodEnd := time.Date(2026, 9, 28, 0, 0, 0, 0, time.UTC)
	store.subs["ref-1"] = &entity.DbSubscription{
		ID: 1, UserID: 7, Reference: "ref-1",
		Plan: entity.PlanPremium, Status: entity.SubscriptionStatusPending,
	}
	svc := NewServiceWithClient(&fakeCheckoutClient{}, store, "secret", 499, "USD")

	event := &WebhookEvent{
		Type:             EventPaymentSucceeded,
		Reference:        "ref-1",
		CurrentPeriodEnd: &periodEnd,
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if got := store.subs["ref-1"].Status; got != entity.SubscriptionStatusActive {
		t.Errorf("subscription status = %q, want active", got)
	}
	if got := store.users[7].Plan; got != entity.PlanPremium {
		t.Errorf("user plan = %q, want premium", got)
	}
	if store.users[7].PlanExpiresAt == nil || !store.users[7].PlanExpiresAt.Equal(periodEnd) {
		t.Errorf("plan expires at = %v, want %v", store.users[7].PlanExpiresAt, periodEnd)
	}

	// 同一事件重复投递应当是无害的
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("duplicate HandleEvent: %v", err)
	}
	if got := store.users[7].Plan; got != entity.PlanPremium {
		t.Errorf("plan after duplicate = %q, want premium", got)
	}
}

func TestHandleSubscriptionCanceled(t *testing.T) {
	store := newFakeBillingStore()
	now := time.Now()
	store.users[7] = &entity.DbUser{ID: 7, Plan: entity.PlanPremium, PlanExpiresAt: &now}
	store.subs["ref-2"] = &entity.DbSubscription{
		ID: 2, UserID: 7, Reference: "ref-2",
		Plan: entity.PlanPremium, Status: entity.SubscriptionStatusActive,
	}
	svc := NewServiceWithClient(&fakeCheckoutClient{}, store, "secret", 499, "USD")

	err := svc.HandleEvent(context.Background(), &WebhookEvent{
		Type:      EventSubscriptionCanceled,
		Reference: "ref-2",
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if got := store.subs["ref-2"].Status; got != entity.SubscriptionStatusCanceled {
		t.Errorf("subscription status = %q, want canceled", got)
	}
	if got := store.users[7].Plan; got != entity.PlanFree {
		t.Errorf("user plan = %q, want free", got)
	}
	if store.users[7].PlanExpiresAt != nil {
		t.Errorf("plan expires at should be cleared, got %v", store.users[7].PlanExpiresAt)
	}
}

func TestHandleEventUnknownReference(t *testing.T) {
	svc := NewServiceWithClient(&fakeCheckoutClient{}, newFakeBillingStore(), "secret", 499, "USD")
	err := svc.HandleEvent(context.Background(), &WebhookEvent{Type: EventPaymentSucceeded, Reference: "nope"})
	if !errors.Is(err, ErrUnknownReference) {
		t.Errorf("err = %v, want ErrUnknownReference", err)
	}
}

func TestVerifySignature(t *testing.T) {
	svc := NewServiceWithClient(&fakeCheckoutClient{}, newFakeBillingStore(), "whsec", 499, "USD")
	payload := []byte(`{"type":"payment_succeeded","reference":"ref-1"}`)

	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(payload)
	good := hex.EncodeToString(mac.Sum(nil))

	if !svc.VerifySignature(payload, good) {
		t.Error("valid signature rejected")
	}
	if svc.VerifySignature(payload, "deadbeef") {
		t.Error("invalid signature accepted")
	}
	if svc.VerifySignature(payload, "") {
		t.Error("empty signature accepted")
	}
}
