package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"scribbly/internal/config"
	"scribbly/internal/entity"
	"scribbly/internal/llm"
	"scribbly/internal/model"
	"scribbly/internal/quota"
	"scribbly/internal/storage"
)

type fakeRepo struct {
	model.Repository

	provider *entity.DbProvider
	model    *entity.DbModel

	activities []entity.DbActivity

	usageCount     int
	usageUpdatedAt time.Time
	resetCalls     int
	incrementCalls int
}

func (f *fakeRepo) GetProviderWithModel(_ context.Context, providerID, modelID string, _ bool) (*entity.DbProvider, *entity.DbModel, error) {
	if f.provider == nil || f.provider.ID != providerID || f.model.ModelID != modelID {
		return nil, nil, errors.New("provider or model not found")
	}
	return f.provider, f.model, nil
}

func (f *fakeRepo) CreateActivity(_ context.Context, activity *entity.DbActivity) error {
	f.activities = append(f.activities, *activity)
	return nil
}

func (f *fakeRepo) UserUsage(_ context.Context, _ uint) (int, time.Time, error) {
	return f.usageCount, f.usageUpdatedAt, nil
}

func (f *fakeRepo) ResetUserUsage(_ context.Context, _ uint, count int, now time.Time) error {
	f.resetCalls++
	f.usageCount = count
	f.usageUpdatedAt = now
	return nil
}

func (f *fakeRepo) IncrementUserUsage(_ context.Context, _ uint, now time.Time) error {
	f.incrementCalls++
	f.usageCount++
	f.usageUpdatedAt = now
	return nil
}

type fakeStorage struct {
	saved [][]byte
	err   error
}

func (f *fakeStorage) Save(_ context.Context, data []byte, opts storage.SaveOptions) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, data)
	return opts.Category + "/2026/01/01/test." + opts.Extension, nil
}

type fakeImageService struct {
	result *llm.GenerateImageResult
	err    error
	calls  int
}

func (f *fakeImageService) GenerateImage(_ context.Context, _ llm.GenerateImageRequest) (*llm.GenerateImageResult, error) {
	f.calls++
	return f.result, f.err
}

// 1x1 transparent PNG
const tinyPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func newTestService(repo *fakeRepo, store *fakeStorage, images llm.ImageService) (*GenerationService, *quota.Policy) {
	policy := quota.NewPolicy(quota.NewMemoryGuestStore(), repo, quota.Limits{
		GuestLimit:     3,
		GuestWindow:    24 * time.Hour,
		FreeDailyLimit: 5,
	}, nil)

	cfg := config.Config{
		DefaultProviderID:    "openrouter",
		DefaultModelID:       "test-model",
		StoragePublicBaseURL: "/files",
	}
	svc := NewGenerationService(repo, store, policy, cfg)
	svc.newImageService = func(_ *entity.DbProvider) (llm.ImageService, error) {
		return images, nil
	}
	return svc, policy
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		provider: &entity.DbProvider{ID: "openrouter", Driver: entity.ProviderDriverOpenRouter, IsActive: true},
		model:    &entity.DbModel{ProviderID: "openrouter", ModelID: "test-model", IsActive: true},
	}
}

func TestGenerateColoringForGuest(t *testing.T) {
	repo := newFakeRepo()
	store := &fakeStorage{}
	images := &fakeImageService{result: &llm.GenerateImageResult{ImageURL: tinyPNG}}
	svc, _ := newTestService(repo, store, images)

	id := quota.Identity{GuestKey: "guest-1"}
	resp, err := svc.Generate(context.Background(), id, entity.ActivityKindColoring, &entity.GenerateRequest{
		Prompt: "a friendly dragon",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !resp.Success {
		t.Error("expected success")
	}
	if resp.OriginalPrompt != "a friendly dragon" {
		t.Errorf("original prompt = %q", resp.OriginalPrompt)
	}
	if resp.Prompt == resp.OriginalPrompt {
		t.Error("expected prompt to be expanded from the user input")
	}
	if resp.ImageURL != "/files/pages/2026/01/01/test.png" {
		t.Errorf("image url = %q", resp.ImageURL)
	}
	if resp.GuestRemaining == nil || *resp.GuestRemaining != 2 {
		t.Errorf("guest remaining = %v, want 2", resp.GuestRemaining)
	}

	if len(repo.activities) != 1 {
		t.Fatalf("activities = %d, want 1", len(repo.activities))
	}
	act := repo.activities[0]
	if act.Kind != entity.ActivityKindColoring || act.GuestKey != "guest-1" {
		t.Errorf("unexpected activity: %+v", act)
	}
	if act.TraceKind != "" {
		t.Errorf("coloring activity should not carry trace fields, got %q", act.TraceKind)
	}
}

func TestGenerateTracingRecordsSpec(t *testing.T) {
	repo := newFakeRepo()
	images := &fakeImageService{result: &llm.GenerateImageResult{ImageURL: tinyPNG}}
	svc, _ := newTestService(repo, &fakeStorage{}, images)

	id := quota.Identity{UserID: 1, Plan: entity.PlanFree}
	resp, err := svc.Generate(context.Background(), id, entity.ActivityKindTracing, &entity.GenerateRequest{
		Prompt: "trace the letter b in lowercase",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.GuestRemaining != nil {
		t.Error("registered users should not see guestRemaining")
	}
	if resp.ImageURL != "/files/worksheets/2026/01/01/test.png" {
		t.Errorf("image url = %q", resp.ImageURL)
	}

	if len(repo.activities) != 1 {
		t.Fatalf("activities = %d, want 1", len(repo.activities))
	}
	act := repo.activities[0]
	if act.TraceKind != "letter" || act.TraceContent != "b" || act.TraceStyle != "lowercase" {
		t.Errorf("trace spec = %q/%q/%q", act.TraceKind, act.TraceContent, act.TraceStyle)
	}
	if repo.resetCalls+repo.incrementCalls != 1 {
		t.Errorf("expected exactly one usage commit, got reset=%d increment=%d", repo.resetCalls, repo.incrementCalls)
	}
}

func TestGenerateRequiresPrompt(t *testing.T) {
	repo := newFakeRepo()
	images := &fakeImageService{result: &llm.GenerateImageResult{ImageURL: tinyPNG}}
	svc, _ := newTestService(repo, &fakeStorage{}, images)

	_, err := svc.Generate(context.Background(), quota.Identity{GuestKey: "g"}, entity.ActivityKindColoring, &entity.GenerateRequest{Prompt: "   "})
	if !errors.Is(err, ErrPromptRequired) {
		t.Errorf("err = %v, want ErrPromptRequired", err)
	}
	if images.calls != 0 {
		t.Error("image service should not be called for an empty prompt")
	}
	if len(repo.activities) != 0 {
		t.Error("no activity should be recorded")
	}
}

func TestGenerateDeniedWhenOverQuota(t *testing.T) {
	repo := newFakeRepo()
	images := &fakeImageService{result: &llm.GenerateImageResult{ImageURL: tinyPNG}}
	svc, policy := newTestService(repo, &fakeStorage{}, images)

	ctx := context.Background()
	id := quota.Identity{GuestKey: "busy-guest"}
	for i := 0; i < 3; i++ {
		if _, err := svc.Generate(ctx, id, entity.ActivityKindColoring, &entity.GenerateRequest{Prompt: "a cat"}); err != nil {
			t.Fatalf("generation %d: %v", i, err)
		}
	}

	_, err := svc.Generate(ctx, id, entity.ActivityKindColoring, &entity.GenerateRequest{Prompt: "a cat"})
	var quotaErr *QuotaError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("err = %v, want QuotaError", err)
	}
	if quotaErr.Decision.Reason != quota.ReasonGuestLimitReached {
		t.Errorf("reason = %q", quotaErr.Decision.Reason)
	}

	// 被拒绝的请求不留痕迹：再判一次还是同样的结果
	decision := policy.Evaluate(ctx, id)
	if decision.Allowed || decision.Used != 3 {
		t.Errorf("decision after denial = %+v", decision)
	}
	if images.calls != 3 {
		t.Errorf("image service calls = %d, want 3", images.calls)
	}
}

func TestFailedGenerationLeavesCountersUnchanged(t *testing.T) {
	repo := newFakeRepo()
	images := &fakeImageService{err: errors.New("upstream unavailable")}
	svc, policy := newTestService(repo, &fakeStorage{}, images)

	ctx := context.Background()
	id := quota.Identity{GuestKey: "unlucky"}
	if _, err := svc.Generate(ctx, id, entity.ActivityKindColoring, &entity.GenerateRequest{Prompt: "a boat"}); err == nil {
		t.Fatal("expected upstream error")
	}

	decision := policy.Evaluate(ctx, id)
	if decision.Used != 0 {
		t.Errorf("used = %d after failed generation, want 0", decision.Used)
	}
	if len(repo.activities) != 0 {
		t.Error("failed generation must not record an activity")
	}
}

func TestFailedStorageLeavesCountersUnchanged(t *testing.T) {
	repo := newFakeRepo()
	images := &fakeImageService{result: &llm.GenerateImageResult{ImageURL: tinyPNG}}
	store := &fakeStorage{err: errors.New("disk full")}
	svc, policy := newTestService(repo, store, images)

	ctx := context.Background()
	id := quota.Identity{UserID: 9, Plan: entity.PlanFree}
	if _, err := svc.Generate(ctx, id, entity.ActivityKindColoring, &entity.GenerateRequest{Prompt: "a boat"}); err == nil {
		t.Fatal("expected storage error")
	}
	if repo.resetCalls+repo.incrementCalls != 0 {
		t.Error("failed persistence must not commit usage")
	}
	decision := policy.Evaluate(ctx, id)
	if decision.Used != 0 {
		t.Errorf("used = %d, want 0", decision.Used)
	}
}

func TestPremiumGenerationSkipsAccounting(t *testing.T) {
	repo := newFakeRepo()
	images := &fakeImageService{result: &llm.GenerateImageResult{ImageURL: tinyPNG}}
	svc, _ := newTestService(repo, &fakeStorage{}, images)

	ctx := context.Background()
	id := quota.Identity{UserID: 5, Plan: entity.PlanPremium}
	for i := 0; i < 10; i++ {
		if _, err := svc.Generate(ctx, id, entity.ActivityKindColoring, &entity.GenerateRequest{Prompt: "a rocket"}); err != nil {
			t.Fatalf("generation %d: %v", i, err)
		}
	}
	if repo.resetCalls+repo.incrementCalls != 0 {
		t.Errorf("premium generations must not touch usage counters, got reset=%d increment=%d", repo.resetCalls, repo.incrementCalls)
	}
}

func TestQuotaStatus(t *testing.T) {
	repo := newFakeRepo()
	images := &fakeImageService{result: &llm.GenerateImageResult{ImageURL: tinyPNG}}
	svc, _ := newTestService(repo, &fakeStorage{}, images)

	ctx := context.Background()
	guest := quota.Identity{GuestKey: "status-guest"}

	status := svc.QuotaStatus(ctx, guest)
	if status.Plan != "guest" || status.Limit != 3 || status.Remaining != 3 {
		t.Errorf("guest status = %+v", status)
	}

	if _, err := svc.Generate(ctx, guest, entity.ActivityKindColoring, &entity.GenerateRequest{Prompt: "a tree"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	status = svc.QuotaStatus(ctx, guest)
	if status.Used != 1 || status.Remaining != 2 {
		t.Errorf("guest status after one generation = %+v", status)
	}

	premium := svc.QuotaStatus(ctx, quota.Identity{UserID: 2, Plan: entity.PlanPremium})
	if !premium.Unlimited {
		t.Errorf("premium status = %+v, want unlimited", premium)
	}
}

func TestPublicURL(t *testing.T) {
	svc := &GenerationService{publicBaseURL: "/files"}
	tests := []struct {
		in, want string
	}{
		{"pages/a.png", "/files/pages/a.png"},
		{"/pages/a.png", "/files/pages/a.png"},
		{"https://cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := svc.PublicURL(tt.in); got != tt.want {
			t.Errorf("PublicURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
