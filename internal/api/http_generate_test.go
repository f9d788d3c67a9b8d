package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scribbly/internal/auth"
	"scribbly/internal/config"
	"scribbly/internal/entity"
	"scribbly/internal/llm"
	"scribbly/internal/model"
	"scribbly/internal/quota"
	"scribbly/internal/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type fakeRepo struct {
	model.Repository

	users map[uint]*entity.DbUser

	usageCount     int
	usageUpdatedAt time.Time

	activities []entity.DbActivity
}

func (f *fakeRepo) GetUserByID(_ context.Context, id uint) (*entity.DbUser, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeRepo) GetProviderWithModel(_ context.Context, providerID, modelID string, _ bool) (*entity.DbProvider, *entity.DbModel, error) {
	return &entity.DbProvider{ID: providerID, Driver: entity.ProviderDriverOpenRouter, IsActive: true},
		&entity.DbModel{ProviderID: providerID, ModelID: modelID, IsActive: true}, nil
}

func (f *fakeRepo) CreateActivity(_ context.Context, activity *entity.DbActivity) error {
	f.activities = append(f.activities, *activity)
	return nil
}

func (f *fakeRepo) UserUsage(_ context.Context, _ uint) (int, time.Time, error) {
	return f.usageCount, f.usageUpdatedAt, nil
}

func (f *fakeRepo) ResetUserUsage(_ context.Context, _ uint, count int, now time.Time) error {
	f.usageCount = count
	f.usageUpdatedAt = now
	return nil
}

func (f *fakeRepo) IncrementUserUsage(_ context.Context, _ uint, now time.Time) error {
	f.usageCount++
	f.usageUpdatedAt = now
	return nil
}

type fakeStorage struct{}

func (fakeStorage) Save(_ context.Context, _ []byte, opts storage.SaveOptions) (string, error) {
	return opts.Category + "/test.png", nil
}

type fakeImages struct {
	err error
}

func (f *fakeImages) GenerateImage(_ context.Context, _ llm.GenerateImageRequest) (*llm.GenerateImageResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateImageResult{
		ImageURL: "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==",
	}, nil
}

func testConfig() config.Config {
	return config.Config{
		QuotaGuestLimit:       3,
		QuotaGuestClientLimit: 2,
		QuotaGuestWindowHours: 24,
		QuotaFreeLimit:        5,
		DefaultProviderID:     "openrouter",
		DefaultModelID:        "test-model",
		StoragePublicBaseURL:  "/files",
		JWTSecret:             "test-secret",
		JWTIssuer:             "scribbly-test",
		JWTExpirationMinutes:  60,
	}
}

func newTestRouter(t *testing.T, repo *fakeRepo, images llm.ImageService) (*gin.Engine, *HTTPHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	policy := quota.NewPolicy(quota.NewMemoryGuestStore(), repo, quota.Limits{
		GuestLimit:       cfg.QuotaGuestLimit,
		GuestClientLimit: cfg.QuotaGuestClientLimit,
		GuestWindow:      time.Duration(cfg.QuotaGuestWindowHours) * time.Hour,
		FreeDailyLimit:   cfg.QuotaFreeLimit,
	}, nil)

	handler, err := NewHTTPHandler(cfg, repo, fakeStorage{}, policy, nil)
	if err != nil {
		t.Fatalf("NewHTTPHandler: %v", err)
	}
	handler.generationService.SetImageServiceFactory(func(_ *entity.DbProvider) (llm.ImageService, error) {
		return images, nil
	})

	r := gin.New()
	generate := r.Group("/api/generate")
	generate.Use(handler.OptionalAuthMiddleware())
	generate.POST("/coloring", handler.GenerateColoring)
	generate.POST("/tracing", handler.GenerateTracing)
	r.GET("/api/quota", handler.OptionalAuthMiddleware(), handler.QuotaStatus)
	r.GET("/api/limits", handler.Limits)
	return r, handler
}

func bearerToken(t *testing.T, user *entity.DbUser) string {
	t.Helper()
	manager, err := auth.NewManager("test-secret", "scribbly-test", time.Hour)
	if err != nil {
		t.Fatalf("auth.NewManager: %v", err)
	}
	token, _, err := manager.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return "Bearer " + token
}

func doJSON(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGenerateColoringGuestSuccess(t *testing.T) {
	repo := &fakeRepo{users: map[uint]*entity.DbUser{}}
	r, _ := newTestRouter(t, repo, &fakeImages{})

	w := doJSON(r, http.MethodPost, "/api/generate/coloring", `{"prompt":"a friendly dragon"}`,
		map[string]string{"X-Guest-Key": "guest-abc"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["success"] != true {
		t.Errorf("success = %v", resp["success"])
	}
	if resp["imageUrl"] != "/files/pages/test.png" {
		t.Errorf("imageUrl = %v", resp["imageUrl"])
	}
	if resp["originalPrompt"] != "a friendly dragon" {
		t.Errorf("originalPrompt = %v", resp["originalPrompt"])
	}
	if _, ok := resp["prompt"].(string); !ok {
		t.Errorf("prompt missing: %v", resp)
	}
	if remaining, ok := resp["guestRemaining"].(float64); !ok || remaining != 2 {
		t.Errorf("guestRemaining = %v, want 2", resp["guestRemaining"])
	}
}

func TestGenerateMissingPrompt(t *testing.T) {
	repo := &fakeRepo{users: map[uint]*entity.DbUser{}}
	r, _ := newTestRouter(t, repo, &fakeImages{})

	for _, body := range []string{`{}`, `{"prompt":"   "}`, ``} {
		w := doJSON(r, http.MethodPost, "/api/generate/coloring", body, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
			continue
		}
		var resp map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if resp["error"] != "Prompt is required" {
			t.Errorf("body %q: error = %v", body, resp["error"])
		}
	}
}

func TestGenerateGuestLimit(t *testing.T) {
	repo := &fakeRepo{users: map[uint]*entity.DbUser{}}
	r, _ := newTestRouter(t, repo, &fakeImages{})

	headers := map[string]string{"X-Guest-Key": "heavy-guest"}
	for i := 0; i < 3; i++ {
		w := doJSON(r, http.MethodPost, "/api/generate/coloring", `{"prompt":"a cat"}`, headers)
		if w.Code != http.StatusOK {
			t.Fatalf("generation %d: status = %d", i, w.Code)
		}
	}

	w := doJSON(r, http.MethodPost, "/api/generate/coloring", `{"prompt":"a cat"}`, headers)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["error"] != "guest_limit_reached" {
		t.Errorf("error = %v", resp["error"])
	}
	if msg, ok := resp["message"].(string); !ok || msg == "" {
		t.Errorf("message missing: %v", resp)
	}

	// 其它游客不受影响
	w = doJSON(r, http.MethodPost, "/api/generate/coloring", `{"prompt":"a cat"}`,
		map[string]string{"X-Guest-Key": "other-guest"})
	if w.Code != http.StatusOK {
		t.Errorf("other guest status = %d, want 200", w.Code)
	}
}

func TestGenerateFreeUserDailyLimit(t *testing.T) {
	user := &entity.DbUser{ID: 7, Email: "p@example.com", Role: entity.UserRoleUser, Plan: entity.PlanFree, IsActive: true}
	repo := &fakeRepo{
		users:          map[uint]*entity.DbUser{7: user},
		usageCount:     5,
		usageUpdatedAt: time.Now(),
	}
	r, _ := newTestRouter(t, repo, &fakeImages{})

	w := doJSON(r, http.MethodPost, "/api/generate/tracing", `{"prompt":"letter A"}`,
		map[string]string{"Authorization": bearerToken(t, user)})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["error"] != "daily_limit_reached" {
		t.Errorf("error = %v", resp["error"])
	}
}

func TestGenerateRegisteredUserOmitsGuestRemaining(t *testing.T) {
	user := &entity.DbUser{ID: 3, Email: "u@example.com", Role: entity.UserRoleUser, Plan: entity.PlanFree, IsActive: true}
	repo := &fakeRepo{users: map[uint]*entity.DbUser{3: user}}
	r, _ := newTestRouter(t, repo, &fakeImages{})

	w := doJSON(r, http.MethodPost, "/api/generate/tracing", `{"prompt":"trace the letter b in lowercase"}`,
		map[string]string{"Authorization": bearerToken(t, user)})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if _, exists := resp["guestRemaining"]; exists {
		t.Errorf("guestRemaining present for registered user: %v", resp)
	}

	if len(repo.activities) != 1 {
		t.Fatalf("activities = %d", len(repo.activities))
	}
	if repo.activities[0].TraceContent != "b" || repo.activities[0].TraceStyle != "lowercase" {
		t.Errorf("trace fields = %+v", repo.activities[0])
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	repo := &fakeRepo{users: map[uint]*entity.DbUser{}}
	r, _ := newTestRouter(t, repo, &fakeImages{err: errors.New("provider exploded")})

	w := doJSON(r, http.MethodPost, "/api/generate/coloring", `{"prompt":"a dog"}`,
		map[string]string{"X-Guest-Key": "g"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if _, ok := resp["error"].(string); !ok {
		t.Errorf("error missing: %v", resp)
	}

	// 失败的生成不计入配额
	w = doJSON(r, http.MethodGet, "/api/quota", "", map[string]string{"X-Guest-Key": "g"})
	var status entity.QuotaStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal quota: %v", err)
	}
	if status.Used != 0 {
		t.Errorf("used = %d after failed generation, want 0", status.Used)
	}
}

func TestQuotaEndpoint(t *testing.T) {
	user := &entity.DbUser{ID: 2, Email: "p@example.com", Role: entity.UserRoleUser, Plan: entity.PlanPremium, IsActive: true}
	repo := &fakeRepo{users: map[uint]*entity.DbUser{2: user}}
	r, _ := newTestRouter(t, repo, &fakeImages{})

	w := doJSON(r, http.MethodGet, "/api/quota", "", map[string]string{"X-Guest-Key": "quota-guest"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var status entity.QuotaStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal quota: %v", err)
	}
	if status.Plan != "guest" || status.Limit != 3 || status.Remaining != 3 {
		t.Errorf("guest quota = %+v", status)
	}

	w = doJSON(r, http.MethodGet, "/api/quota", "", map[string]string{"Authorization": bearerToken(t, user)})
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal quota: %v", err)
	}
	if status.Plan != entity.PlanPremium || !status.Unlimited {
		t.Errorf("premium quota = %+v", status)
	}
}

func TestLimitsEndpoint(t *testing.T) {
	repo := &fakeRepo{users: map[uint]*entity.DbUser{}}
	r, _ := newTestRouter(t, repo, &fakeImages{})

	w := doJSON(r, http.MethodGet, "/api/limits", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var limits entity.LimitsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &limits); err != nil {
		t.Fatalf("unmarshal limits: %v", err)
	}
	if limits.GuestLimit != 3 || limits.GuestClientLimit != 2 || limits.FreeDailyLimit != 5 {
		t.Errorf("limits = %+v", limits)
	}
}
