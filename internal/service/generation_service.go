package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribbly/internal/config"
	"scribbly/internal/entity"
	"scribbly/internal/llm"
	"scribbly/internal/model"
	"scribbly/internal/quota"
	"scribbly/internal/storage"
	"scribbly/internal/tracing"
	"scribbly/internal/utils"

	"github.com/sirupsen/logrus"
)

// ErrPromptRequired 提示词为空。
var ErrPromptRequired = errors.New("prompt is required")

// QuotaError 表示请求被配额策略拒绝，携带拒绝时的判定结果。
type QuotaError struct {
	Decision quota.Decision
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota denied: %s", e.Decision.Reason)
}

// GenerationService 封装着色页与描红页的同步生成流程：
// 配额判定 → 提示词构造 → 调用图像服务 → 落盘 → 记录 → 记账。
type GenerationService struct {
	repo    model.Repository
	storage storage.Storage
	policy  *quota.Policy

	defaultProviderID string
	defaultModelID    string
	publicBaseURL     string

	// newImageService 默认为 llm.NewService，测试时可替换
	newImageService func(provider *entity.DbProvider) (llm.ImageService, error)
}

// NewGenerationService 创建生成服务实例
func NewGenerationService(repo model.Repository, store storage.Storage, policy *quota.Policy, cfg config.Config) *GenerationService {
	return &GenerationService{
		repo:              repo,
		storage:           store,
		policy:            policy,
		defaultProviderID: cfg.DefaultProviderID,
		defaultModelID:    cfg.DefaultModelID,
		publicBaseURL:     strings.TrimRight(cfg.StoragePublicBaseURL, "/"),
		newImageService:   llm.NewService,
	}
}

// SetImageServiceFactory 替换图像服务的构造函数（测试用）。
func (s *GenerationService) SetImageServiceFactory(fn func(provider *entity.DbProvider) (llm.ImageService, error)) {
	if fn != nil {
		s.newImageService = fn
	}
}

// Generate 同步执行一次生成。kind 取 entity.ActivityKindColoring 或
// entity.ActivityKindTracing。被拒绝或失败的请求不会留下任何计数或记录。
func (s *GenerationService) Generate(ctx context.Context, id quota.Identity, kind string, req *entity.GenerateRequest) (*entity.GenerateResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrPromptRequired
	}

	decision := s.policy.Evaluate(ctx, id)
	if !decision.Allowed {
		return nil, &QuotaError{Decision: decision}
	}

	finalPrompt := ""
	var traceSpec *tracing.Spec
	if kind == entity.ActivityKindTracing {
		spec := tracing.Classify(prompt)
		traceSpec = &spec
		finalPrompt = BuildTracingPrompt(spec)
	} else {
		finalPrompt = BuildColoringPrompt(prompt)
	}

	providerID := strings.TrimSpace(req.ProviderID)
	if providerID == "" {
		providerID = s.defaultProviderID
	}
	modelID := strings.TrimSpace(req.ModelID)
	if modelID == "" {
		modelID = s.defaultModelID
	}

	provider, dbModel, err := s.repo.GetProviderWithModel(ctx, providerID, modelID, false)
	if err != nil {
		return nil, fmt.Errorf("resolve provider %s/%s failed: %w", providerID, modelID, err)
	}

	imageService, err := s.newImageService(provider)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	result, err := imageService.GenerateImage(genCtx, llm.GenerateImageRequest{
		ModelID: dbModel.ModelID,
		Prompt:  finalPrompt,
		Size:    strings.TrimSpace(req.Size),
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"provider": providerID,
			"model":    modelID,
			"kind":     kind,
		}).Error("failed to generate image")
		return nil, err
	}
	if result == nil || strings.TrimSpace(result.ImageURL) == "" {
		return nil, fmt.Errorf("provider %s returned no image", providerID)
	}

	imagePath, err := s.persistImage(genCtx, kind, modelID, result.ImageURL)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"provider": providerID,
			"model":    modelID,
			"kind":     kind,
		}).Error("failed to persist generated image")
		return nil, err
	}

	activity := &entity.DbActivity{
		UserID:         id.UserID,
		GuestKey:       guestKeyForRecord(id),
		Kind:           kind,
		Prompt:         finalPrompt,
		OriginalPrompt: prompt,
		ImagePath:      imagePath,
		ProviderID:     providerID,
		ModelID:        modelID,
	}
	if traceSpec != nil {
		activity.TraceKind = traceSpec.Type
		activity.TraceContent = traceSpec.Content
		activity.TraceStyle = traceSpec.Style
	}
	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		// 图已经生成并保存，记录失败不应让用户白等
		logrus.WithError(err).WithField("kind", kind).Warn("failed to record activity")
	}

	if err := s.policy.Commit(ctx, id); err != nil {
		logrus.WithError(err).WithField("user_id", id.UserID).Warn("failed to commit quota usage")
	}

	resp := &entity.GenerateResponse{
		Success:        true,
		ImageURL:       s.PublicURL(imagePath),
		Prompt:         finalPrompt,
		OriginalPrompt: prompt,
	}
	if !id.Registered() {
		remaining := decision.Remaining - 1
		if remaining < 0 {
			remaining = 0
		}
		resp.GuestRemaining = &remaining
	}
	return resp, nil
}

// QuotaStatus 返回 id 当前的配额使用情况（只读）。
func (s *GenerationService) QuotaStatus(ctx context.Context, id quota.Identity) *entity.QuotaStatusResponse {
	decision := s.policy.Evaluate(ctx, id)

	plan := id.Plan
	if !id.Registered() {
		plan = "guest"
	}
	unlimited := decision.Remaining == quota.UnlimitedRemaining
	status := &entity.QuotaStatusResponse{
		Plan:      plan,
		Limit:     decision.Limit,
		Used:      decision.Used,
		Remaining: decision.Remaining,
		Unlimited: unlimited,
	}
	if unlimited {
		status.Limit = 0
		status.Used = 0
		status.Remaining = 0
	}
	return status
}

// PublicURL 把存储返回的相对路径变成可访问的 URL。远程存储可能直接返回
// 绝对地址，原样透传。
func (s *GenerationService) PublicURL(imagePath string) string {
	trimmed := strings.TrimSpace(imagePath)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	return s.publicBaseURL + "/" + strings.TrimLeft(trimmed, "/")
}

// persistImage 下载或解码生成结果并写入存储，返回存储内的路径。
func (s *GenerationService) persistImage(ctx context.Context, kind, modelName, payload string) (string, error) {
	data, ext, err := s.resolveMediaPayload(ctx, payload)
	if err != nil {
		return "", err
	}

	category := storage.CategoryColoringPages
	if kind == entity.ActivityKindTracing {
		category = storage.CategoryWorksheets
	}

	return s.storage.Save(ctx, data, storage.SaveOptions{
		Category:  category,
		Extension: ext,
		BaseName:  buildOutputBaseName(modelName),
	})
}

// resolveMediaPayload 解析媒体数据（URL 或 base64）
func (s *GenerationService) resolveMediaPayload(ctx context.Context, payload string) ([]byte, string, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil, "", fmt.Errorf("empty payload")
	}

	// 处理 URL
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		reqCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, trimmed, nil)
		if err != nil {
			return nil, "", fmt.Errorf("create request: %w", err)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("download image: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("download image http %d", resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", fmt.Errorf("read image body: %w", err)
		}

		ext := utils.ExtensionFromMime(resp.Header.Get("Content-Type"))
		if ext == "" {
			ext = utils.ExtensionFromMime(http.DetectContentType(data))
		}
		if ext == "" {
			ext = "bin"
		}

		return data, ext, nil
	}

	// 处理 base64
	data, ext, err := utils.DecodeMediaPayload(trimmed)
	if err == nil {
		return data, ext, nil
	}

	data, ext, err = utils.DecodeMediaPayload(utils.EnsureDataURL(trimmed))
	if err != nil {
		return nil, "", err
	}

	return data, ext, nil
}

func guestKeyForRecord(id quota.Identity) string {
	if id.Registered() {
		return ""
	}
	return id.GuestKey
}

// buildOutputBaseName 构建输出文件的基础名称
func buildOutputBaseName(modelName string) string {
	token := storage.SanitizeToken(modelName)
	if token == "" {
		token = "model"
	}
	if len(token) > 32 {
		token = token[:32]
	}
	return fmt.Sprintf("%s_%d", token, time.Now().UTC().UnixNano())
}
