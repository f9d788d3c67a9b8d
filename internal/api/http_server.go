package api

import (
	"strings"
	"time"

	"scribbly/internal/auth"
	"scribbly/internal/billing"
	"scribbly/internal/config"
	"scribbly/internal/model"
	"scribbly/internal/quota"
	"scribbly/internal/service"
	"scribbly/internal/storage"
)

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg               config.Config
	repo              model.Repository
	storage           storage.Storage
	storagePublicBase string
	authManager       *auth.Manager
	quotaPolicy       *quota.Policy

	// 服务层
	generationService *service.GenerationService
	billingService    *billing.Service
}

// NewHTTPHandler 创建 HTTP 处理器实例。billingSvc 为 nil 时订阅相关
// 接口返回 503。
func NewHTTPHandler(cfg config.Config, repo model.Repository, store storage.Storage, policy *quota.Policy, billingSvc *billing.Service) (*HTTPHandler, error) {
	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}

	generationSvc := service.NewGenerationService(repo, store, policy, cfg)

	return &HTTPHandler{
		cfg:               cfg,
		repo:              repo,
		storage:           store,
		storagePublicBase: normalisePublicBase(cfg.StoragePublicBaseURL),
		authManager:       authManager,
		quotaPolicy:       policy,
		generationService: generationSvc,
		billingService:    billingSvc,
	}, nil
}

// normalisePublicBase 规范化公共 URL 基础路径
func normalisePublicBase(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = "/files"
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return strings.TrimRight(trimmed, "/")
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}
