package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"scribbly/internal/api"
	"scribbly/internal/billing"
	"scribbly/internal/config"
	"scribbly/internal/model"
	"scribbly/internal/quota"
	"scribbly/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}

	// 初始化logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise repository")
		return
	}

	if repo != nil {
		if err := model.SeedDefaultProviders(context.Background(), repo, cfg); err != nil {
			logrus.WithError(err).Warn("failed to seed default providers")
		}
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise storage")
		return
	}

	// 游客计数：配了 Redis 用 Redis，否则退化为进程内存
	var guestStore quota.GuestStore
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.WithError(err).Error("failed to connect to redis")
			return
		}
		guestStore = quota.NewRedisGuestStore(redisClient)
		logrus.WithField("addr", cfg.RedisAddr).Info("guest quota store: redis")
	} else {
		guestStore = quota.NewMemoryGuestStore()
		logrus.Info("guest quota store: in-memory")
	}

	policy := quota.NewPolicy(guestStore, repo, quota.Limits{
		GuestLimit:       cfg.QuotaGuestLimit,
		GuestClientLimit: cfg.QuotaGuestClientLimit,
		GuestWindow:      time.Duration(cfg.QuotaGuestWindowHours) * time.Hour,
		FreeDailyLimit:   cfg.QuotaFreeLimit,
	}, nil)

	billingSvc, err := billing.NewService(cfg, repo)
	if err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			logrus.Info("billing is not configured, subscription endpoints disabled")
			billingSvc = nil
		} else {
			logrus.WithError(err).Error("failed to initialise billing")
			return
		}
	}

	httpHandler, err := api.NewHTTPHandler(cfg, repo, store, policy, billingSvc)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise http handler")
		return
	}

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// 添加中间件
	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	apiGroup := r.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/register", httpHandler.Register)
	authGroup.POST("/login", httpHandler.Login)
	authGroup.GET("/me", httpHandler.AuthMiddleware(), httpHandler.Me)

	// 生成与配额接口对游客开放，登录态可选
	generateGroup := apiGroup.Group("/generate")
	generateGroup.Use(httpHandler.OptionalAuthMiddleware())
	generateGroup.POST("/coloring", httpHandler.GenerateColoring)
	generateGroup.POST("/tracing", httpHandler.GenerateTracing)

	apiGroup.GET("/quota", httpHandler.OptionalAuthMiddleware(), httpHandler.QuotaStatus)
	apiGroup.GET("/limits", httpHandler.Limits)

	newsletterGroup := apiGroup.Group("/newsletter")
	newsletterGroup.POST("/subscribe", httpHandler.SubscribeNewsletter)
	newsletterGroup.POST("/unsubscribe", httpHandler.UnsubscribeNewsletter)

	// 支付服务商回调，身份靠签名校验
	apiGroup.POST("/billing/webhook", httpHandler.BillingWebhook)

	protected := apiGroup.Group("")
	protected.Use(httpHandler.AuthMiddleware())
	protected.GET("/llm/providers", httpHandler.ListProviders)
	protected.GET("/activities", httpHandler.ListActivities)
	protected.GET("/activities/:id", httpHandler.GetActivity)
	protected.DELETE("/activities/:id", httpHandler.DeleteActivity)
	protected.POST("/billing/checkout", httpHandler.CreateCheckout)
	protected.GET("/billing/subscription", httpHandler.Subscription)

	userAdmin := protected.Group("/users")
	userAdmin.Use(httpHandler.RequireAdmin())
	userAdmin.GET("", httpHandler.ListUsers)
	userAdmin.POST("", httpHandler.CreateUser)
	userAdmin.PATCH(":id", httpHandler.UpdateUser)
	userAdmin.DELETE(":id", httpHandler.DeleteUser)

	providerAdmin := protected.Group("/providers")
	providerAdmin.Use(httpHandler.RequireAdmin())
	providerAdmin.GET("", httpHandler.AdminListProviders)
	providerAdmin.POST("", httpHandler.CreateProvider)
	providerAdmin.GET("/:id", httpHandler.GetProviderDetail)
	providerAdmin.PATCH("/:id", httpHandler.UpdateProvider)
	providerAdmin.DELETE("/:id", httpHandler.DeleteProvider)

	modelAdmin := providerAdmin.Group("/:id/models")
	modelAdmin.GET("", httpHandler.ListProviderModels)
	modelAdmin.POST("", httpHandler.CreateProviderModel)
	modelAdmin.PATCH("/:model_id", httpHandler.UpdateProviderModel)
	modelAdmin.DELETE("/:model_id", httpHandler.DeleteProviderModel)

	newsletterAdmin := protected.Group("/newsletter-subscriptions")
	newsletterAdmin.Use(httpHandler.RequireAdmin())
	newsletterAdmin.GET("", httpHandler.ListNewsletterSubscriptions)

	if localProvider, ok := store.(storage.LocalBaseDirProvider); ok {
		publicPrefix := strings.TrimSpace(cfg.StoragePublicBaseURL)
		if publicPrefix == "" {
			publicPrefix = "/files"
		}
		if !strings.HasPrefix(publicPrefix, "http://") && !strings.HasPrefix(publicPrefix, "https://") {
			if !strings.HasPrefix(publicPrefix, "/") {
				publicPrefix = "/" + publicPrefix
			}
			r.Static(publicPrefix, localProvider.LocalBaseDir())
		}
	}

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logger.WithField("host", serverHost).Info("server starting")
	// 创建HTTP服务器
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  900 * time.Second,
		WriteTimeout: 900 * time.Second,
		IdleTimeout:  1200 * time.Second,
	}
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("server failed to start")
	}
}

// CORSMiddleware CORS跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Guest-Key")
		c.Header("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 处理请求
		c.Next()
		// 记录请求结束
		duration := time.Since(start)
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
