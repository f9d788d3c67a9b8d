package api

import (
	"errors"
	"net/http"

	"scribbly/internal/entity"
	"scribbly/internal/quota"
	"scribbly/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GenerateColoring 生成着色页。
func (h *HTTPHandler) GenerateColoring(c *gin.Context) {
	h.handleGenerate(c, entity.ActivityKindColoring)
}

// GenerateTracing 生成描红练习页。
func (h *HTTPHandler) GenerateTracing(c *gin.Context) {
	h.handleGenerate(c, entity.ActivityKindTracing)
}

func (h *HTTPHandler) handleGenerate(c *gin.Context, kind string) {
	if h.generationService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "generation service not available"})
		return
	}

	var req entity.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 请求体缺失或不是合法 JSON，等同于没有提供提示词
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	}

	id := h.requestIdentity(c)
	resp, err := h.generationService.Generate(c.Request.Context(), id, kind, &req)
	if err != nil {
		var quotaErr *service.QuotaError
		switch {
		case errors.Is(err, service.ErrPromptRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		case errors.As(err, &quotaErr):
			c.JSON(http.StatusForbidden, gin.H{
				"error":   quotaErr.Decision.Reason,
				"message": quotaDenyMessage(quotaErr.Decision.Reason),
			})
		default:
			logrus.WithError(err).WithField("kind", kind).Error("generation request failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate image"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

func quotaDenyMessage(reason string) string {
	switch reason {
	case quota.ReasonGuestLimitReached:
		return "You have used all free guest generations. Create a free account to continue."
	case quota.ReasonDailyLimitReached:
		return "You have reached today's free limit. Upgrade to premium for unlimited generations."
	default:
		return "Generation limit reached."
	}
}
