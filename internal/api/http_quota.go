package api

import (
	"net/http"

	"scribbly/internal/entity"

	"github.com/gin-gonic/gin"
)

// QuotaStatus 返回当前请求者（游客或登录用户）的配额使用情况。
func (h *HTTPHandler) QuotaStatus(c *gin.Context) {
	if h.generationService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "generation service not available"})
		return
	}
	id := h.requestIdentity(c)
	c.JSON(http.StatusOK, h.generationService.QuotaStatus(c.Request.Context(), id))
}

// Limits 公布各档位的生成上限，供前端展示提示文案。
func (h *HTTPHandler) Limits(c *gin.Context) {
	limits := h.quotaPolicy.Limits()
	c.JSON(http.StatusOK, entity.LimitsResponse{
		GuestLimit:       limits.GuestLimit,
		GuestClientLimit: limits.GuestClientLimit,
		FreeDailyLimit:   limits.FreeDailyLimit,
	})
}
