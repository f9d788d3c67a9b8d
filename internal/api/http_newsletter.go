package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"scribbly/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SubscribeNewsletter 订阅邮件列表。重复订阅返回同样的成功结果。
func (h *HTTPHandler) SubscribeNewsletter(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "newsletter not available"})
		return
	}

	var req entity.NewsletterSubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a valid email is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.repo.UpsertNewsletterSubscription(ctx, req.Email, req.Source); err != nil {
		logrus.WithError(err).Error("failed to subscribe newsletter")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UnsubscribeNewsletter 退订邮件列表。
func (h *HTTPHandler) UnsubscribeNewsletter(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "newsletter not available"})
		return
	}

	var req entity.NewsletterSubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a valid email is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repo.UnsubscribeNewsletter(ctx, req.Email); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 退订一个没订阅过的地址也算成功
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}
		logrus.WithError(err).Error("failed to unsubscribe newsletter")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unsubscribe"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListNewsletterSubscriptions 管理端查看订阅列表。
func (h *HTTPHandler) ListNewsletterSubscriptions(c *gin.Context) {
	var params entity.BaseParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	subs, meta, err := h.repo.ListNewsletterSubscriptions(ctx, &params)
	if err != nil {
		logrus.WithError(err).Error("failed to list newsletter subscriptions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": subs, "meta": meta})
}
