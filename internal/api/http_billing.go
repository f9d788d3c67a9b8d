package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"scribbly/internal/billing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 支付服务商在回调请求中携带签名的请求头。
const webhookSignatureHeader = "X-Webhook-Signature"

// CreateCheckout 为当前登录用户发起升级 premium 的托管结账。
func (h *HTTPHandler) CreateCheckout(c *gin.Context) {
	if h.billingService == nil {
		ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeBillingDisabled, "billing is not configured")
		return
	}
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	resp, err := h.billingService.StartCheckout(c.Request.Context(), user.ID)
	if err != nil {
		if errors.Is(err, billing.ErrAlreadySubscribed) {
			ErrorResponse(c, http.StatusBadRequest, ErrCodeAlreadySubscribed, "you already have an active subscription")
			return
		}
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to start checkout")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start checkout"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// BillingWebhook 接收支付服务商的回调。签名校验失败直接拒绝。
func (h *HTTPHandler) BillingWebhook(c *gin.Context) {
	if h.billingService == nil {
		ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeBillingDisabled, "billing is not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read payload"})
		return
	}

	if !h.billingService.VerifySignature(payload, c.GetHeader(webhookSignatureHeader)) {
		logrus.Warn("billing webhook signature verification failed")
		ErrorResponse(c, http.StatusUnauthorized, ErrCodeInvalidSignature, "invalid webhook signature")
		return
	}

	var event billing.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload"})
		return
	}

	if err := h.billingService.HandleEvent(c.Request.Context(), &event); err != nil {
		if errors.Is(err, billing.ErrUnknownReference) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown reference"})
			return
		}
		logrus.WithError(err).WithField("reference", event.Reference).Error("failed to handle billing event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// Subscription 返回当前用户最近的订阅状态。
func (h *HTTPHandler) Subscription(c *gin.Context) {
	if h.billingService == nil {
		ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeBillingDisabled, "billing is not configured")
		return
	}
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	resp, err := h.billingService.Subscription(c.Request.Context(), user.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return
	}
	c.JSON(http.StatusOK, resp)
}
