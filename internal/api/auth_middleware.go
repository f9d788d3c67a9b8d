package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"scribbly/internal/entity"
	"scribbly/internal/quota"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	currentUserContextKey = "current-user"

	// 未登录请求通过该请求头携带客户端生成的游客标识
	guestKeyHeader = "X-Guest-Key"
)

// RequestUser 存储请求上下文中的认证用户信息
type RequestUser struct {
	ID          uint
	Email       string
	DisplayName string
	Role        string
	Plan        string
}

// IsAdmin 判断用户是否具有管理员权限
func (u *RequestUser) IsAdmin() bool {
	if u == nil {
		return false
	}
	switch u.Role {
	case entity.UserRoleAdmin, entity.UserRoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsSuperAdmin 判断用户是否为超级管理员
func (u *RequestUser) IsSuperAdmin() bool {
	if u == nil {
		return false
	}
	return u.Role == entity.UserRoleSuperAdmin
}

// AuthMiddleware JWT 认证中间件
func (h *HTTPHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeUnauthorized,
				Message: "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeUnauthorized,
				Message: "invalid authorization header format",
			})
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeUnauthorized,
				Message: "missing bearer token",
			})
			return
		}

		claims, err := h.authManager.ParseToken(tokenString)
		if err != nil {
			logrus.WithError(err).Warn("failed to parse jwt token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeSessionExpired,
				Message: "token is invalid or expired",
			})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, err := h.repo.GetUserByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
					Code:    ErrCodeUserNotFound,
					Message: "user not found",
				})
				return
			}
			logrus.WithError(err).WithField("user_id", claims.UserID).Error("failed to load user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, APIError{
				Code:    ErrCodeInternalError,
				Message: "failed to verify user",
			})
			return
		}

		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, APIError{
				Code:    ErrCodeUserDisabled,
				Message: "account is disabled",
			})
			return
		}

		c.Set(currentUserContextKey, &RequestUser{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Role:        user.Role,
			Plan:        effectivePlan(user),
		})
		c.Next()
	}
}

// OptionalAuthMiddleware 尽力解析登录态，但不拒绝匿名请求。
// 生成和配额查询接口用它区分游客与注册用户。
func (h *HTTPHandler) OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.Next()
			return
		}

		claims, err := h.authManager.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			// 无效 token 的请求按游客处理，而不是拒绝
			logrus.WithError(err).Debug("ignoring invalid bearer token on optional route")
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, err := h.repo.GetUserByID(ctx, claims.UserID)
		if err != nil || !user.IsActive {
			c.Next()
			return
		}

		c.Set(currentUserContextKey, &RequestUser{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Role:        user.Role,
			Plan:        effectivePlan(user),
		})
		c.Next()
	}
}

// RequireAdmin 管理员权限守卫中间件
func (h *HTTPHandler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, APIError{
				Code:    ErrCodeForbidden,
				Message: "admin privileges required",
			})
			return
		}
		c.Next()
	}
}

// CurrentUser 从上下文获取当前认证用户
func CurrentUser(c *gin.Context) *RequestUser {
	value, exists := c.Get(currentUserContextKey)
	if !exists {
		return nil
	}
	user, ok := value.(*RequestUser)
	if !ok {
		return nil
	}
	return user
}

// requestIdentity 把当前请求归属到注册用户或游客。游客优先使用客户端
// 提供的 X-Guest-Key，缺失时退化为客户端 IP。
func (h *HTTPHandler) requestIdentity(c *gin.Context) quota.Identity {
	if user := CurrentUser(c); user != nil {
		return quota.Identity{UserID: user.ID, Plan: user.Plan}
	}

	guestKey := strings.TrimSpace(c.GetHeader(guestKeyHeader))
	if guestKey == "" {
		guestKey = "ip:" + c.ClientIP()
	}
	return quota.Identity{GuestKey: guestKey}
}

// effectivePlan 返回用户当前生效的套餐：premium 已过期按 free 处理。
func effectivePlan(user *entity.DbUser) string {
	if user == nil {
		return entity.PlanFree
	}
	if user.Plan == entity.PlanPremium {
		if user.PlanExpiresAt != nil && user.PlanExpiresAt.Before(time.Now()) {
			return entity.PlanFree
		}
		return entity.PlanPremium
	}
	if user.Plan == "" {
		return entity.PlanFree
	}
	return user.Plan
}
