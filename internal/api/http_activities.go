package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scribbly/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ListActivities 列出当前用户的生成记录。管理员可以带 include_all=true
// 查看全站记录。
func (h *HTTPHandler) ListActivities(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var query entity.ActivityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}
	query.UserID = user.ID
	query.IncludeAll = user.IsAdmin() && strings.EqualFold(c.Query("include_all"), "true")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	activities, meta, err := h.repo.ListActivities(ctx, &query)
	if err != nil {
		logrus.WithError(err).Error("failed to list activities")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load activities"})
		return
	}

	response := entity.ActivityListResponse{
		Activities: make([]entity.ActivityItem, 0, len(activities)),
		Meta:       meta,
	}
	for idx := range activities {
		response.Activities = append(response.Activities, h.makeActivityItem(&activities[idx]))
	}
	c.JSON(http.StatusOK, response)
}

// GetActivity 查看单条生成记录，仅限记录拥有者或管理员。
func (h *HTTPHandler) GetActivity(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := parseRecordID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	activity, err := h.repo.GetActivity(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		logrus.WithError(err).WithField("record_id", id).Error("failed to load activity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load record"})
		return
	}

	if activity.UserID != user.ID && !user.IsAdmin() {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}

	c.JSON(http.StatusOK, entity.ActivityDetailResponse{Activity: h.makeActivityItem(activity)})
}

// DeleteActivity 删除一条生成记录，仅限记录拥有者或管理员。
func (h *HTTPHandler) DeleteActivity(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := parseRecordID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	activity, err := h.repo.GetActivity(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		logrus.WithError(err).WithField("record_id", id).Error("failed to load activity for deletion")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete record"})
		return
	}

	if activity.UserID != user.ID && !user.IsAdmin() {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}

	if err := h.repo.DeleteActivity(ctx, id); err != nil {
		logrus.WithError(err).WithField("record_id", id).Error("failed to delete activity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete record"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) makeActivityItem(activity *entity.DbActivity) entity.ActivityItem {
	return entity.ActivityItem{
		ID:             activity.ID,
		Kind:           activity.Kind,
		Prompt:         activity.Prompt,
		OriginalPrompt: activity.OriginalPrompt,
		ImageURL:       h.publicURL(activity.ImagePath),
		ProviderID:     activity.ProviderID,
		ModelID:        activity.ModelID,
		TraceKind:      activity.TraceKind,
		TraceContent:   activity.TraceContent,
		TraceStyle:     activity.TraceStyle,
		CreatedAt:      activity.CreatedAt,
	}
}

// publicURL 把存储相对路径映射到对外可访问的地址；远程存储返回的绝对
// 地址原样透传。
func (h *HTTPHandler) publicURL(imagePath string) string {
	trimmed := strings.TrimSpace(imagePath)
	if trimmed == "" || strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	base := strings.TrimRight(h.storagePublicBase, "/")
	if base == "" {
		base = "/files"
	}
	return base + "/" + strings.TrimLeft(trimmed, "/")
}

func parseRecordID(value string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
