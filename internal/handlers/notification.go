package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lonelydomino/pilkchat-sub000/internal/models"
	"github.com/lonelydomino/pilkchat-sub000/internal/repositories"
	"github.com/lonelydomino/pilkchat-sub000/internal/stream"
	"github.com/lonelydomino/pilkchat-sub000/internal/telemetry"
)

// NotificationHandler manages notification endpoints. Creation is the
// ingestion point used by the domain services (likes, comments, follows):
// the row commits first, the push event follows.
type NotificationHandler struct {
	notificationRepo repositories.NotificationRepository
	dispatcher       *stream.Dispatcher
	audit            *telemetry.AuditEmitter
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(notificationRepo repositories.NotificationRepository, dispatcher *stream.Dispatcher, audit *telemetry.AuditEmitter) *NotificationHandler {
	return &NotificationHandler{notificationRepo: notificationRepo, dispatcher: dispatcher, audit: audit}
}

// CreateNotification persists a notification and dispatches it to the
// recipient's open streams.
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req struct {
		UserID        int    `json:"userId" binding:"required"`
		Type          string `json:"type" binding:"required"`
		Message       string `json:"message" binding:"required"`
		RelatedUserID *int   `json:"relatedUserId"`
		RelatedPostID *int   `json:"relatedPostId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.notificationRepo.CreateNotification(c.Request.Context(), models.Notification{
		UserID:        req.UserID,
		Type:          req.Type,
		Message:       req.Message,
		RelatedUserID: req.RelatedUserID,
		RelatedPostID: req.RelatedPostID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store notification"})
		return
	}

	h.dispatcher.NotificationCreated(n)
	h.audit.Emit(c.Request.Context(), "info",
		fmt.Sprintf("notification %d created for user %d", n.ID, n.UserID),
		requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusCreated, n)
}

// ListNotifications returns the caller's notifications, newest first.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID := c.GetInt("userID")

	list, err := h.notificationRepo.ListNotifications(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	if list == nil {
		list = []models.Notification{}
	}

	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkNotificationRead marks one notification read. Only the recipient may
// do it; the transition is one-way and repeatable.
func (h *NotificationHandler) MarkNotificationRead(c *gin.Context) {
	notificationID, err := strconv.Atoi(c.Param("notification_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	n, err := h.notificationRepo.GetNotification(c.Request.Context(), notificationID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "notification not found"})
		return
	}

	userID := c.GetInt("userID")
	if n.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the notification recipient"})
		return
	}

	if err := h.notificationRepo.MarkRead(c.Request.Context(), notificationID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark notification read"})
		return
	}

	h.audit.Emit(c.Request.Context(), "info",
		fmt.Sprintf("notification %d marked read", notificationID),
		requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkAllNotificationsRead marks every unread notification of the caller.
func (h *NotificationHandler) MarkAllNotificationsRead(c *gin.Context) {
	userID := c.GetInt("userID")

	if err := h.notificationRepo.MarkAllRead(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark notifications read"})
		return
	}

	h.audit.Emit(c.Request.Context(), "info", "all notifications marked read",
		requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UnreadNotificationCount returns the caller's unread notification count.
func (h *NotificationHandler) UnreadNotificationCount(c *gin.Context) {
	userID := c.GetInt("userID")

	count, err := h.notificationRepo.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}
