package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lonelydomino/pilkchat-sub000/internal/mocks"
	"github.com/lonelydomino/pilkchat-sub000/internal/models"
	"github.com/lonelydomino/pilkchat-sub000/internal/repositories"
	"github.com/lonelydomino/pilkchat-sub000/internal/stream"
)

func setupNotificationRouter(h *NotificationHandler, userID int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("userID", userID) })

	router.GET("/notifications", h.ListNotifications)
	router.POST("/notifications", h.CreateNotification)
	router.POST("/notifications/:notification_id/read", h.MarkNotificationRead)
	router.POST("/notifications/mark-all-read", h.MarkAllNotificationsRead)
	router.GET("/notifications/unread-count", h.UnreadNotificationCount)
	return router
}

func newNotificationHandler(store repositories.NotificationRepository, registry *stream.Registry) *NotificationHandler {
	dispatcher := stream.NewDispatcher(registry, repositories.NewMemoryConversationStore(), new(mocks.UserRepositoryMock))
	return NewNotificationHandler(store, dispatcher, testAudit())
}

func TestCreateNotificationPushesToRecipient(t *testing.T) {
	store := repositories.NewMemoryNotificationStore()
	registry := stream.NewRegistry()
	sub := stream.NewSubscriber(5, "conn-recipient")
	registry.Register(5, sub)

	router := setupNotificationRouter(newNotificationHandler(store, registry), 1)
	w := doJSON(t, router, http.MethodPost, "/notifications", gin.H{
		"userId":        5,
		"type":          "like",
		"message":       "Alice liked your post",
		"relatedUserId": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Notification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, "like", created.Type)
	require.False(t, created.Read)

	select {
	case frame := <-sub.Frames():
		var event models.StreamEvent
		require.NoError(t, json.Unmarshal(frame, &event))
		require.Equal(t, models.EventNewNotification, event.Type)
		require.NotNil(t, event.Notification)
		require.Equal(t, "Alice liked your post", event.Notification.Message)
	default:
		t.Fatal("recipient stream did not receive the notification event")
	}
}

func TestCreateNotificationValidation(t *testing.T) {
	router := setupNotificationRouter(newNotificationHandler(repositories.NewMemoryNotificationStore(), stream.NewRegistry()), 1)

	w := doJSON(t, router, http.MethodPost, "/notifications", gin.H{"type": "like"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkNotificationReadLifecycle(t *testing.T) {
	store := repositories.NewMemoryNotificationStore()
	router := setupNotificationRouter(newNotificationHandler(store, stream.NewRegistry()), 5)

	for _, msg := range []string{"first", "second"} {
		w := doJSON(t, router, http.MethodPost, "/notifications", gin.H{"userId": 5, "type": "comment", "message": msg})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/notifications/unread-count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"unreadCount": 2}`, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/notifications/1/read", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Repeating the transition is allowed and changes nothing.
	w = doJSON(t, router, http.MethodPost, "/notifications/1/read", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/notifications/unread-count", nil)
	require.JSONEq(t, `{"unreadCount": 1}`, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/notifications/mark-all-read", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/notifications/unread-count", nil)
	require.JSONEq(t, `{"unreadCount": 0}`, w.Body.String())
}

func TestMarkNotificationReadForbiddenForNonRecipient(t *testing.T) {
	store := new(mocks.NotificationRepositoryMock)
	store.On("GetNotification", mock.Anything, 9).
		Return(models.Notification{ID: 9, UserID: 2, Type: "follow"}, nil).Once()

	router := setupNotificationRouter(newNotificationHandler(store, stream.NewRegistry()), 1)
	w := doJSON(t, router, http.MethodPost, "/notifications/9/read", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	// MarkRead must never run for a caller who is not the recipient.
	store.AssertNotCalled(t, "MarkRead", mock.Anything, 9)
	store.AssertExpectations(t)
}

func TestMarkNotificationReadUnknownID(t *testing.T) {
	router := setupNotificationRouter(newNotificationHandler(repositories.NewMemoryNotificationStore(), stream.NewRegistry()), 1)

	w := doJSON(t, router, http.MethodPost, "/notifications/123/read", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/notifications/abc/read", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListNotificationsNewestFirstScopedToCaller(t *testing.T) {
	store := repositories.NewMemoryNotificationStore()
	router := setupNotificationRouter(newNotificationHandler(store, stream.NewRegistry()), 5)

	for _, tc := range []struct {
		userID  int
		message string
	}{
		{5, "older"},
		{2, "someone else's"},
		{5, "newer"},
	} {
		w := doJSON(t, router, http.MethodPost, "/notifications", gin.H{"userId": tc.userID, "type": "like", "message": tc.message})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Notifications []models.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 2)
	require.Equal(t, "newer", resp.Notifications[0].Message)
	require.Equal(t, "older", resp.Notifications[1].Message)
}

func TestListNotificationsEmpty(t *testing.T) {
	router := setupNotificationRouter(newNotificationHandler(repositories.NewMemoryNotificationStore(), stream.NewRegistry()), 5)

	w := doJSON(t, router, http.MethodGet, "/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"notifications": []}`, w.Body.String())
}
