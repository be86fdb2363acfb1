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

// MessageHandler manages conversation and direct-message endpoints.
type MessageHandler struct {
	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	userRepo         repositories.UserRepository
	dispatcher       *stream.Dispatcher
	audit            *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(conversationRepo repositories.ConversationRepository, messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, dispatcher *stream.Dispatcher, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		dispatcher:       dispatcher,
		audit:            audit,
	}
}

// ListConversations returns the conversations visible to the caller, with
// the other participants' profiles attached.
func (h *MessageHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	convs, err := h.conversationRepo.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		participantIDs, err := h.conversationRepo.ActiveParticipants(c.Request.Context(), conv.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
			return
		}
		otherIDs := make([]int, 0, len(participantIDs))
		for _, id := range participantIDs {
			if id != userID {
				otherIDs = append(otherIDs, id)
			}
		}
		users, err := h.userRepo.BulkUsers(c.Request.Context(), otherIDs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
			return
		}
		summaries = append(summaries, models.ConversationSummary{
			ConversationID: conv.ID,
			Participants:   users,
			CreatedAt:      conv.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// StartConversation creates or returns an existing conversation with the
// recipient.
func (h *MessageHandler) StartConversation(c *gin.Context) {
	var req struct {
		RecipientID int `json:"recipientId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if userID == req.RecipientID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
		return
	}

	conv, err := h.conversationRepo.CreateOrGetConversation(c.Request.Context(), userID, req.RecipientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversationId": conv.ID})
}

// GetMessages returns the messages of a conversation to a participant.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	conversationID, ok := h.conversationForParticipant(c)
	if !ok {
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	senderIDs := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	users, err := h.userRepo.BulkUsers(c.Request.Context(), senderIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}
	senders := map[int]models.User{}
	for _, u := range users {
		senders[u.ID] = u
	}

	type messageResponse struct {
		models.Message
		Sender *models.User `json:"sender,omitempty"`
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		item := messageResponse{Message: m}
		if sender, ok := senders[m.SenderID]; ok {
			item.Sender = &sender
		}
		resp = append(resp, item)
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// PostMessage stores a message and dispatches the push event to the other
// participants. The insert commits before dispatch runs; a failed or missed
// push never affects the response.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	conversationID, ok := h.conversationForParticipant(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), conversationID, userID, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.dispatcher.MessageCreated(c.Request.Context(), msg)
	c.JSON(http.StatusCreated, msg)
}

// MarkConversationRead stamps every unread message from other senders in the
// conversation. It is idempotent: a repeated call changes nothing.
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	conversationID, ok := h.conversationForParticipant(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	affected, err := h.messageRepo.MarkConversationRead(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark conversation read"})
		return
	}

	h.audit.Emit(c.Request.Context(), "info",
		fmt.Sprintf("conversation %d marked read (%d messages)", conversationID, affected),
		requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UnreadCounts returns the caller's derived unread cursor.
func (h *MessageHandler) UnreadCounts(c *gin.Context) {
	userID := c.GetInt("userID")

	counts, err := h.messageRepo.UnreadCounts(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute unread counts"})
		return
	}

	c.JSON(http.StatusOK, counts)
}

// conversationForParticipant parses the conversation id and enforces that
// the caller is an active participant.
func (h *MessageHandler) conversationForParticipant(c *gin.Context) (int, bool) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}

	if _, err := h.conversationRepo.GetConversation(c.Request.Context(), conversationID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return 0, false
	}

	userID := c.GetInt("userID")
	member, err := h.conversationRepo.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return 0, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return 0, false
	}
	return conversationID, true
}
