package stream

import (
	"context"
	"log"

	"github.com/lonelydomino/pilkchat-sub000/internal/models"
	"github.com/lonelydomino/pilkchat-sub000/internal/repositories"
)

// Dispatcher builds typed envelopes for committed domain writes and hands
// them to the registry. It is called strictly after the triggering row is
// durable; nothing it does can fail the caller, and it never retries.
type Dispatcher struct {
	registry      *Registry
	conversations repositories.ConversationRepository
	users         repositories.UserRepository
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(registry *Registry, conversations repositories.ConversationRepository, users repositories.UserRepository) *Dispatcher {
	return &Dispatcher{registry: registry, conversations: conversations, users: users}
}

// NotificationCreated pushes a new_notification envelope to the recipient.
func (d *Dispatcher) NotificationCreated(n models.Notification) {
	notification := n
	d.registry.Send(n.UserID, models.StreamEvent{
		Type:         models.EventNewNotification,
		Notification: &notification,
	})
}

// MessageCreated fans a new_message envelope out to every active participant
// of the conversation except the sender.
func (d *Dispatcher) MessageCreated(ctx context.Context, msg models.Message) {
	participants, err := d.conversations.ActiveParticipants(ctx, msg.ConversationID)
	if err != nil {
		log.Printf("dispatch: resolve participants for conversation %d: %v", msg.ConversationID, err)
		return
	}

	sender, err := d.users.GetUser(ctx, msg.SenderID)
	if err != nil {
		// Deliver without profile enrichment rather than not at all.
		log.Printf("dispatch: load sender %d: %v", msg.SenderID, err)
		sender = models.User{ID: msg.SenderID}
	}

	event := models.StreamEvent{
		Type: models.EventNewMessage,
		Message: &models.MessageEvent{
			ConversationID: msg.ConversationID,
			Message: models.MessagePayload{
				ID:        msg.ID,
				Content:   msg.Content,
				SenderID:  msg.SenderID,
				CreatedAt: msg.CreatedAt,
				Sender:    sender,
			},
		},
	}

	for _, userID := range participants {
		if userID == msg.SenderID {
			continue
		}
		d.registry.Send(userID, event)
	}
}
