package models

import "time"

// Stream event types pushed over the event stream.
const (
	EventConnected       = "connected"
	EventHeartbeat       = "heartbeat"
	EventNewNotification = "new_notification"
	EventNewMessage      = "new_message"
)

// StreamEvent is the envelope written as one stream frame. It is immutable
// once constructed.
type StreamEvent struct {
	Type         string        `json:"type"`
	UserID       int           `json:"userId,omitempty"`
	Timestamp    string        `json:"timestamp,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Message      *MessageEvent `json:"message,omitempty"`
}

// MessageEvent is the payload of a new_message envelope.
type MessageEvent struct {
	ConversationID int            `json:"conversationId"`
	Message        MessagePayload `json:"message"`
}

// MessagePayload is a message enriched with its sender's profile.
type MessagePayload struct {
	ID        int       `json:"id"`
	Content   string    `json:"content"`
	SenderID  int       `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    User      `json:"sender"`
}
