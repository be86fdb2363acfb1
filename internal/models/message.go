package models

import "time"

// Message represents a direct message. ReadAt is set once by
// mark-conversation-read and never cleared.
type Message struct {
	ID             int        `db:"id" json:"id"`
	ConversationID int        `db:"conversation_id" json:"conversationId"`
	SenderID       int        `db:"sender_id" json:"senderId"`
	Content        string     `db:"content" json:"content"`
	ReadAt         *time.Time `db:"read_at" json:"readAt"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
}
