package models

import "time"

// Conversation groups messages between a set of participants.
type Conversation struct {
	ID        int       `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ConversationParticipant records membership; a non-null LeftAt means the
// user no longer receives events or counts for the conversation.
type ConversationParticipant struct {
	ConversationID int        `db:"conversation_id" json:"conversationId"`
	UserID         int        `db:"user_id" json:"userId"`
	LeftAt         *time.Time `db:"left_at" json:"leftAt"`
}

// ConversationSummary is the API view of a conversation for one user.
type ConversationSummary struct {
	ConversationID int       `json:"conversationId"`
	Participants   []User    `json:"participants"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationUnread is the per-conversation slice of the unread cursor.
type ConversationUnread struct {
	ConversationID int `db:"conversation_id" json:"conversationId"`
	UnreadCount    int `db:"unread_count" json:"unreadCount"`
}

// UnreadCounts is recomputed on every read; it is never stored.
type UnreadCounts struct {
	TotalUnread             int                  `json:"totalUnread"`
	ConversationsWithUnread []ConversationUnread `json:"conversationsWithUnread"`
}
