package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/lonelydomino/pilkchat-sub000/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for direct messages and the derived
// unread cursor.
type MessageRepository interface {
	CreateMessage(ctx context.Context, conversationID int, senderID int, content string) (models.Message, error)
	ListMessages(ctx context.Context, conversationID int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID int, userID int) (int64, error)
	UnreadCounts(ctx context.Context, userID int) (models.UnreadCounts, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message in a conversation.
func (r *MessageRepo) CreateMessage(ctx context.Context, conversationID int, senderID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, content)
        VALUES ($1, $2, $3)
        RETURNING id, conversation_id, sender_id, content, read_at, created_at`, conversationID, senderID, content).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.ReadAt, &msg.CreatedAt)
	return msg, err
}

// ListMessages returns ordered messages for a conversation.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, conversation_id, sender_id, content, read_at, created_at
        FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC`, conversationID)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, conversation_id, sender_id, content, read_at, created_at
        FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkConversationRead stamps read_at on every unread message not sent by the
// viewer. read_at is monotonic: rows already stamped are never touched again,
// so a repeated call affects zero rows.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID int, userID int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read_at = NOW()
        WHERE conversation_id=$1 AND sender_id<>$2 AND read_at IS NULL`, conversationID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadCounts derives the unread cursor for the viewer across every
// conversation they still participate in. It is recomputed on each call;
// nothing is cached.
func (r *MessageRepo) UnreadCounts(ctx context.Context, userID int) (models.UnreadCounts, error) {
	var perConversation []models.ConversationUnread
	err := r.db.SelectContext(ctx, &perConversation, `SELECT m.conversation_id, COUNT(*) AS unread_count
        FROM messages m
        JOIN conversation_participants p
            ON p.conversation_id = m.conversation_id AND p.user_id=$1 AND p.left_at IS NULL
        WHERE m.sender_id<>$1 AND m.read_at IS NULL
        GROUP BY m.conversation_id
        ORDER BY m.conversation_id ASC`, userID)
	if err != nil {
		return models.UnreadCounts{}, err
	}

	counts := models.UnreadCounts{ConversationsWithUnread: perConversation}
	if counts.ConversationsWithUnread == nil {
		counts.ConversationsWithUnread = []models.ConversationUnread{}
	}
	for _, c := range perConversation {
		counts.TotalUnread += c.UnreadCount
	}
	return counts, nil
}
