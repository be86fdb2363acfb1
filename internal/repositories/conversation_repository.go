package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/lonelydomino/pilkchat-sub000/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateOrGetConversation(ctx context.Context, userID int, recipientID int) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID int) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error)
	ActiveParticipants(ctx context.Context, conversationID int) ([]int, error)
	ListConversations(ctx context.Context, userID int) ([]models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateOrGetConversation returns the existing conversation between two users
// or creates one with both as participants.
func (r *ConversationRepo) CreateOrGetConversation(ctx context.Context, userID int, recipientID int) (models.Conversation, error) {
	if userID == recipientID {
		return models.Conversation{}, errors.New("cannot create conversation with self")
	}

	var conv models.Conversation
	query := `SELECT c.id, c.created_at FROM conversations c
        JOIN conversation_participants p1 ON p1.conversation_id = c.id AND p1.user_id = $1
        JOIN conversation_participants p2 ON p2.conversation_id = c.id AND p2.user_id = $2
        ORDER BY c.id ASC LIMIT 1`
	err := r.db.GetContext(ctx, &conv, query, userID, recipientID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	if err := tx.QueryRowxContext(ctx, `INSERT INTO conversations DEFAULT VALUES RETURNING id, created_at`).
		Scan(&conv.ID, &conv.CreatedAt); err != nil {
		return models.Conversation{}, err
	}
	for _, id := range []int{userID, recipientID} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)`, conv.ID, id); err != nil {
			return models.Conversation{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, created_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// IsParticipant checks active membership for a user.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(
        SELECT 1 FROM conversation_participants
        WHERE conversation_id=$1 AND user_id=$2 AND left_at IS NULL)`, conversationID, userID)
	return exists, err
}

// ActiveParticipants returns the user ids still in the conversation. This is
// the audience for message-targeted stream events.
func (r *ConversationRepo) ActiveParticipants(ctx context.Context, conversationID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM conversation_participants
        WHERE conversation_id=$1 AND left_at IS NULL ORDER BY user_id ASC`, conversationID)
	return ids, err
}

// ListConversations returns conversations the user still participates in.
func (r *ConversationRepo) ListConversations(ctx context.Context, userID int) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, `SELECT c.id, c.created_at FROM conversations c
        JOIN conversation_participants p ON p.conversation_id = c.id
        WHERE p.user_id=$1 AND p.left_at IS NULL
        ORDER BY c.created_at DESC`, userID)
	return convs, err
}
