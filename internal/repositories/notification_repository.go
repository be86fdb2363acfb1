package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/lonelydomino/pilkchat-sub000/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository abstracts notification persistence.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	ListNotifications(ctx context.Context, userID int) ([]models.Notification, error)
	GetNotification(ctx context.Context, notificationID int) (models.Notification, error)
	MarkRead(ctx context.Context, notificationID int) error
	MarkAllRead(ctx context.Context, userID int) error
	UnreadCount(ctx context.Context, userID int) (int, error)
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// CreateNotification inserts a notification row for its recipient.
func (r *NotificationRepo) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	err := r.db.QueryRowxContext(ctx, `INSERT INTO notifications (user_id, type, message, related_user_id, related_post_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, user_id, type, message, read, related_user_id, related_post_id, created_at`,
		n.UserID, n.Type, n.Message, n.RelatedUserID, n.RelatedPostID).
		Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.Read, &n.RelatedUserID, &n.RelatedPostID, &n.CreatedAt)
	return n, err
}

// ListNotifications returns the recipient's notifications, newest first.
func (r *NotificationRepo) ListNotifications(ctx context.Context, userID int) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.SelectContext(ctx, &list, `SELECT id, user_id, type, message, read, related_user_id, related_post_id, created_at
        FROM notifications WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	return list, err
}

// GetNotification retrieves a single notification.
func (r *NotificationRepo) GetNotification(ctx context.Context, notificationID int) (models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n, `SELECT id, user_id, type, message, read, related_user_id, related_post_id, created_at
        FROM notifications WHERE id=$1`, notificationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notification{}, ErrNotificationNotFound
	}
	return n, err
}

// MarkRead flips read to true. The transition is one-way.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id=$1`, notificationID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the recipient as read.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE user_id=$1 AND read = FALSE`, userID)
	return err
}

// UnreadCount counts unread notifications for the recipient.
func (r *NotificationRepo) UnreadCount(ctx context.Context, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND read = FALSE`, userID)
	return count, err
}
