package models

import "time"

// Notification targets exactly one recipient. Read flips false -> true once
// and is never cleared.
type Notification struct {
	ID            int       `db:"id" json:"id"`
	UserID        int       `db:"user_id" json:"-"`
	Type          string    `db:"type" json:"type"`
	Message       string    `db:"message" json:"message"`
	Read          bool      `db:"read" json:"read"`
	RelatedUserID *int      `db:"related_user_id" json:"relatedUserId,omitempty"`
	RelatedPostID *int      `db:"related_post_id" json:"relatedPostId,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
