package models

import "time"

// PostLike records one user's like on a post. The composite unique
// index makes the toggle idempotent at the storage layer.
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	PostID    uint      `gorm:"uniqueIndex:idx_post_like;not null" json:"post_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_post_like;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentLike records one user's like on a comment.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	CommentID uint      `gorm:"uniqueIndex:idx_comment_like;not null" json:"comment_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_comment_like;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
