package models

import "time"

// SavedPost bookmarks a post for a user.
type SavedPost struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_saved_post;not null" json:"user_id"`
	PostID    uint      `gorm:"uniqueIndex:idx_saved_post;not null" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Follow records that FollowerID follows FolloweeID.
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	FollowerID uint      `gorm:"uniqueIndex:idx_follow;not null" json:"follower_id"`
	FolloweeID uint      `gorm:"uniqueIndex:idx_follow;not null" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// MutedPost hides a post's activity from a user.
type MutedPost struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_muted_post;not null" json:"user_id"`
	PostID    uint      `gorm:"uniqueIndex:idx_muted_post;not null" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Report is a user's flag on a post for moderation.
type Report struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Reason    string    `gorm:"size:512;not null" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
