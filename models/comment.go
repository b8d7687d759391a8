package models

import "time"

// Comment represents a comment on a post. A non-null ParentID marks it
// as a reply to another comment; replies cannot themselves be replied
// to (depth is capped at one level).
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User  User          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Likes []CommentLike `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"likes"`
}
