package models

import "time"

// Post publication statuses.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
	PostStatusArchived  = "archived"
)

// Post represents a community post created by a user.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Excerpt   string    `gorm:"size:512" json:"excerpt"`
	Category  string    `gorm:"size:32;index;default:'general'" json:"category"`
	Tags      string    `gorm:"size:512" json:"tags"` // comma separated slugs
	Status    string    `gorm:"size:16;index;default:'published'" json:"status"`
	Pinned    bool      `gorm:"default:false" json:"pinned"`
	Featured  bool      `gorm:"default:false" json:"featured"`
	Views     int64     `gorm:"default:0" json:"views"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User     User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Comments []Comment  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments"`
	Likes    []PostLike `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"likes"`
}
