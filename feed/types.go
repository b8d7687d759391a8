package feed

import "time"

// Post publication status.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Sort orders accepted by the posts listing.
const (
	SortRecent   = "recent"
	SortPopular  = "popular"
	SortTrending = "trending"
	SortOldest   = "oldest"
)

// CategoryAll selects every category in a Query.
const CategoryAll = "all"

// Author identifies the creator of a post or comment.
type Author struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// Like records a single user's like on a post or comment.
type Like struct {
	UserID  string    `json:"user_id"`
	LikedAt time.Time `json:"liked_at"`
}

// Comment is a comment on a post, or a reply when ParentID is set.
// Nesting stops at one level: replies never carry their own replies.
type Comment struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Likes     []Like    `json:"likes,omitempty"`
	LikeCount int       `json:"like_count"`
	Liked     bool      `json:"liked"`
	Replies   []*Comment `json:"replies,omitempty"`

	// Pending marks a locally created comment that has not been
	// confirmed by the server yet.
	Pending bool `json:"pending,omitempty"`
}

// Post is the canonical client-side shape of a community post.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Excerpt   string    `json:"excerpt"`
	Author    Author    `json:"author"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	Status    Status    `json:"status"`
	Pinned    bool      `json:"pinned"`
	Featured  bool      `json:"featured"`
	ViewCount int       `json:"view_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Likes     []Like     `json:"likes,omitempty"`
	Comments  []*Comment `json:"comments,omitempty"`
	LikeCount int        `json:"like_count"`
	CommentCount int     `json:"comment_count"`
	Liked     bool       `json:"liked"`
}

// Page is the pagination cursor returned alongside a posts page.
type Page struct {
	Current    int `json:"current"`
	Total      int `json:"total"`
	Count      int `json:"count"`
	TotalPosts int `json:"totalPosts"`
}

// Query is the active feed view state. Exactly one Query is active per
// store; changing any field other than Page restarts from page 1.
type Query struct {
	Category string
	Search   string
	Sort     string
	Tag      string
	Page     int
	Limit    int
}

// QueryPatch is a partial Query merged into the active one by
// Store.SetFilter. Nil fields are left untouched.
type QueryPatch struct {
	Category *string
	Search   *string
	Sort     *string
	Tag      *string
	Limit    *int
}

// PresenceRecord describes one community member's online status.
type PresenceRecord struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	AvatarURL  string    `json:"avatar_url"`
	Role       string    `json:"role"`
	IsOnline   bool      `json:"is_online"`
	LastSeen   time.Time `json:"last_seen"`
	PostCount  int       `json:"post_count"`
	Reputation int       `json:"reputation"`
}

// LikeResult is the authoritative server state after a like toggle.
type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

// PostDraft carries the fields needed to create a post.
type PostDraft struct {
	Title    string   `json:"title"`
	Body     string   `json:"content"`
	Excerpt  string   `json:"excerpt,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// PostPatch carries the editable fields of a post. Nil fields are not
// touched by an edit.
type PostPatch struct {
	Title    *string   `json:"title,omitempty"`
	Body     *string   `json:"content,omitempty"`
	Excerpt  *string   `json:"excerpt,omitempty"`
	Category *string   `json:"category,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
}

// DefaultQuery is the view state on mount: all categories, newest
// first, first page.
func DefaultQuery() Query {
	return Query{Category: CategoryAll, Sort: SortRecent, Page: 1, Limit: 10}
}

// merge applies a patch and returns the resulting query. Page resets to
// 1 whenever any field changes.
func (q Query) merge(p QueryPatch) Query {
	out := q
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Search != nil {
		out.Search = *p.Search
	}
	if p.Sort != nil {
		out.Sort = *p.Sort
	}
	if p.Tag != nil {
		out.Tag = *p.Tag
	}
	if p.Limit != nil {
		out.Limit = *p.Limit
	}
	out.Page = 1
	return out
}
