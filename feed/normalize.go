package feed

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// flexID tolerates servers that emit numeric ids and servers that emit
// string ids; either way the canonical id is an opaque string.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// flexTags accepts either a JSON array of strings or a single
// comma-separated string.
type flexTags []string

func (f *flexTags) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = nil
		return nil
	}
	if b[0] == '[' {
		var arr []string
		if err := json.Unmarshal(b, &arr); err != nil {
			return err
		}
		*f = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	*f = out
	return nil
}

type wireAuthor struct {
	ID        flexID `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"`
}

type wireLike struct {
	UserID    flexID    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type wireComment struct {
	ID        flexID      `json:"id"`
	PostID    flexID      `json:"post_id"`
	ParentID  flexID      `json:"parent_id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Author    *wireAuthor `json:"author"`
	// Some payloads nest the author under "user" instead.
	User  *wireAuthor `json:"user"`
	Likes []wireLike  `json:"likes"`
}

type wirePost struct {
	ID        flexID      `json:"id"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Body      string      `json:"body"`
	Excerpt   string      `json:"excerpt"`
	Category  string      `json:"category"`
	Tags      flexTags    `json:"tags"`
	Status    string      `json:"status"`
	Pinned    bool        `json:"pinned"`
	Featured  bool        `json:"featured"`
	Views     int         `json:"views"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Author    *wireAuthor `json:"author"`
	User      *wireAuthor `json:"user"`
	Likes     []wireLike  `json:"likes"`
	Comments  []wireComment `json:"comments"`
}

type wirePage struct {
	Current    int   `json:"current"`
	Total      int   `json:"total"`
	Count      int   `json:"count"`
	TotalPosts int64 `json:"totalPosts"`
}

func (w wirePage) page() Page {
	return Page{Current: w.Current, Total: w.Total, Count: w.Count, TotalPosts: int(w.TotalPosts)}
}

type wireMember struct {
	ID        flexID `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"`
	// Presence is marked either with an explicit flag or a status word.
	IsOnline   bool      `json:"is_online"`
	Status     string    `json:"status"`
	LastSeen   time.Time `json:"lastSeenAt"`
	PostCount  int       `json:"postCount"`
	Reputation int       `json:"reputation"`
}

// Normalizer converts loose wire payloads into the canonical entities.
// It is the only place wire shapes are interpreted; nothing loosely
// typed leaks past it.
type Normalizer struct {
	currentUser string
}

func NewNormalizer(currentUser string) *Normalizer {
	return &Normalizer{currentUser: currentUser}
}

func (n *Normalizer) author(a, alt *wireAuthor) Author {
	src := a
	if src == nil {
		src = alt
	}
	if src == nil {
		return Author{}
	}
	name := src.Name
	if name == "" {
		name = src.Username
	}
	return Author{
		ID:        string(src.ID),
		Name:      name,
		Email:     src.Email,
		AvatarURL: src.AvatarURL,
	}
}

func (n *Normalizer) likes(ws []wireLike) []Like {
	if len(ws) == 0 {
		return nil
	}
	out := make([]Like, 0, len(ws))
	for _, w := range ws {
		out = append(out, Like{UserID: string(w.UserID), LikedAt: w.CreatedAt})
	}
	return out
}

func (n *Normalizer) likedBy(likes []Like) bool {
	if n.currentUser == "" {
		return false
	}
	for _, l := range likes {
		if l.UserID == n.currentUser {
			return true
		}
	}
	return false
}

// Comment normalizes a single comment; reply nesting is resolved by the
// caller (Post) which sees the whole flat sequence.
func (n *Normalizer) Comment(w wireComment) *Comment {
	likes := n.likes(w.Likes)
	return &Comment{
		ID:        string(w.ID),
		ParentID:  string(w.ParentID),
		Author:    n.author(w.Author, w.User),
		Content:   w.Content,
		CreatedAt: w.CreatedAt,
		Likes:     likes,
		LikeCount: len(likes),
		Liked:     n.likedBy(likes),
	}
}

// Post normalizes a post and rebuilds its comment tree. The server
// returns comments flat, in creation order, each reply carrying its
// parent's id; replies whose parent is absent from the payload degrade
// to top-level comments rather than disappearing.
func (n *Normalizer) Post(w wirePost) *Post {
	likes := n.likes(w.Likes)

	byID := make(map[string]*Comment, len(w.Comments))
	flat := make([]*Comment, 0, len(w.Comments))
	for _, wc := range w.Comments {
		c := n.Comment(wc)
		byID[c.ID] = c
		flat = append(flat, c)
	}

	var top []*Comment
	for _, c := range flat {
		if c.ParentID == "" {
			top = append(top, c)
			continue
		}
		parent, ok := byID[c.ParentID]
		if !ok || parent.ParentID != "" {
			// Orphaned reply, or a reply whose parent is itself a
			// reply. Depth is capped at one level, so surface it as
			// a top-level comment.
			c.ParentID = ""
			top = append(top, c)
			continue
		}
		parent.Replies = append(parent.Replies, c)
	}

	body := w.Body
	if body == "" {
		body = w.Content
	}
	status := Status(w.Status)
	if status == "" {
		status = StatusPublished
	}

	return &Post{
		ID:           string(w.ID),
		Title:        w.Title,
		Body:         body,
		Excerpt:      excerptOf(w.Excerpt, body),
		Author:       n.author(w.Author, w.User),
		Category:     w.Category,
		Tags:         []string(w.Tags),
		Status:       status,
		Pinned:       w.Pinned,
		Featured:     w.Featured,
		ViewCount:    w.Views,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
		Likes:        likes,
		Comments:     top,
		LikeCount:    len(likes),
		CommentCount: len(flat),
		Liked:        n.likedBy(likes),
	}
}

func (n *Normalizer) Posts(ws []wirePost) []*Post {
	out := make([]*Post, 0, len(ws))
	for _, w := range ws {
		out = append(out, n.Post(w))
	}
	return out
}

func (n *Normalizer) Members(ws []wireMember) []PresenceRecord {
	out := make([]PresenceRecord, 0, len(ws))
	for _, w := range ws {
		name := w.Name
		if name == "" {
			name = w.Username
		}
		out = append(out, PresenceRecord{
			UserID:     string(w.ID),
			Name:       name,
			AvatarURL:  w.AvatarURL,
			Role:       w.Role,
			IsOnline:   w.IsOnline || w.Status == "online",
			LastSeen:   w.LastSeen,
			PostCount:  w.PostCount,
			Reputation: w.Reputation,
		})
	}
	return out
}

const excerptLen = 160

// excerptOf falls back to a truncated body when the server did not
// provide an excerpt.
func excerptOf(explicit, body string) string {
	if explicit != "" {
		return explicit
	}
	runes := []rune(body)
	if len(runes) <= excerptLen {
		return body
	}
	return strings.TrimSpace(string(runes[:excerptLen])) + "…"
}
