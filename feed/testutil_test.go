package feed

import (
	"context"
	"sync"
	"time"
)

// fakeGateway is a scriptable in-memory Gateway. Each method delegates
// to the corresponding func field when set and fails the fast way (nil
// results, no error) otherwise.
type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	listPosts         func(q Query) ([]*Post, Page, error)
	createPost        func(draft PostDraft) (*Post, error)
	updatePost        func(postID string, patch PostPatch) (*Post, error)
	deletePost        func(postID string) error
	toggleLike        func(postID string) (LikeResult, error)
	addComment        func(postID, content string) (*Comment, error)
	addReply          func(postID, commentID, content string) (*Comment, error)
	toggleCommentLike func(postID, commentID string) (LikeResult, error)
	relation          func(op, id string) error
	reportPost        func(postID, reason string) error
	listMembers       func() ([]PresenceRecord, error)
	setStatus         func(status string) error
}

func (f *fakeGateway) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeGateway) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeGateway) ListPosts(_ context.Context, q Query) ([]*Post, Page, error) {
	f.record("ListPosts")
	if f.listPosts != nil {
		return f.listPosts(q)
	}
	return nil, Page{}, nil
}

func (f *fakeGateway) CreatePost(_ context.Context, draft PostDraft) (*Post, error) {
	f.record("CreatePost")
	if f.createPost != nil {
		return f.createPost(draft)
	}
	return &Post{ID: "created", Title: draft.Title, Body: draft.Body}, nil
}

func (f *fakeGateway) UpdatePost(_ context.Context, postID string, patch PostPatch) (*Post, error) {
	f.record("UpdatePost")
	if f.updatePost != nil {
		return f.updatePost(postID, patch)
	}
	return &Post{ID: postID}, nil
}

func (f *fakeGateway) DeletePost(_ context.Context, postID string) error {
	f.record("DeletePost")
	if f.deletePost != nil {
		return f.deletePost(postID)
	}
	return nil
}

func (f *fakeGateway) ToggleLike(_ context.Context, postID string) (LikeResult, error) {
	f.record("ToggleLike")
	if f.toggleLike != nil {
		return f.toggleLike(postID)
	}
	return LikeResult{}, nil
}

func (f *fakeGateway) AddComment(_ context.Context, postID, content string) (*Comment, error) {
	f.record("AddComment")
	if f.addComment != nil {
		return f.addComment(postID, content)
	}
	return &Comment{ID: "c-new", Content: content}, nil
}

func (f *fakeGateway) AddReply(_ context.Context, postID, commentID, content string) (*Comment, error) {
	f.record("AddReply")
	if f.addReply != nil {
		return f.addReply(postID, commentID, content)
	}
	return &Comment{ID: "r-new", ParentID: commentID, Content: content}, nil
}

func (f *fakeGateway) ToggleCommentLike(_ context.Context, postID, commentID string) (LikeResult, error) {
	f.record("ToggleCommentLike")
	if f.toggleCommentLike != nil {
		return f.toggleCommentLike(postID, commentID)
	}
	return LikeResult{}, nil
}

func (f *fakeGateway) rel(op, id string) error {
	f.record(op)
	if f.relation != nil {
		return f.relation(op, id)
	}
	return nil
}

func (f *fakeGateway) SavePost(_ context.Context, postID string) error {
	return f.rel("SavePost", postID)
}

func (f *fakeGateway) UnsavePost(_ context.Context, postID string) error {
	return f.rel("UnsavePost", postID)
}

func (f *fakeGateway) FollowUser(_ context.Context, userID string) error {
	return f.rel("FollowUser", userID)
}

func (f *fakeGateway) UnfollowUser(_ context.Context, userID string) error {
	return f.rel("UnfollowUser", userID)
}

func (f *fakeGateway) MutePost(_ context.Context, postID string) error {
	return f.rel("MutePost", postID)
}

func (f *fakeGateway) UnmutePost(_ context.Context, postID string) error {
	return f.rel("UnmutePost", postID)
}

func (f *fakeGateway) ReportPost(_ context.Context, postID, reason string) error {
	f.record("ReportPost")
	if f.reportPost != nil {
		return f.reportPost(postID, reason)
	}
	return nil
}

func (f *fakeGateway) ListOnlineMembers(_ context.Context) ([]PresenceRecord, error) {
	f.record("ListOnlineMembers")
	if f.listMembers != nil {
		return f.listMembers()
	}
	return nil, nil
}

func (f *fakeGateway) SetUserStatus(_ context.Context, status string) error {
	f.record("SetUserStatus")
	if f.setStatus != nil {
		return f.setStatus(status)
	}
	return nil
}

// recordNotifier captures every notification for assertions.
type recordNotifier struct {
	mu       sync.Mutex
	infos    []string
	errors   []string
	expireds int
}

func (r *recordNotifier) Info(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}

func (r *recordNotifier) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recordNotifier) SessionExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireds++
}

func (r *recordNotifier) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

func (r *recordNotifier) expiredCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expireds
}

func samplePost(id string) *Post {
	return &Post{
		ID:        id,
		Title:     "title " + id,
		Body:      "body " + id,
		Category:  "general",
		Status:    StatusPublished,
		CreatedAt: time.Now(),
	}
}
