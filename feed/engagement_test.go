package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T, gw *fakeGateway, posts ...*Post) (*Store, *Controller, *recordNotifier) {
	t.Helper()
	notif := &recordNotifier{}
	if gw.listPosts == nil {
		gw.listPosts = func(q Query) ([]*Post, Page, error) {
			return posts, Page{Current: 1, Total: 1, Count: len(posts), TotalPosts: len(posts)}, nil
		}
	}
	s := NewStore(gw, nil, notif)
	require.NoError(t, s.Fetch(context.Background()))
	return s, NewController(s, "viewer"), notif
}

func TestToggleLikeReconcilesFromServer(t *testing.T) {
	gw := &fakeGateway{
		toggleLike: func(postID string) (LikeResult, error) {
			return LikeResult{Liked: true, LikeCount: 8}, nil
		},
	}
	s, c, _ := newFixture(t, gw, samplePost("p1"))

	require.NoError(t, c.ToggleLike(context.Background(), "p1"))

	p := s.Posts()[0]
	assert.True(t, p.Liked)
	// Server disagreed with the local +1; its count wins.
	assert.Equal(t, 8, p.LikeCount)
}

func TestToggleLikeTwiceRestoresOriginalState(t *testing.T) {
	// Server-side truth the fake maintains across calls.
	liked, count := false, 4
	gw := &fakeGateway{
		toggleLike: func(postID string) (LikeResult, error) {
			if liked {
				liked, count = false, count-1
			} else {
				liked, count = true, count+1
			}
			return LikeResult{Liked: liked, LikeCount: count}, nil
		},
	}
	post := samplePost("p1")
	post.LikeCount = 4
	s, c, _ := newFixture(t, gw, post)

	require.NoError(t, c.ToggleLike(context.Background(), "p1"))
	require.NoError(t, c.ToggleLike(context.Background(), "p1"))

	p := s.Posts()[0]
	assert.False(t, p.Liked)
	assert.Equal(t, 4, p.LikeCount)
}

func TestToggleLikeRollsBackOnFailure(t *testing.T) {
	gw := &fakeGateway{
		toggleLike: func(postID string) (LikeResult, error) {
			return LikeResult{}, transportErr(errors.New("timeout"))
		},
	}
	post := samplePost("p1")
	post.Liked = true
	post.LikeCount = 5
	post.Likes = []Like{{UserID: "viewer"}, {UserID: "other"}}
	s, c, notif := newFixture(t, gw, post)

	err := c.ToggleLike(context.Background(), "p1")
	require.Error(t, err)

	p := s.Posts()[0]
	assert.True(t, p.Liked)
	assert.Equal(t, 5, p.LikeCount)
	assert.Len(t, p.Likes, 2)
	assert.Equal(t, 1, notif.errorCount())
}

func TestToggleLikeMaintainsLikeSetInvariant(t *testing.T) {
	gw := &fakeGateway{
		toggleLike: func(postID string) (LikeResult, error) {
			return LikeResult{Liked: true, LikeCount: 2}, nil
		},
	}
	post := samplePost("p1")
	post.Likes = []Like{{UserID: "other"}}
	post.LikeCount = 1
	s, c, _ := newFixture(t, gw, post)

	require.NoError(t, c.ToggleLike(context.Background(), "p1"))

	p := s.Posts()[0]
	require.Len(t, p.Likes, 2)
	assert.Equal(t, "viewer", p.Likes[1].UserID)
}

func TestToggleLikeBusyGate(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &fakeGateway{
		toggleLike: func(postID string) (LikeResult, error) {
			close(started)
			<-release
			return LikeResult{Liked: true, LikeCount: 1}, nil
		},
	}
	_, c, _ := newFixture(t, gw, samplePost("p1"))

	done := make(chan error, 1)
	go func() { done <- c.ToggleLike(context.Background(), "p1") }()
	<-started

	err := c.ToggleLike(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, KindBusy, KindOf(err))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, gw.callCount("ToggleLike"))
}

func TestToggleLikeVanishedPostRemovedSilently(t *testing.T) {
	gw := &fakeGateway{
		toggleLike: func(postID string) (LikeResult, error) {
			return LikeResult{}, &Error{Kind: KindNotFound, Status: 404}
		},
	}
	s, c, notif := newFixture(t, gw, samplePost("p1"), samplePost("p2"))

	require.NoError(t, c.ToggleLike(context.Background(), "p1"))

	require.Len(t, s.Posts(), 1)
	assert.Equal(t, "p2", s.Posts()[0].ID)
	assert.Equal(t, 0, notif.errorCount())
}

func TestToggleLikeAuthExpired(t *testing.T) {
	gw := &fakeGateway{
		toggleLike: func(postID string) (LikeResult, error) {
			return LikeResult{}, &Error{Kind: KindAuthExpired, Status: 401}
		},
	}
	s, c, notif := newFixture(t, gw, samplePost("p1"))

	require.Error(t, c.ToggleLike(context.Background(), "p1"))

	assert.False(t, s.Posts()[0].Liked)
	assert.Equal(t, 1, notif.expiredCount())
	assert.Equal(t, 0, notif.errorCount())
}

func TestAddCommentSwapsPlaceholderOnConfirm(t *testing.T) {
	gw := &fakeGateway{
		addComment: func(postID, content string) (*Comment, error) {
			return &Comment{ID: "c42", Content: content, Author: Author{ID: "viewer"}}, nil
		},
	}
	s, c, _ := newFixture(t, gw, samplePost("p1"))

	require.NoError(t, c.AddComment(context.Background(), "p1", "  hello  "))

	p := s.Posts()[0]
	require.Len(t, p.Comments, 1)
	assert.Equal(t, "c42", p.Comments[0].ID)
	assert.Equal(t, "hello", p.Comments[0].Content)
	assert.False(t, p.Comments[0].Pending)
	assert.Equal(t, 1, p.CommentCount)
}

func TestAddCommentFailureRemovesPlaceholder(t *testing.T) {
	gw := &fakeGateway{
		addComment: func(postID, content string) (*Comment, error) {
			return nil, transportErr(errors.New("dial tcp: no route to host"))
		},
	}
	s, c, notif := newFixture(t, gw, samplePost("p1"))

	require.Error(t, c.AddComment(context.Background(), "p1", "offline comment"))

	p := s.Posts()[0]
	assert.Empty(t, p.Comments)
	assert.Equal(t, 0, p.CommentCount)
	assert.Equal(t, 1, notif.errorCount())
}

func TestAddCommentRejectsEmpty(t *testing.T) {
	gw := &fakeGateway{}
	_, c, _ := newFixture(t, gw, samplePost("p1"))

	err := c.AddComment(context.Background(), "p1", "   ")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, gw.callCount("AddComment"))
}

func TestAddReplyToMissingParent(t *testing.T) {
	gw := &fakeGateway{}
	s, c, notif := newFixture(t, gw, samplePost("p1"))

	err := c.AddReply(context.Background(), "p1", "gone", "hi")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, 1, notif.errorCount())
	assert.Equal(t, 0, s.Posts()[0].CommentCount)
	assert.Zero(t, gw.callCount("AddReply"))
}

func TestAddReplyToReplyRejected(t *testing.T) {
	gw := &fakeGateway{}
	post := samplePost("p1")
	reply := &Comment{ID: "r1", ParentID: "c1"}
	post.Comments = []*Comment{{ID: "c1", Replies: []*Comment{reply}}}
	_, c, _ := newFixture(t, gw, post)

	err := c.AddReply(context.Background(), "p1", "r1", "nested")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Zero(t, gw.callCount("AddReply"))
}

func TestAddReplySuccessNestsUnderParent(t *testing.T) {
	gw := &fakeGateway{
		addReply: func(postID, commentID, content string) (*Comment, error) {
			return &Comment{ID: "r9", ParentID: commentID, Content: content}, nil
		},
	}
	post := samplePost("p1")
	post.Comments = []*Comment{{ID: "c1"}}
	post.CommentCount = 1
	s, c, _ := newFixture(t, gw, post)

	require.NoError(t, c.AddReply(context.Background(), "p1", "c1", "reply body"))

	p := s.Posts()[0]
	require.Len(t, p.Comments[0].Replies, 1)
	assert.Equal(t, "r9", p.Comments[0].Replies[0].ID)
	assert.Equal(t, 2, p.CommentCount)
}

func TestToggleCommentLikeRollback(t *testing.T) {
	gw := &fakeGateway{
		toggleCommentLike: func(postID, commentID string) (LikeResult, error) {
			return LikeResult{}, serverErr(500, "internal")
		},
	}
	post := samplePost("p1")
	post.Comments = []*Comment{{ID: "c1", LikeCount: 3}}
	s, c, notif := newFixture(t, gw, post)

	require.Error(t, c.ToggleCommentLike(context.Background(), "p1", "c1"))

	cm := s.Posts()[0].Comments[0]
	assert.False(t, cm.Liked)
	assert.Equal(t, 3, cm.LikeCount)
	assert.Equal(t, 1, notif.errorCount())
}

func TestSaveIdempotent(t *testing.T) {
	gw := &fakeGateway{}
	_, c, _ := newFixture(t, gw, samplePost("p1"))

	require.NoError(t, c.Save(context.Background(), "p1"))
	assert.True(t, c.Saved("p1"))

	// Saving an already-saved post must not hit the server again.
	require.NoError(t, c.Save(context.Background(), "p1"))
	assert.Equal(t, 1, gw.callCount("SavePost"))

	require.NoError(t, c.Unsave(context.Background(), "p1"))
	assert.False(t, c.Saved("p1"))
	assert.Equal(t, 1, gw.callCount("UnsavePost"))
}

func TestSaveRollbackOnFailure(t *testing.T) {
	gw := &fakeGateway{
		relation: func(op, id string) error {
			return transportErr(errors.New("timeout"))
		},
	}
	_, c, notif := newFixture(t, gw, samplePost("p1"))

	require.Error(t, c.Save(context.Background(), "p1"))
	assert.False(t, c.Saved("p1"))
	assert.Equal(t, 1, notif.errorCount())
}

func TestFollowAndMuteToggles(t *testing.T) {
	gw := &fakeGateway{}
	_, c, _ := newFixture(t, gw, samplePost("p1"))

	require.NoError(t, c.Follow(context.Background(), "u7"))
	assert.True(t, c.Following("u7"))
	require.NoError(t, c.Unfollow(context.Background(), "u7"))
	assert.False(t, c.Following("u7"))

	require.NoError(t, c.Mute(context.Background(), "p1"))
	assert.True(t, c.Muted("p1"))
	require.NoError(t, c.Unmute(context.Background(), "p1"))
	assert.False(t, c.Muted("p1"))
}

func TestSeedRelations(t *testing.T) {
	gw := &fakeGateway{}
	_, c, _ := newFixture(t, gw, samplePost("p1"))

	c.SeedRelations([]string{"p1"}, []string{"u1", "u2"}, []string{"p9"})

	assert.True(t, c.Saved("p1"))
	assert.True(t, c.Following("u2"))
	assert.True(t, c.Muted("p9"))
	assert.False(t, c.Saved("p9"))
}

func TestEditPostRollbackRestoresEditableFields(t *testing.T) {
	gw := &fakeGateway{
		updatePost: func(postID string, patch PostPatch) (*Post, error) {
			return nil, serverErr(500, "internal")
		},
	}
	post := samplePost("p1")
	post.Tags = []string{"go"}
	s, c, _ := newFixture(t, gw, post)

	title := "new title"
	tags := []string{"go", "web"}
	require.Error(t, c.EditPost(context.Background(), "p1", PostPatch{Title: &title, Tags: &tags}))

	p := s.Posts()[0]
	assert.Equal(t, "title p1", p.Title)
	assert.Equal(t, []string{"go"}, p.Tags)
}

func TestEditPostReconcilesFromServer(t *testing.T) {
	gw := &fakeGateway{
		updatePost: func(postID string, patch PostPatch) (*Post, error) {
			return &Post{ID: postID, Title: *patch.Title, Excerpt: "server excerpt", UpdatedAt: time.Now()}, nil
		},
	}
	post := samplePost("p1")
	s, c, _ := newFixture(t, gw, post)

	title := "edited"
	require.NoError(t, c.EditPost(context.Background(), "p1", PostPatch{Title: &title}))

	p := s.Posts()[0]
	assert.Equal(t, "edited", p.Title)
	assert.Equal(t, "server excerpt", p.Excerpt)
}

func TestDeletePostWaitsForServer(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &fakeGateway{
		deletePost: func(postID string) error {
			close(started)
			<-release
			return nil
		},
	}
	s, c, notif := newFixture(t, gw, samplePost("p1"))

	done := make(chan error, 1)
	go func() { done <- c.DeletePost(context.Background(), "p1") }()
	<-started

	// The card stays visible until the server confirms.
	require.Len(t, s.Posts(), 1)

	close(release)
	require.NoError(t, <-done)
	assert.Empty(t, s.Posts())
	assert.Equal(t, []string{"post deleted"}, notif.infos)
}

func TestDeletePostFailureKeepsPost(t *testing.T) {
	gw := &fakeGateway{
		deletePost: func(postID string) error {
			return serverErr(500, "internal")
		},
	}
	s, c, notif := newFixture(t, gw, samplePost("p1"))

	require.Error(t, c.DeletePost(context.Background(), "p1"))
	require.Len(t, s.Posts(), 1)
	assert.Equal(t, 1, notif.errorCount())
}

func TestCreatePostRefetchesOnSuccess(t *testing.T) {
	gw := &fakeGateway{}
	_, c, notif := newFixture(t, gw, samplePost("p1"))

	created, err := c.CreatePost(context.Background(), PostDraft{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, "created", created.ID)
	assert.Equal(t, []string{"post published"}, notif.infos)

	assert.Eventually(t, func() bool {
		return gw.callCount("ListPosts") >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestCreatePostValidatesLocally(t *testing.T) {
	gw := &fakeGateway{}
	_, c, _ := newFixture(t, gw, samplePost("p1"))

	_, err := c.CreatePost(context.Background(), PostDraft{Title: " ", Body: "b"})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, gw.callCount("CreatePost"))
}

func TestReportFireAndForget(t *testing.T) {
	gw := &fakeGateway{}
	s, c, notif := newFixture(t, gw, samplePost("p1"))

	require.NoError(t, c.Report(context.Background(), "p1", "spam"))
	assert.Equal(t, []string{"report submitted"}, notif.infos)
	// No local state changes either way.
	require.Len(t, s.Posts(), 1)

	err := c.Report(context.Background(), "p1", "  ")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}
