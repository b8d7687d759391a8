package feed

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Actions used to key in-flight mutation gates.
const (
	actionLike        = "like"
	actionComment     = "comment"
	actionReply       = "reply"
	actionCommentLike = "comment-like"
	actionSave        = "save"
	actionFollow      = "follow"
	actionMute        = "mute"
	actionEdit        = "edit"
	actionDelete      = "delete"
)

// mutationKey identifies one (entity, action) pair. At most one
// mutation per key may be in flight; a second attempt is rejected with
// a busy error rather than racing the first for the counter.
type mutationKey struct {
	target string
	action string
}

// intent is the compensating-action record for one speculative
// mutation: everything needed to put the entity back exactly as it was.
type intent struct {
	id      string
	key     mutationKey
	restore func()
}

// Controller applies every engagement mutation with the same two-phase
// protocol: mutate the local entity immediately, then confirm against
// the server and either reconcile or roll back to the captured
// snapshot. The UI never waits on the network to reflect a tap.
type Controller struct {
	store  *Store
	gw     Gateway
	log    *zap.SugaredLogger
	notify Notifier

	// userID is the authenticated user, recorded in speculative like
	// entries so likeCount stays equal to len(likes).
	userID string

	// All fields below are guarded by store.mu; the post sequence and
	// this pending map are the two shared mutable resources and they
	// move together.
	pending  map[mutationKey]*intent
	saved    map[string]struct{}
	followed map[string]struct{}
	muted    map[string]struct{}
}

// NewController builds the engagement controller bound to store's
// displayed entities. userID is the current session's user id.
func NewController(store *Store, userID string) *Controller {
	return &Controller{
		store:    store,
		gw:       store.gw,
		log:      store.log,
		notify:   store.notify,
		userID:   userID,
		pending:  map[mutationKey]*intent{},
		saved:    map[string]struct{}{},
		followed: map[string]struct{}{},
		muted:    map[string]struct{}{},
	}
}

// begin registers a speculative mutation. Callers must hold store.mu
// and must have already applied the local change that restore undoes.
func (c *Controller) begin(key mutationKey, restore func()) (*intent, error) {
	if _, busy := c.pending[key]; busy {
		return nil, busyErr(key.target, key.action)
	}
	in := &intent{id: uuid.NewString(), key: key, restore: restore}
	c.pending[key] = in
	return in, nil
}

// settle resolves an intent after the round-trip. reconcile runs on
// success with the lock held; vanish runs when the target disappeared
// server-side, where there is nothing to roll back to. Any other
// failure restores the snapshot and tells the user what failed.
func (c *Controller) settle(in *intent, err error, failMsg string, reconcile, vanish func()) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	delete(c.pending, in.key)

	if err == nil {
		if reconcile != nil {
			reconcile()
		}
		return nil
	}

	switch KindOf(err) {
	case KindNotFound:
		if vanish != nil {
			vanish()
		} else {
			in.restore()
		}
		c.log.Debugw("engagement target vanished", "target", in.key.target, "action", in.key.action)
		return nil
	case KindAuthExpired:
		in.restore()
		c.notify.SessionExpired()
	default:
		in.restore()
		c.notify.Error(failMsg)
	}
	c.log.Warnw("engagement mutation failed", "target", in.key.target, "action", in.key.action, "err", err)
	return err
}

// ToggleLike flips the viewer's like on a post, adjusting likeCount and
// the like set ahead of confirmation.
func (c *Controller) ToggleLike(ctx context.Context, postID string) error {
	c.store.mu.Lock()
	p := c.store.locate(postID)
	if p == nil {
		c.store.mu.Unlock()
		return validationErr("post not found: " + postID)
	}

	prevLiked, prevCount := p.Liked, p.LikeCount
	prevLikes := p.Likes
	in, err := c.begin(mutationKey{postID, actionLike}, func() {
		p.Liked, p.LikeCount, p.Likes = prevLiked, prevCount, prevLikes
	})
	if err != nil {
		c.store.mu.Unlock()
		return err
	}

	if p.Liked {
		p.Liked = false
		p.LikeCount--
		p.Likes = withoutLike(p.Likes, c.userID)
	} else {
		p.Liked = true
		p.LikeCount++
		p.Likes = append(withoutLike(p.Likes, c.userID), Like{UserID: c.userID, LikedAt: time.Now()})
	}
	c.store.mu.Unlock()

	res, err := c.gw.ToggleLike(ctx, postID)
	return c.settle(in, err, "failed to update like",
		func() {
			p.Liked = res.Liked
			p.LikeCount = res.LikeCount
		},
		func() {
			c.store.remove(postID)
		})
}

// AddComment appends a pending comment immediately and swaps in the
// server's comment once confirmed. On failure the pending comment
// disappears and commentCount reverts.
func (c *Controller) AddComment(ctx context.Context, postID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return validationErr("comment cannot be empty")
	}

	c.store.mu.Lock()
	p := c.store.locate(postID)
	if p == nil {
		c.store.mu.Unlock()
		return validationErr("post not found: " + postID)
	}

	placeholder := &Comment{
		ID:        "pending-" + uuid.NewString(),
		Author:    Author{ID: c.userID},
		Content:   content,
		CreatedAt: time.Now(),
		Pending:   true,
	}

	in, err := c.begin(mutationKey{postID, actionComment}, func() {
		removeComment(p, placeholder.ID)
		p.CommentCount--
	})
	if err != nil {
		c.store.mu.Unlock()
		return err
	}

	p.Comments = append(p.Comments, placeholder)
	p.CommentCount++
	c.store.mu.Unlock()

	confirmed, err := c.gw.AddComment(ctx, postID, content)
	return c.settle(in, err, "failed to add comment",
		func() {
			for i, cm := range p.Comments {
				if cm.ID == placeholder.ID {
					p.Comments[i] = confirmed
					return
				}
			}
			p.Comments = append(p.Comments, confirmed)
		},
		func() {
			c.store.remove(postID)
		})
}

// AddReply is AddComment scoped to one parent comment. It fails loudly
// when the parent is already gone locally, a race with a delete.
func (c *Controller) AddReply(ctx context.Context, postID, commentID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return validationErr("reply cannot be empty")
	}

	c.store.mu.Lock()
	p := c.store.locate(postID)
	if p == nil {
		c.store.mu.Unlock()
		return validationErr("post not found: " + postID)
	}
	parent := findComment(p, commentID)
	if parent == nil || parent.ParentID != "" {
		c.store.mu.Unlock()
		c.notify.Error("the comment you are replying to no longer exists")
		return &Error{Kind: KindNotFound, Msg: "parent comment not found: " + commentID}
	}

	placeholder := &Comment{
		ID:        "pending-" + uuid.NewString(),
		ParentID:  commentID,
		Author:    Author{ID: c.userID},
		Content:   content,
		CreatedAt: time.Now(),
		Pending:   true,
	}

	in, err := c.begin(mutationKey{commentID, actionReply}, func() {
		parent.Replies = removeFromList(parent.Replies, placeholder.ID)
		p.CommentCount--
	})
	if err != nil {
		c.store.mu.Unlock()
		return err
	}

	parent.Replies = append(parent.Replies, placeholder)
	p.CommentCount++
	c.store.mu.Unlock()

	confirmed, err := c.gw.AddReply(ctx, postID, commentID, content)
	return c.settle(in, err, "failed to add reply",
		func() {
			for i, r := range parent.Replies {
				if r.ID == placeholder.ID {
					parent.Replies[i] = confirmed
					return
				}
			}
			parent.Replies = append(parent.Replies, confirmed)
		},
		func() {
			parent.Replies = removeFromList(parent.Replies, placeholder.ID)
			p.CommentCount--
		})
}

// ToggleCommentLike mirrors ToggleLike for a single comment or reply.
func (c *Controller) ToggleCommentLike(ctx context.Context, postID, commentID string) error {
	c.store.mu.Lock()
	p := c.store.locate(postID)
	if p == nil {
		c.store.mu.Unlock()
		return validationErr("post not found: " + postID)
	}
	cm := findComment(p, commentID)
	if cm == nil {
		c.store.mu.Unlock()
		return validationErr("comment not found: " + commentID)
	}

	prevLiked, prevCount, prevLikes := cm.Liked, cm.LikeCount, cm.Likes
	in, err := c.begin(mutationKey{commentID, actionCommentLike}, func() {
		cm.Liked, cm.LikeCount, cm.Likes = prevLiked, prevCount, prevLikes
	})
	if err != nil {
		c.store.mu.Unlock()
		return err
	}

	if cm.Liked {
		cm.Liked = false
		cm.LikeCount--
		cm.Likes = withoutLike(cm.Likes, c.userID)
	} else {
		cm.Liked = true
		cm.LikeCount++
		cm.Likes = append(withoutLike(cm.Likes, c.userID), Like{UserID: c.userID, LikedAt: time.Now()})
	}
	c.store.mu.Unlock()

	res, err := c.gw.ToggleCommentLike(ctx, postID, commentID)
	return c.settle(in, err, "failed to update like",
		func() {
			cm.Liked = res.Liked
			cm.LikeCount = res.LikeCount
		},
		func() {
			removeComment(p, commentID)
		})
}

// toggleRelation implements the shared optimistic membership toggle
// behind save/follow/mute. Insertion into a set is idempotent, so a
// double save cannot double-insert.
func (c *Controller) toggleRelation(ctx context.Context, set map[string]struct{}, id, action, failMsg string, insert bool, call func(context.Context, string) error) error {
	c.store.mu.Lock()
	_, had := set[id]
	if insert == had {
		// Already in the requested state.
		c.store.mu.Unlock()
		return nil
	}
	in, err := c.begin(mutationKey{id, action}, func() {
		if had {
			set[id] = struct{}{}
		} else {
			delete(set, id)
		}
	})
	if err != nil {
		c.store.mu.Unlock()
		return err
	}
	if insert {
		set[id] = struct{}{}
	} else {
		delete(set, id)
	}
	c.store.mu.Unlock()

	err = call(ctx, id)
	return c.settle(in, err, failMsg, nil, func() {
		delete(set, id)
	})
}

func (c *Controller) Save(ctx context.Context, postID string) error {
	return c.toggleRelation(ctx, c.saved, postID, actionSave, "failed to save post", true, c.gw.SavePost)
}

func (c *Controller) Unsave(ctx context.Context, postID string) error {
	return c.toggleRelation(ctx, c.saved, postID, actionSave, "failed to unsave post", false, c.gw.UnsavePost)
}

func (c *Controller) Follow(ctx context.Context, userID string) error {
	return c.toggleRelation(ctx, c.followed, userID, actionFollow, "failed to follow user", true, c.gw.FollowUser)
}

func (c *Controller) Unfollow(ctx context.Context, userID string) error {
	return c.toggleRelation(ctx, c.followed, userID, actionFollow, "failed to unfollow user", false, c.gw.UnfollowUser)
}

func (c *Controller) Mute(ctx context.Context, postID string) error {
	return c.toggleRelation(ctx, c.muted, postID, actionMute, "failed to mute post", true, c.gw.MutePost)
}

func (c *Controller) Unmute(ctx context.Context, postID string) error {
	return c.toggleRelation(ctx, c.muted, postID, actionMute, "failed to unmute post", false, c.gw.UnmutePost)
}

// Saved reports whether the post is in the viewer's saved set.
func (c *Controller) Saved(postID string) bool { return c.inSet(c.saved, postID) }

// Following reports whether the viewer follows the user.
func (c *Controller) Following(userID string) bool { return c.inSet(c.followed, userID) }

// Muted reports whether the post is muted for the viewer.
func (c *Controller) Muted(postID string) bool { return c.inSet(c.muted, postID) }

func (c *Controller) inSet(set map[string]struct{}, id string) bool {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	_, ok := set[id]
	return ok
}

// SeedRelations installs the server-known relation sets, called once
// after mount with the session payload.
func (c *Controller) SeedRelations(saved, followed, muted []string) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	for _, id := range saved {
		c.saved[id] = struct{}{}
	}
	for _, id := range followed {
		c.followed[id] = struct{}{}
	}
	for _, id := range muted {
		c.muted[id] = struct{}{}
	}
}

// EditPost applies the patch to the local post immediately and
// reconciles the editable fields from the server's copy on success.
func (c *Controller) EditPost(ctx context.Context, postID string, patch PostPatch) error {
	c.store.mu.Lock()
	p := c.store.locate(postID)
	if p == nil {
		c.store.mu.Unlock()
		return validationErr("post not found: " + postID)
	}

	prev := *p
	in, err := c.begin(mutationKey{postID, actionEdit}, func() {
		p.Title, p.Body, p.Excerpt = prev.Title, prev.Body, prev.Excerpt
		p.Category, p.Tags, p.UpdatedAt = prev.Category, prev.Tags, prev.UpdatedAt
	})
	if err != nil {
		c.store.mu.Unlock()
		return err
	}

	applyPatch(p, patch)
	c.store.mu.Unlock()

	confirmed, err := c.gw.UpdatePost(ctx, postID, patch)
	return c.settle(in, err, "failed to update post",
		func() {
			p.Title, p.Body, p.Excerpt = confirmed.Title, confirmed.Body, confirmed.Excerpt
			p.Category, p.Tags, p.UpdatedAt = confirmed.Category, confirmed.Tags, confirmed.UpdatedAt
		},
		func() {
			c.store.remove(postID)
		})
}

// CreatePost publishes a new post. Creation is not optimistic, a card
// without a server id cannot be engaged with; on success the current
// query is refetched so the new post lands wherever the active sort
// puts it.
func (c *Controller) CreatePost(ctx context.Context, draft PostDraft) (*Post, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return nil, validationErr("title cannot be empty")
	}
	if strings.TrimSpace(draft.Body) == "" {
		return nil, validationErr("post body cannot be empty")
	}

	created, err := c.gw.CreatePost(ctx, draft)
	if err != nil {
		if KindOf(err) == KindAuthExpired {
			c.notify.SessionExpired()
		} else {
			c.notify.Error("failed to publish post")
		}
		return nil, err
	}

	c.notify.Info("post published")
	c.store.Refetch(ctx)
	return created, nil
}

// DeletePost is deliberately not optimistic: the card stays until the
// server confirms, because resurrecting a card after a failed delete
// is worse than a short wait.
func (c *Controller) DeletePost(ctx context.Context, postID string) error {
	c.store.mu.Lock()
	if c.store.locate(postID) == nil {
		c.store.mu.Unlock()
		return validationErr("post not found: " + postID)
	}
	in, err := c.begin(mutationKey{postID, actionDelete}, func() {})
	if err != nil {
		c.store.mu.Unlock()
		return err
	}
	c.store.mu.Unlock()

	err = c.gw.DeletePost(ctx, postID)
	return c.settle(in, err, "failed to delete post",
		func() {
			c.store.remove(postID)
			c.notify.Info("post deleted")
		},
		func() {
			// Already gone server-side; drop it locally too.
			c.store.remove(postID)
		})
}

// Report flags a post. Fire and forget: no local state changes either
// way, only the notification.
func (c *Controller) Report(ctx context.Context, postID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return validationErr("report reason cannot be empty")
	}
	if err := c.gw.ReportPost(ctx, postID, reason); err != nil {
		if KindOf(err) == KindAuthExpired {
			c.notify.SessionExpired()
		} else {
			c.notify.Error("failed to report post")
		}
		return err
	}
	c.notify.Info("report submitted")
	return nil
}

func withoutLike(likes []Like, userID string) []Like {
	out := likes[:0:0]
	for _, l := range likes {
		if l.UserID != userID {
			out = append(out, l)
		}
	}
	return out
}

// findComment walks a post's comments and their replies.
func findComment(p *Post, commentID string) *Comment {
	for _, cm := range p.Comments {
		if cm.ID == commentID {
			return cm
		}
		for _, r := range cm.Replies {
			if r.ID == commentID {
				return r
			}
		}
	}
	return nil
}

// removeComment deletes a comment or reply from the post's tree.
func removeComment(p *Post, commentID string) {
	for i, cm := range p.Comments {
		if cm.ID == commentID {
			p.Comments = append(p.Comments[:i], p.Comments[i+1:]...)
			return
		}
		cm.Replies = removeFromList(cm.Replies, commentID)
	}
}

func removeFromList(list []*Comment, id string) []*Comment {
	for i, c := range list {
		if c.ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func applyPatch(p *Post, patch PostPatch) {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Body != nil {
		p.Body = *patch.Body
	}
	if patch.Excerpt != nil {
		p.Excerpt = *patch.Excerpt
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Tags != nil {
		p.Tags = *patch.Tags
	}
	p.UpdatedAt = time.Now()
}
