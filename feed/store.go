package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Store owns the ordered page of posts currently displayed and the
// active query. One Store exists per mounted view; it is built on mount
// and dropped on unmount, nothing survives a reload.
//
// All displayed state lives behind one mutex. Mutations run entirely
// inside the lock and are O(1) against the in-memory page; network
// round-trips always happen outside it, so a reader never observes a
// half-applied change and the UI goroutine never blocks on the network.
type Store struct {
	mu sync.Mutex

	gw     Gateway
	log    *zap.SugaredLogger
	notify Notifier

	posts []*Post
	query Query
	page  Page

	// fetchSeq increases for every scheduled fetch; a response whose
	// seq is stale belongs to an outdated query and is discarded.
	fetchSeq uint64
	// fetching gates the single in-flight request; while set, newer
	// requests only record nextQuery and the worker re-issues when
	// the current round-trip settles (latest request wins).
	fetching  bool
	nextQuery *Query

	lastErr *Error
}

// NewStore builds a store around gw. logger and notifier may be nil.
func NewStore(gw Gateway, logger *zap.SugaredLogger, notifier Notifier) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Store{
		gw:     gw,
		log:    logger,
		notify: notifier,
		query:  DefaultQuery(),
	}
}

// Posts returns the displayed page in server order. The slice is a
// copy; entities are shared and must only be read by callers.
func (s *Store) Posts() []*Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Post, len(s.posts))
	copy(out, s.posts)
	return out
}

// Query returns the active view state.
func (s *Store) Query() Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Page returns the pagination cursor from the last successful fetch.
func (s *Store) Page() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Err returns the retryable error state from the last failed fetch, or
// nil after a successful one. A failed refetch never blanks the page;
// the previous posts stay visible next to this error.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return nil
	}
	return s.lastErr
}

// SetFilter merges patch into the active query, resets to page 1 and
// schedules a fetch. It always succeeds synchronously; a fetch failure
// is reported through Err and the notifier.
func (s *Store) SetFilter(ctx context.Context, patch QueryPatch) {
	s.mu.Lock()
	s.query = s.query.merge(patch)
	q := s.query
	s.mu.Unlock()
	s.schedule(ctx, q)
}

// Refetch re-issues the current query, the retry entry point after a
// failed fetch.
func (s *Store) Refetch(ctx context.Context) {
	s.mu.Lock()
	q := s.query
	s.mu.Unlock()
	s.schedule(ctx, q)
}

// Fetch loads the current query synchronously and reports the result.
// Used on mount, where the caller wants the first page before render.
func (s *Store) Fetch(ctx context.Context) error {
	s.mu.Lock()
	q := s.query
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()
	return s.fetch(ctx, q, seq)
}

// GoToPage navigates to page n of the current query. Out-of-range
// pages are rejected without touching any state; until a fetch has
// established the page count there is nothing to navigate to.
func (s *Store) GoToPage(ctx context.Context, n int) error {
	s.mu.Lock()
	if n < 1 || n > s.page.Total {
		s.mu.Unlock()
		return validationErr(fmt.Sprintf("page %d out of range [1, %d]", n, s.page.Total))
	}
	s.query.Page = n
	q := s.query
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()
	return s.fetch(ctx, q, seq)
}

// schedule runs q in the background, coalescing with any in-flight
// fetch: if one is pending, q is parked as the next query and picked up
// when the current round-trip settles.
func (s *Store) schedule(ctx context.Context, q Query) {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	if s.fetching {
		cp := q
		s.nextQuery = &cp
		s.mu.Unlock()
		return
	}
	s.fetching = true
	s.mu.Unlock()

	go func() {
		cur, curSeq := q, seq
		for {
			_ = s.fetch(ctx, cur, curSeq)

			s.mu.Lock()
			if s.nextQuery == nil {
				s.fetching = false
				s.mu.Unlock()
				return
			}
			cur = *s.nextQuery
			s.nextQuery = nil
			curSeq = s.fetchSeq
			s.mu.Unlock()
		}
	}()
}

// fetch performs one round-trip for q and applies the result if it is
// still current. A response arriving after the query moved on is
// dropped on the floor; the newer fetch owns the screen.
func (s *Store) fetch(ctx context.Context, q Query, seq uint64) error {
	posts, page, err := s.gw.ListPosts(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.fetchSeq {
		s.log.Debugw("discarding stale feed response", "page", q.Page, "search", q.Search)
		return nil
	}

	if err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			fe = transportErr(err)
		}
		s.lastErr = fe
		s.log.Warnw("feed fetch failed", "err", err, "page", q.Page)
		if fe.Kind == KindAuthExpired {
			s.notify.SessionExpired()
		} else {
			s.notify.Error("failed to load posts")
		}
		return fe
	}

	s.posts = posts
	s.page = page
	s.lastErr = nil
	return nil
}

// locate returns the displayed post with the given id. Callers must
// hold s.mu.
func (s *Store) locate(postID string) *Post {
	for _, p := range s.posts {
		if p.ID == postID {
			return p
		}
	}
	return nil
}

// remove drops a post from the displayed sequence. Callers must hold
// s.mu.
func (s *Store) remove(postID string) {
	for i, p := range s.posts {
		if p.ID == postID {
			s.posts = append(s.posts[:i], s.posts[i+1:]...)
			return
		}
	}
}
