package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreFetchAppliesResult(t *testing.T) {
	gw := &fakeGateway{
		listPosts: func(q Query) ([]*Post, Page, error) {
			return []*Post{samplePost("1"), samplePost("2")}, Page{Current: q.Page, Total: 3, Count: 2, TotalPosts: 25}, nil
		},
	}
	s := NewStore(gw, nil, nil)

	require.NoError(t, s.Fetch(context.Background()))

	posts := s.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, "1", posts[0].ID)
	assert.Equal(t, 3, s.Page().Total)
	assert.NoError(t, s.Err())
}

func TestStoreFailedFetchKeepsPriorPosts(t *testing.T) {
	var fail bool
	gw := &fakeGateway{
		listPosts: func(q Query) ([]*Post, Page, error) {
			if fail {
				return nil, Page{}, transportErr(errors.New("connection refused"))
			}
			return []*Post{samplePost("1")}, Page{Current: 1, Total: 1, Count: 1, TotalPosts: 1}, nil
		},
	}
	notif := &recordNotifier{}
	s := NewStore(gw, nil, notif)

	require.NoError(t, s.Fetch(context.Background()))
	fail = true
	err := s.Fetch(context.Background())
	require.Error(t, err)

	// The previous page stays on screen next to the error state.
	require.Len(t, s.Posts(), 1)
	assert.Error(t, s.Err())
	assert.Equal(t, 1, notif.errorCount())

	fail = false
	require.NoError(t, s.Fetch(context.Background()))
	assert.NoError(t, s.Err())
}

func TestStoreAuthExpiredFetchNotifiesSession(t *testing.T) {
	gw := &fakeGateway{
		listPosts: func(q Query) ([]*Post, Page, error) {
			return nil, Page{}, &Error{Kind: KindAuthExpired, Status: 401}
		},
	}
	notif := &recordNotifier{}
	s := NewStore(gw, nil, notif)

	require.Error(t, s.Fetch(context.Background()))
	assert.Equal(t, 1, notif.expiredCount())
	assert.Equal(t, 0, notif.errorCount())
}

func TestStoreStaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	gw := &fakeGateway{}
	gw.listPosts = func(q Query) ([]*Post, Page, error) {
		gw.mu.Lock()
		calls++
		n := calls
		gw.mu.Unlock()
		if n == 1 {
			close(started)
			<-release
			return []*Post{samplePost("stale")}, Page{Current: 1, Total: 1}, nil
		}
		return []*Post{samplePost("fresh")}, Page{Current: 1, Total: 1}, nil
	}
	s := NewStore(gw, nil, nil)

	done := make(chan struct{})
	go func() {
		_ = s.Fetch(context.Background())
		close(done)
	}()
	<-started

	// A second fetch supersedes the first while it is still in flight.
	require.NoError(t, s.Fetch(context.Background()))
	require.Len(t, s.Posts(), 1)
	assert.Equal(t, "fresh", s.Posts()[0].ID)

	close(release)
	<-done

	// The late response must not clobber the newer page.
	require.Len(t, s.Posts(), 1)
	assert.Equal(t, "fresh", s.Posts()[0].ID)
}

func TestStoreSetFilterMergesAndResetsPage(t *testing.T) {
	queries := make(chan Query, 8)
	gw := &fakeGateway{
		listPosts: func(q Query) ([]*Post, Page, error) {
			queries <- q
			return nil, Page{Current: q.Page, Total: 1}, nil
		},
	}
	s := NewStore(gw, nil, nil)

	cat := "questions"
	s.SetFilter(context.Background(), QueryPatch{Category: &cat})

	select {
	case q := <-queries:
		assert.Equal(t, "questions", q.Category)
		assert.Equal(t, SortRecent, q.Sort)
		assert.Equal(t, 1, q.Page)
	case <-time.After(time.Second):
		t.Fatal("fetch never issued")
	}

	got := s.Query()
	assert.Equal(t, "questions", got.Category)
	assert.Equal(t, 1, got.Page)
}

func TestStoreGoToPageBounds(t *testing.T) {
	gw := &fakeGateway{
		listPosts: func(q Query) ([]*Post, Page, error) {
			return []*Post{samplePost("1")}, Page{Current: q.Page, Total: 3, Count: 1, TotalPosts: 3}, nil
		},
	}
	s := NewStore(gw, nil, nil)
	require.NoError(t, s.Fetch(context.Background()))

	err := s.GoToPage(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	err = s.GoToPage(context.Background(), 4)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	// Rejection leaves the active query untouched.
	assert.Equal(t, 1, s.Query().Page)

	require.NoError(t, s.GoToPage(context.Background(), 3))
	assert.Equal(t, 3, s.Query().Page)
}

func TestStoreGoToPageBeforeFirstFetchRejected(t *testing.T) {
	gw := &fakeGateway{}
	s := NewStore(gw, nil, nil)

	// No fetch yet, the page count is unknown.
	err := s.GoToPage(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, gw.callCount("ListPosts"))
	assert.Equal(t, 1, s.Query().Page)
}

func TestStoreScheduleCoalescesBursts(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var queries []Query
	gw := &fakeGateway{}
	gw.listPosts = func(q Query) ([]*Post, Page, error) {
		gw.mu.Lock()
		queries = append(queries, q)
		first := len(queries) == 1
		gw.mu.Unlock()
		if first {
			close(started)
			<-release
		}
		return nil, Page{Current: q.Page, Total: 1}, nil
	}
	s := NewStore(gw, nil, nil)

	terms := []string{"g", "go", "gol", "gola", "golan", "golang"}
	for i := range terms {
		term := terms[i]
		s.SetFilter(context.Background(), QueryPatch{Search: &term})
		if i == 0 {
			<-started
		}
	}
	close(release)

	// Intermediate terms were parked and overwritten; the worker issues
	// the first query plus at most the last one.
	assert.Eventually(t, func() bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return len(queries) >= 2 && queries[len(queries)-1].Search == "golang"
	}, time.Second, 5*time.Millisecond)

	gw.mu.Lock()
	n := len(queries)
	gw.mu.Unlock()
	assert.LessOrEqual(t, n, 3)
	assert.Equal(t, "golang", s.Query().Search)
}
