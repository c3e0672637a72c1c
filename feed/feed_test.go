package feed

import (
	"context"
	"errors"
	"github.com/Viktor-Kode/bloghub/models"
	"github.com/Viktor-Kode/bloghub/service/postService"
	"github.com/Viktor-Kode/bloghub/store"
	"github.com/Viktor-Kode/bloghub/store/memory"
	"gotest.tools/assert"
	"io/ioutil"
	"log"
	"testing"
	"time"
)

var (
	logInfo  = log.New(ioutil.Discard, "", 0)
	logError = log.New(ioutil.Discard, "", 0)
)

func nextUpdate(t *testing.T, f *Feed) Update {
	t.Helper()
	select {
	case update, ok := <-f.Updates():
		if !ok {
			t.Fatalf("Feed closed unexpectedly")
		}
		return update
	case <-time.After(2 * time.Second):
		t.Fatalf("No feed update received")
	}
	return Update{}
}

func savePost(t *testing.T, s store.Store, title, author string) string {
	t.Helper()
	id, err := postService.Save(context.Background(), s,
		&postService.SaveRequest{Title: title, Content: "content", Author: author})
	assert.NilError(t, err)
	return id
}

func TestAuthorFeedShowsOnlyOwnPosts(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage()
	sync := NewSynchronizer(s, logInfo, logError)

	savePost(t, s, "A", "x@example.com")

	xFeed, err := sync.Subscribe(ctx, ByAuthor("x@example.com"))
	assert.NilError(t, err)
	defer xFeed.Close()
	yFeed, err := sync.Subscribe(ctx, ByAuthor("y@example.com"))
	assert.NilError(t, err)
	defer yFeed.Close()

	xUpdate := nextUpdate(t, xFeed)
	assert.NilError(t, xUpdate.Err)
	assert.Equal(t, len(xUpdate.Posts), 1)
	assert.Equal(t, xUpdate.Posts[0].Title, "A")

	yUpdate := nextUpdate(t, yFeed)
	assert.NilError(t, yUpdate.Err)
	assert.Equal(t, len(yUpdate.Posts), 0)
}

func TestAllPostsFeedIsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"old", "new", "middle"} {
		at := base.Add([]time.Duration{0, 2 * time.Hour, time.Hour}[i])
		s.SetClock(func() time.Time { return at })
		savePost(t, s, title, "x@example.com")
	}
	// document written by another client without a creation time
	_, err := s.Add(ctx, postService.Collection, store.Fields{"title": "untimed", "author": "z@example.com"})
	assert.NilError(t, err)

	posts, err := NewSynchronizer(s, logInfo, logError).Snapshot(ctx, AllPosts())
	assert.NilError(t, err)

	titles := make([]string, 0, len(posts))
	for _, post := range posts {
		titles = append(titles, post.Title)
	}
	assert.DeepEqual(t, titles, []string{"new", "middle", "old", "untimed"})
	for i := 1; i < len(posts)-1; i++ {
		assert.Assert(t, !posts[i].CreatedAt.After(posts[i-1].CreatedAt))
	}
}

func TestFeedRepublishesAfterChanges(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage()
	sync := NewSynchronizer(s, logInfo, logError)

	f, err := sync.Subscribe(ctx, AllPosts())
	assert.NilError(t, err)
	defer f.Close()
	assert.Equal(t, len(nextUpdate(t, f).Posts), 0)

	id := savePost(t, s, "A", "x@example.com")
	update := nextUpdate(t, f)
	assert.Equal(t, len(update.Posts), 1)
	assert.Equal(t, update.Posts[0].ID, id)

	assert.NilError(t, postService.Delete(ctx, s, id))
	update = nextUpdate(t, f)
	assert.Equal(t, len(update.Posts), 0)
}

func TestFeedAppliesMatchPredicate(t *testing.T) {
	s := memory.NewStorage()
	savePost(t, s, "keep", "x@example.com")
	savePost(t, s, "drop", "x@example.com")

	posts, err := NewSynchronizer(s, logInfo, logError).Snapshot(context.Background(), Spec{
		Match: func(post models.Post) bool { return post.Title == "keep" },
	})
	assert.NilError(t, err)
	assert.Equal(t, len(posts), 1)
	assert.Equal(t, posts[0].Title, "keep")
}

func TestDeriveRechecksAuthor(t *testing.T) {
	documents := []store.Document{
		{ID: "1", Fields: store.Fields{postService.FieldAuthor: "x@example.com"}},
		{ID: "2", Fields: store.Fields{postService.FieldAuthor: "y@example.com"}},
	}

	posts := Derive(documents, ByAuthor("x@example.com"))

	assert.Equal(t, len(posts), 1)
	assert.Equal(t, posts[0].ID, "1")
}

func TestCloseUnsubscribes(t *testing.T) {
	s := memory.NewStorage()
	f, err := NewSynchronizer(s, logInfo, logError).Subscribe(context.Background(), AllPosts())
	assert.NilError(t, err)
	nextUpdate(t, f)
	assert.Equal(t, s.Subscribers(), 1)

	f.Close()

	assert.Equal(t, s.Subscribers(), 0)
	_, ok := <-f.Updates()
	assert.Assert(t, !ok)
}

func TestContextCancelEndsFeed(t *testing.T) {
	s := memory.NewStorage()
	ctx, cancel := context.WithCancel(context.Background())
	f, err := NewSynchronizer(s, logInfo, logError).Subscribe(ctx, AllPosts())
	assert.NilError(t, err)
	defer f.Close()
	nextUpdate(t, f)

	cancel()

	select {
	case _, ok := <-f.Updates():
		assert.Assert(t, !ok)
	case <-time.After(2 * time.Second):
		t.Fatalf("Feed was not closed after context cancel")
	}
}

// deniedStore - store whose subscriptions fail the way a permission check would
type deniedStore struct {
	*memory.Storage
	hub store.Hub
}

var errDenied = errors.New("permission denied")

func (s *deniedStore) Subscribe(ctx context.Context, q store.Query) (*store.Subscription, error) {
	return s.hub.Subscribe(ctx, q.Collection, func(ctx context.Context) (*store.Snapshot, error) {
		return nil, errDenied
	})
}

func TestSubscriptionErrorEndsFeed(t *testing.T) {
	s := &deniedStore{Storage: memory.NewStorage()}
	f, err := NewSynchronizer(s, logInfo, logError).Subscribe(context.Background(), AllPosts())
	assert.NilError(t, err)
	defer f.Close()

	update := nextUpdate(t, f)
	assert.Assert(t, errors.Is(update.Err, errDenied))
	assert.Equal(t, len(update.Posts), 0)

	_, ok := <-f.Updates()
	assert.Assert(t, !ok)
}

func TestSnapshotReturnsSubscriptionError(t *testing.T) {
	s := &deniedStore{Storage: memory.NewStorage()}

	_, err := NewSynchronizer(s, logInfo, logError).Snapshot(context.Background(), AllPosts())

	assert.Assert(t, errors.Is(err, errDenied))
}
