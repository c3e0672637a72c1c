// Package feed keeps an ordered, live list of posts in sync with the document store.
//
// Every change of the posts collection produces a full snapshot. The synchronizer maps each
// document to a post, applies the feed predicate, orders the result by creation time, newest
// first, and publishes the complete list. Nothing is diffed and nothing is cached between
// snapshots.
package feed

import (
	"context"
	"errors"
	"github.com/Viktor-Kode/bloghub/models"
	"github.com/Viktor-Kode/bloghub/service/postService"
	"github.com/Viktor-Kode/bloghub/store"
	"log"
	"sort"
)

// ErrClosed - feed ended before delivering a snapshot
var ErrClosed = errors.New("feed closed")

// Spec - describes which posts a feed shows
// Author restricts the feed to one author and is evaluated by the store.
// Match is an optional extra predicate evaluated on every snapshot.
type Spec struct {
	Author string
	Match  func(post models.Post) bool
}

// AllPosts - the public feed
func AllPosts() Spec {
	return Spec{}
}

// ByAuthor - feed of one author's posts
func ByAuthor(email string) Spec {
	return Spec{Author: email}
}

func (spec Spec) query() store.Query {
	if spec.Author != "" {
		return postService.AuthorPostsQuery(spec.Author)
	}
	return postService.AllPostsQuery()
}

func (spec Spec) matches(post models.Post) bool {
	if spec.Author != "" && post.Author != spec.Author {
		return false
	}
	return spec.Match == nil || spec.Match(post)
}

// Update - one published state of a feed: the full ordered list or the error that ended the feed
type Update struct {
	Posts []models.Post
	Err   error
}

// Derive - maps snapshot documents to the ordered posts of the feed
// Posts without creation time sort last; ties keep snapshot order
func Derive(documents []store.Document, spec Spec) []models.Post {
	posts := make([]models.Post, 0, len(documents))
	for _, document := range documents {
		post := postService.FromDocument(document)
		if spec.matches(post) {
			posts = append(posts, post)
		}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}

// Synchronizer - creates feeds over a document store
type Synchronizer struct {
	store    store.Store
	logInfo  *log.Logger
	logError *log.Logger
}

// NewSynchronizer - creates a synchronizer
func NewSynchronizer(s store.Store, logInfo, logError *log.Logger) *Synchronizer {
	return &Synchronizer{
		store:    s,
		logInfo:  logInfo,
		logError: logError,
	}
}

// Feed - live feed. Must be closed by its consumer
type Feed struct {
	updates chan Update
	cancel  context.CancelFunc
	sub     *store.Subscription
	done    chan struct{}
}

// Subscribe - starts a live feed. The first update carries the current state
// The feed ends after an error update, on ctx cancel, or on Close
func (s *Synchronizer) Subscribe(ctx context.Context, spec Spec) (*Feed, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub, err := s.store.Subscribe(ctx, spec.query())
	if err != nil {
		cancel()
		return nil, err
	}

	f := &Feed{
		updates: make(chan Update),
		cancel:  cancel,
		sub:     sub,
		done:    make(chan struct{}),
	}
	go s.run(ctx, f, spec)
	return f, nil
}

func (s *Synchronizer) run(ctx context.Context, f *Feed, spec Spec) {
	defer close(f.done)
	defer close(f.updates)

	for event := range f.sub.Events() {
		var update Update
		if event.Err != nil {
			s.logError.Printf("Feed subscription failed. Author: %q. Error: %s", spec.Author, event.Err)
			update.Err = event.Err
		} else {
			update.Posts = Derive(event.Snapshot.Documents, spec)
		}

		select {
		case f.updates <- update:
		case <-ctx.Done():
			return
		}
		if update.Err != nil {
			return
		}
	}
}

// Updates - published feed states. Closed when the feed ends
func (f *Feed) Updates() <-chan Update {
	return f.updates
}

// Close - unsubscribes and waits until no more updates can be published
func (f *Feed) Close() {
	f.cancel()
	f.sub.Unsubscribe()
	<-f.done
}

// Snapshot - current state of a feed without keeping the subscription open
func (s *Synchronizer) Snapshot(ctx context.Context, spec Spec) ([]models.Post, error) {
	f, err := s.Subscribe(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	select {
	case update, ok := <-f.Updates():
		if !ok {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrClosed
		}
		return update.Posts, update.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
