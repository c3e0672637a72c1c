package editor

import (
	"context"
	"errors"
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

// countingStore - counts mutations and optionally fails them
type countingStore struct {
	*memory.Storage
	calls int
	fail  error
	// before runs ahead of every mutation
	before func()
}

var errUnavailable = errors.New("unavailable")

func (s *countingStore) mutation() error {
	s.calls++
	if s.before != nil {
		s.before()
	}
	return s.fail
}

func (s *countingStore) Add(ctx context.Context, collection string, fields store.Fields) (string, error) {
	if err := s.mutation(); err != nil {
		return "", err
	}
	return s.Storage.Add(ctx, collection, fields)
}

func (s *countingStore) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	if err := s.mutation(); err != nil {
		return err
	}
	return s.Storage.Update(ctx, collection, id, fields)
}

func (s *countingStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.mutation(); err != nil {
		return err
	}
	return s.Storage.Delete(ctx, collection, id)
}

func newCountingStore() *countingStore {
	return &countingStore{Storage: memory.NewStorage()}
}

// seedPost - writes around the counter
func seedPost(t *testing.T, s *countingStore, title, content string) string {
	t.Helper()
	id, err := postService.Save(context.Background(), s.Storage,
		&postService.SaveRequest{Title: title, Content: content, Author: "x@example.com"})
	assert.NilError(t, err)
	return id
}

func TestPublishCreatesPostAndClearsForm(t *testing.T) {
	s := newCountingStore()
	e := New(s, logInfo, logError)
	e.SetForm("  Hello ", " World  ")

	id, err := e.Publish(context.Background(), "  Hello ", " World  ", "x@example.com")
	assert.NilError(t, err)

	post, err := postService.GetByID(context.Background(), s, id)
	assert.NilError(t, err)
	assert.Equal(t, post.Title, "Hello")
	assert.Equal(t, post.Content, "World")
	assert.Equal(t, post.Author, "x@example.com")
	assert.Assert(t, !post.CreatedAt.IsZero())
	assert.Equal(t, e.Form(), Draft{})
}

func TestPublishWithEmptyFieldNeverCreates(t *testing.T) {
	testCases := []struct {
		name    string
		title   string
		content string
	}{
		{"empty title", "", "content"},
		{"blank title", "   ", "content"},
		{"empty content", "title", ""},
		{"blank content", "title", "\t\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newCountingStore()
			e := New(s, logInfo, logError)
			e.SetForm(tc.title, tc.content)

			_, err := e.Publish(context.Background(), tc.title, tc.content, "x@example.com")

			var validationErr *ValidationError
			assert.Assert(t, errors.As(err, &validationErr))
			assert.Equal(t, UserMessage(err), "Please fill in both fields.")
			assert.Equal(t, s.calls, 0)
			assert.Equal(t, e.Form().Title, tc.title)
		})
	}
}

func TestPublishFailureKeepsForm(t *testing.T) {
	s := newCountingStore()
	s.fail = errUnavailable
	e := New(s, logInfo, logError)
	e.SetForm("title", "content")

	_, err := e.Publish(context.Background(), "title", "content", "x@example.com")

	assert.Assert(t, errors.Is(err, errUnavailable))
	assert.Equal(t, UserMessage(err), "Something went wrong. Try again.")
	assert.Equal(t, e.Form(), Draft{Title: "title", Content: "content"})
}

func TestUpdateWithEmptyTitleIssuesNoCall(t *testing.T) {
	s := newCountingStore()
	id := seedPost(t, s, "title", "content")
	e := New(s, logInfo, logError)

	err := e.Update(context.Background(), id, "", "new content")

	assert.Equal(t, UserMessage(err), "Please fill in both fields.")
	assert.Equal(t, s.calls, 0)
	post, err := postService.GetByID(context.Background(), s, id)
	assert.NilError(t, err)
	assert.Equal(t, post.Content, "content")
}

func TestSaveEditUpdatesAndClearsSelection(t *testing.T) {
	s := newCountingStore()
	id := seedPost(t, s, "title", "content")
	post, err := postService.GetByID(context.Background(), s, id)
	assert.NilError(t, err)
	e := New(s, logInfo, logError)

	e.BeginEdit(post)
	assert.NilError(t, e.SetDraft("new title", "new content"))
	assert.NilError(t, e.SaveEdit(context.Background()))

	_, editing := e.Editing()
	assert.Assert(t, !editing)
	updated, err := postService.GetByID(context.Background(), s, id)
	assert.NilError(t, err)
	assert.Equal(t, updated.Title, "new title")
	assert.Equal(t, updated.Content, "new content")
	assert.Equal(t, updated.Author, post.Author)
	assert.Equal(t, updated.CreatedAt, post.CreatedAt)
	assert.Assert(t, updated.UpdatedAt != nil)
}

func TestSaveEditFailureKeepsSelection(t *testing.T) {
	s := newCountingStore()
	id := seedPost(t, s, "title", "content")
	post, err := postService.GetByID(context.Background(), s, id)
	assert.NilError(t, err)
	s.fail = errUnavailable
	e := New(s, logInfo, logError)

	e.BeginEdit(post)
	assert.NilError(t, e.SetDraft("new title", "new content"))
	err = e.SaveEdit(context.Background())

	assert.Equal(t, UserMessage(err), "Could not update post. Try again.")
	draft, editing := e.Editing()
	assert.Assert(t, editing)
	assert.Equal(t, draft.Title, "new title")
}

func TestCancelLeavesDocumentUnchanged(t *testing.T) {
	s := newCountingStore()
	id := seedPost(t, s, "title", "content")
	post, err := postService.GetByID(context.Background(), s, id)
	assert.NilError(t, err)
	e := New(s, logInfo, logError)

	e.BeginEdit(post)
	assert.NilError(t, e.SetDraft("changed", "changed"))
	e.Cancel()

	_, editing := e.Editing()
	assert.Assert(t, !editing)
	assert.Equal(t, s.calls, 0)
	unchanged, err := postService.GetByID(context.Background(), s, id)
	assert.NilError(t, err)
	assert.Equal(t, unchanged.Title, "title")
	assert.Assert(t, unchanged.UpdatedAt == nil)
}

func TestBeginEditReplacesSelection(t *testing.T) {
	s := newCountingStore()
	first := seedPost(t, s, "first", "content")
	second := seedPost(t, s, "second", "content")
	e := New(s, logInfo, logError)

	firstPost, err := postService.GetByID(context.Background(), s, first)
	assert.NilError(t, err)
	secondPost, err := postService.GetByID(context.Background(), s, second)
	assert.NilError(t, err)

	e.BeginEdit(firstPost)
	assert.NilError(t, e.SetDraft("unsaved", "unsaved"))
	e.BeginEdit(secondPost)

	draft, editing := e.Editing()
	assert.Assert(t, editing)
	assert.Equal(t, draft, Draft{PostID: second, Title: "second", Content: "content"})
}

func TestSetDraftWithoutSelection(t *testing.T) {
	e := New(newCountingStore(), logInfo, logError)
	assert.Equal(t, e.SetDraft("a", "b"), ErrNotEditing)
	assert.Equal(t, e.SaveEdit(context.Background()), ErrNotEditing)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	s := newCountingStore()
	id := seedPost(t, s, "title", "content")
	e := New(s, logInfo, logError)

	err := e.Delete(context.Background(), id, func() bool { return false })
	assert.Equal(t, err, ErrNotConfirmed)
	assert.Equal(t, e.Delete(context.Background(), id, nil), ErrNotConfirmed)
	assert.Equal(t, s.calls, 0)

	assert.NilError(t, e.Delete(context.Background(), id, Confirmed))
	_, err = postService.GetByID(context.Background(), s, id)
	assert.Equal(t, err, store.ErrNotFound)
}

func TestDeleteClearsSelectionOfDeletedPost(t *testing.T) {
	s := newCountingStore()
	id := seedPost(t, s, "title", "content")
	post, err := postService.GetByID(context.Background(), s, id)
	assert.NilError(t, err)
	e := New(s, logInfo, logError)
	e.BeginEdit(post)

	assert.NilError(t, e.Delete(context.Background(), id, Confirmed))

	_, editing := e.Editing()
	assert.Assert(t, !editing)
}

func TestDeleteFailure(t *testing.T) {
	s := newCountingStore()
	e := New(s, logInfo, logError)

	err := e.Delete(context.Background(), "missing", Confirmed)

	assert.Assert(t, errors.Is(err, store.ErrNotFound))
	assert.Equal(t, UserMessage(err), "Could not delete post. Try again.")
}

func TestResultAfterCancelIsDropped(t *testing.T) {
	s := newCountingStore()
	id := seedPost(t, s, "title", "content")
	post, err := postService.GetByID(context.Background(), s, id)
	assert.NilError(t, err)
	e := New(s, logInfo, logError)
	e.BeginEdit(post)
	assert.NilError(t, e.SetDraft("new title", "new content"))

	ctx, cancel := context.WithCancel(context.Background())
	// view goes away while the update is in flight
	s.before = cancel
	err = e.SaveEdit(ctx)

	assert.Equal(t, err, context.Canceled)
	_, editing := e.Editing()
	assert.Assert(t, editing)
}

func TestRegistryKeepsEditorPerSession(t *testing.T) {
	r := NewRegistry(newCountingStore(), 0, logInfo, logError)

	x := r.For("x@example.com")
	assert.Assert(t, x == r.For("x@example.com"))
	assert.Assert(t, x != r.For("y@example.com"))

	r.Forget("x@example.com")
	assert.Assert(t, x != r.For("x@example.com"))
}

func TestRegistryEvictsIdleEditors(t *testing.T) {
	r := NewRegistry(newCountingStore(), time.Hour, logInfo, logError)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	expired := r.For("expired@example.com")
	now = now.Add(30 * time.Minute)
	active := r.For("active@example.com")
	assert.Equal(t, r.Len(), 2)

	now = now.Add(45 * time.Minute)
	assert.Assert(t, active == r.For("active@example.com"))
	assert.Equal(t, r.Len(), 1)
	assert.Assert(t, expired != r.For("expired@example.com"))
}
