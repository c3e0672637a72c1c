package postService

import (
	"context"
	"errors"
	"github.com/Viktor-Kode/bloghub/store"
	"github.com/Viktor-Kode/bloghub/store/memory"
	"gotest.tools/assert"
	"testing"
	"time"
)

func TestFromDocumentMergesIDAndFields(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	post := FromDocument(store.Document{ID: "p1", Fields: store.Fields{
		FieldTitle:     "A",
		FieldContent:   "B",
		FieldAuthor:    "x@example.com",
		FieldCreatedAt: created,
	}})

	assert.Equal(t, post.ID, "p1")
	assert.Equal(t, post.Title, "A")
	assert.Equal(t, post.Content, "B")
	assert.Equal(t, post.Author, "x@example.com")
	assert.Assert(t, post.CreatedAt.Equal(created))
	assert.Assert(t, post.UpdatedAt == nil)
}

func TestFromDocumentParsesTextTimestamps(t *testing.T) {
	post := FromDocument(store.Document{ID: "p1", Fields: store.Fields{
		FieldCreatedAt: "2025-03-01T09:00:00.000000000Z",
		FieldUpdatedAt: "2025-03-02T09:00:00.000000000Z",
	}})

	assert.Assert(t, post.CreatedAt.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)))
	assert.Assert(t, post.UpdatedAt != nil)
	assert.Assert(t, post.UpdatedAt.Equal(time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)))
}

func TestFromDocumentToleratesMalformedFields(t *testing.T) {
	post := FromDocument(store.Document{ID: "p1", Fields: store.Fields{
		FieldTitle:     42,
		FieldCreatedAt: "yesterday",
	}})

	assert.Equal(t, post.ID, "p1")
	assert.Equal(t, post.Title, "")
	assert.Assert(t, post.CreatedAt.IsZero())
}

func TestSaveUpdateKeepsAuthorAndCreationTime(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return created })

	id, err := Save(ctx, s, &SaveRequest{Title: "A", Content: "B", Author: "x@example.com"})
	assert.NilError(t, err)

	post, err := GetByID(ctx, s, id)
	assert.NilError(t, err)
	assert.Assert(t, post.CreatedAt.Equal(created))
	assert.Assert(t, post.UpdatedAt == nil)

	updated := created.Add(time.Minute)
	s.SetClock(func() time.Time { return updated })
	assert.NilError(t, Update(ctx, s, &UpdateRequest{ID: id, Title: "C", Content: "D"}))

	post, err = GetByID(ctx, s, id)
	assert.NilError(t, err)
	assert.Equal(t, post.Title, "C")
	assert.Equal(t, post.Content, "D")
	assert.Equal(t, post.Author, "x@example.com")
	assert.Assert(t, post.CreatedAt.Equal(created))
	assert.Assert(t, post.UpdatedAt.Equal(updated))
}

func TestGetPostsInRangeNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Hour)
		s.SetClock(func() time.Time { return at })
		_, err := Save(ctx, s, &SaveRequest{Title: title, Content: "c", Author: "x@example.com"})
		assert.NilError(t, err)
	}

	posts, err := GetPostsInRange(ctx, s, 0, 2)
	assert.NilError(t, err)
	assert.Equal(t, len(posts), 2)
	assert.Equal(t, posts[0].Title, "third")
	assert.Equal(t, posts[1].Title, "second")

	posts, err = GetPostsInRange(ctx, s, 1, 2)
	assert.NilError(t, err)
	assert.Equal(t, len(posts), 1)
	assert.Equal(t, posts[0].Title, "first")
}

func TestGetAllByAuthor(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage()
	_, err := Save(ctx, s, &SaveRequest{Title: "A", Content: "B", Author: "x@example.com"})
	assert.NilError(t, err)
	_, err = Save(ctx, s, &SaveRequest{Title: "C", Content: "D", Author: "y@example.com"})
	assert.NilError(t, err)

	posts, err := GetAllByAuthor(ctx, s, "x@example.com")
	assert.NilError(t, err)
	assert.Equal(t, len(posts), 1)
	assert.Equal(t, posts[0].Title, "A")
}

func TestGetByIDMissing(t *testing.T) {
	_, err := GetByID(context.Background(), memory.NewStorage(), "missing")
	assert.Assert(t, errors.Is(err, store.ErrNotFound))
}
