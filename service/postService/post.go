package postService

import (
	"context"
	"github.com/Viktor-Kode/bloghub/models"
	"github.com/Viktor-Kode/bloghub/store"
	"time"
)

// Collection - document store collection holding posts
const Collection = "posts"

// post document fields
const (
	FieldTitle     = "title"
	FieldContent   = "content"
	FieldAuthor    = "author"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// FromDocument - maps a document to a post, merging the document id with its field data
// Documents are schemaless: missing or ill-typed fields are left zero
func FromDocument(document store.Document) models.Post {
	post := models.Post{
		ID:        document.ID,
		Title:     stringField(document.Fields, FieldTitle),
		Content:   stringField(document.Fields, FieldContent),
		Author:    stringField(document.Fields, FieldAuthor),
		CreatedAt: timeField(document.Fields, FieldCreatedAt),
	}
	if updatedAt := timeField(document.Fields, FieldUpdatedAt); !updatedAt.IsZero() {
		post.UpdatedAt = &updatedAt
	}
	return post
}

// FromDocuments - maps every document of a snapshot or query result
func FromDocuments(documents []store.Document) []models.Post {
	posts := make([]models.Post, 0, len(documents))
	for _, document := range documents {
		posts = append(posts, FromDocument(document))
	}
	return posts
}

func stringField(fields store.Fields, key string) string {
	value, _ := fields[key].(string)
	return value
}

// timeField - stores return time values either as time.Time or as RFC 3339 text
func timeField(fields store.Fields, key string) time.Time {
	switch value := fields[key].(type) {
	case time.Time:
		return value
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return time.Time{}
		}
		return parsed.UTC()
	}
	return time.Time{}
}

// AllPostsQuery - every post, newest first
func AllPostsQuery() store.Query {
	return store.Query{Collection: Collection, OrderBy: FieldCreatedAt, Descending: true}
}

// AuthorPostsQuery - posts of one author, newest first. The author predicate is evaluated by the store
func AuthorPostsQuery(author string) store.Query {
	return AllPostsQuery().Where(FieldAuthor, author)
}

// Save - saves a new post
// returns id assigned by the store
func Save(ctx context.Context, s store.Store, request *SaveRequest) (string, error) {
	return s.Add(ctx, Collection, store.Fields{
		FieldTitle:     request.Title,
		FieldContent:   request.Content,
		FieldAuthor:    request.Author,
		FieldCreatedAt: store.ServerTimestamp,
	})
}

// Update - replaces title and content of the post. Author and creation time are never touched
func Update(ctx context.Context, s store.Store, request *UpdateRequest) error {
	return s.Update(ctx, Collection, request.ID, store.Fields{
		FieldTitle:     request.Title,
		FieldContent:   request.Content,
		FieldUpdatedAt: store.ServerTimestamp,
	})
}

// Delete - deletes post
func Delete(ctx context.Context, s store.Store, postID string) error {
	return s.Delete(ctx, Collection, postID)
}

// GetByID - retrieves post with the given ID. Returns store.ErrNotFound if it does not exist
func GetByID(ctx context.Context, s store.Store, postID string) (models.Post, error) {
	document, err := s.Get(ctx, Collection, postID)
	if err != nil {
		return models.Post{}, err
	}
	return FromDocument(*document), nil
}

// GetPostsInRange - retrieves one page of all posts, newest first
// Range is described by page and entities per page args
func GetPostsInRange(ctx context.Context, s store.Store, page, postsPerPage int) ([]models.Post, error) {
	q := AllPostsQuery()
	q.Offset = page * postsPerPage
	q.Limit = postsPerPage

	documents, err := s.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return FromDocuments(documents), nil
}

// GetAllByAuthor - retrieves all posts of the author, newest first
func GetAllByAuthor(ctx context.Context, s store.Store, author string) ([]models.Post, error) {
	documents, err := s.Query(ctx, AuthorPostsQuery(author))
	if err != nil {
		return nil, err
	}
	return FromDocuments(documents), nil
}
