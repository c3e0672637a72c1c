package mongo

import (
	"context"
	"errors"
	"github.com/Viktor-Kode/bloghub/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gotest.tools/assert"
	"log"
	"os"
	"testing"
	"time"
)

func TestDecodeDocumentConvertsDates(t *testing.T) {
	created := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	raw := bson.M{"_id": "abc", "title": "A", "createdAt": primitive.NewDateTimeFromTime(created)}

	document := decodeDocument(raw)

	assert.Equal(t, document.ID, "abc")
	assert.Equal(t, document.Fields["title"], "A")
	assert.Equal(t, document.Fields["createdAt"], created)
	_, hasID := document.Fields["_id"]
	assert.Assert(t, !hasID)
}

func TestFindOptions(t *testing.T) {
	opts := findOptions(store.Query{OrderBy: "createdAt", Descending: true, Offset: 5, Limit: 10})

	assert.DeepEqual(t, opts.Sort, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	assert.Equal(t, *opts.Skip, int64(5))
	assert.Equal(t, *opts.Limit, int64(10))
}

func TestFilterDocument(t *testing.T) {
	filter := filterDocument(store.Query{}.Where("author", "x@example.com"))
	assert.DeepEqual(t, filter, bson.M{"author": "x@example.com"})
}

// runs against a replica set when BLOGHUB_TEST_MONGO holds a connection uri
func TestStorageIntegration(t *testing.T) {
	uri := os.Getenv("BLOGHUB_TEST_MONGO")
	if uri == "" {
		t.Skip("BLOGHUB_TEST_MONGO is not set")
	}
	ctx := context.Background()
	s, err := New(ctx, uri, "bloghub_test",
		log.New(os.Stdout, "[store.mongo] INFO: ", log.Ltime),
		log.New(os.Stderr, "[store.mongo] ERROR: ", log.Ltime))
	assert.NilError(t, err)
	defer func() {
		_ = s.Close()
	}()

	collection := "posts_" + uuid.New().String()
	sub, err := s.Subscribe(ctx, store.Query{Collection: collection})
	assert.NilError(t, err)
	defer sub.Unsubscribe()

	next := func() *store.Snapshot {
		select {
		case event := <-sub.Events():
			assert.NilError(t, event.Err)
			return event.Snapshot
		case <-time.After(10 * time.Second):
			t.Fatalf("No snapshot received")
		}
		return nil
	}
	assert.Equal(t, len(next().Documents), 0)

	id, err := s.Add(ctx, collection, store.Fields{"title": "A", "createdAt": store.ServerTimestamp})
	assert.NilError(t, err)
	snapshot := next()
	assert.Equal(t, len(snapshot.Documents), 1)
	_, isTime := snapshot.Documents[0].Fields["createdAt"].(time.Time)
	assert.Assert(t, isTime)

	assert.NilError(t, s.Delete(ctx, collection, id))
	assert.Equal(t, len(next().Documents), 0)
	assert.Assert(t, errors.Is(s.Delete(ctx, collection, id), store.ErrNotFound))
}
