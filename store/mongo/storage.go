// Package mongo - document store backed by a MongoDB database
// Each store collection is a mongo collection; a database wide change stream drives subscriptions.
// Change streams need a replica set (a single node replica set is enough).
package mongo

import (
	"context"
	"errors"
	"fmt"
	"github.com/Viktor-Kode/bloghub/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"log"
	"time"
)

const watchRetryInterval = 5 * time.Second

// Storage - mongo document store
type Storage struct {
	client   *mongo.Client
	db       *mongo.Database
	hub      store.Hub
	logInfo  *log.Logger
	logError *log.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// New - connects to the database and starts watching it for changes
func New(ctx context.Context, uri, database string, logInfo, logError *log.Logger) (*Storage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to mongo: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("invalid data source: %w", err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s := &Storage{
		client:   client,
		db:       client.Database(database),
		logInfo:  logInfo,
		logError: logError,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.watch(watchCtx)

	logInfo.Printf("Mongo document store opened. Database: %s", database)
	return s, nil
}

type changeEvent struct {
	Namespace struct {
		Collection string `bson:"coll"`
	} `bson:"ns"`
}

func (s *Storage) watch(ctx context.Context) {
	defer close(s.done)
	for {
		err := s.watchOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logError.Printf("Change stream ended: %v. Retrying in %s", err, watchRetryInterval)
		select {
		case <-time.After(watchRetryInterval):
		case <-ctx.Done():
			return
		}
		// changes made while the stream was down are not replayed
		s.hub.NotifyAll()
	}
}

func (s *Storage) watchOnce(ctx context.Context) error {
	stream, err := s.db.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return err
	}
	defer func() {
		_ = stream.Close(context.Background())
	}()

	for stream.Next(ctx) {
		var event changeEvent
		if err = stream.Decode(&event); err != nil {
			s.logError.Printf("Error decoding change event: %s", err)
			s.hub.NotifyAll()
			continue
		}
		s.hub.Notify(event.Namespace.Collection)
	}
	return stream.Err()
}

func decodeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.DateTime:
		return v.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0).UTC()
	}
	return value
}

func decodeDocument(raw bson.M) store.Document {
	document := store.Document{Fields: make(store.Fields, len(raw))}
	for key, value := range raw {
		if key == "_id" {
			document.ID = fmt.Sprint(value)
			continue
		}
		document.Fields[key] = decodeValue(value)
	}
	return document
}

func toBSON(fields store.Fields) bson.M {
	m := make(bson.M, len(fields))
	for key, value := range store.ResolveTimestamps(fields, time.Now().UTC()) {
		m[key] = value
	}
	return m
}

// Add - inserts a document under a generated id
func (s *Storage) Add(ctx context.Context, collection string, fields store.Fields) (string, error) {
	id := uuid.New().String()
	if err := s.Create(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

// Create - inserts a document under the given id
func (s *Storage) Create(ctx context.Context, collection, id string, fields store.Fields) error {
	document := toBSON(fields)
	document["_id"] = id
	if _, err := s.db.Collection(collection).InsertOne(ctx, document); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Get - returns document by id
func (s *Storage) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	var raw bson.M
	if err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	document := decodeDocument(raw)
	return &document, nil
}

// Update - merges fields into the document
func (s *Storage) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	result, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": toBSON(fields)})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete - removes the document
func (s *Storage) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func findOptions(q store.Query) *options.FindOptions {
	opts := options.Find()
	sort := bson.D{}
	if q.OrderBy != "" {
		direction := 1
		if q.Descending {
			direction = -1
		}
		sort = append(sort, bson.E{Key: q.OrderBy, Value: direction})
	}
	opts.SetSort(append(sort, bson.E{Key: "_id", Value: 1}))
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}

func filterDocument(q store.Query) bson.M {
	filter := bson.M{}
	for _, f := range q.Filters {
		filter[f.Field] = f.Value
	}
	return filter
}

// Query - one shot read
func (s *Storage) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	cursor, err := s.db.Collection(q.Collection).Find(ctx, filterDocument(q), findOptions(q))
	if err != nil {
		return nil, err
	}
	var raw []bson.M
	if err = cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	documents := make([]store.Document, 0, len(raw))
	for _, r := range raw {
		documents = append(documents, decodeDocument(r))
	}
	return documents, nil
}

// Subscribe - live query driven by the change stream
func (s *Storage) Subscribe(ctx context.Context, q store.Query) (*store.Subscription, error) {
	return s.hub.Subscribe(ctx, q.Collection, func(ctx context.Context) (*store.Snapshot, error) {
		documents, err := s.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		return &store.Snapshot{Documents: documents, ReadAt: time.Now().UTC()}, nil
	})
}

// Ping - checks database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close - ends subscriptions, stops watching and disconnects
func (s *Storage) Close() error {
	s.hub.Close()
	s.cancel()
	<-s.done
	return s.client.Disconnect(context.Background())
}
