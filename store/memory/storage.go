// Package memory - in-process document store. Used by tests and by the "memory" db driver
package memory

import (
	"context"
	"github.com/Viktor-Kode/bloghub/store"
	"github.com/google/uuid"
	"sort"
	"sync"
	"time"
)

type entry struct {
	seq    int64
	fields store.Fields
}

// Storage - document store backed by maps
type Storage struct {
	mu          sync.RWMutex
	seq         int64
	collections map[string]map[string]entry
	hub         store.Hub
	now         func() time.Time
}

// NewStorage - creates an empty storage
func NewStorage() *Storage {
	return &Storage{
		collections: map[string]map[string]entry{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock - replaces the clock used for server timestamps
func (s *Storage) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Storage) clock() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

func copyFields(fields store.Fields) store.Fields {
	copied := make(store.Fields, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func (s *Storage) insert(collection, id string, fields store.Fields) {
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]entry)
		s.collections[collection] = docs
	}
	s.seq++
	docs[id] = entry{seq: s.seq, fields: store.ResolveTimestamps(fields, s.now())}
}

// Add - inserts a document under a generated id
func (s *Storage) Add(ctx context.Context, collection string, fields store.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.New().String()

	s.mu.Lock()
	s.insert(collection, id, fields)
	s.mu.Unlock()

	s.hub.Notify(collection)
	return id, nil
}

// Create - inserts a document under the given id
func (s *Storage) Create(ctx context.Context, collection, id string, fields store.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.collections[collection][id]; exists {
		s.mu.Unlock()
		return store.ErrAlreadyExists
	}
	s.insert(collection, id, fields)
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

// Get - returns a copy of the document
func (s *Storage) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	found, ok := s.collections[collection][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.Document{ID: id, Fields: copyFields(found.fields)}, nil
}

// Update - merges fields into the document
func (s *Storage) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	found, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	merged := copyFields(found.fields)
	for key, value := range store.ResolveTimestamps(fields, s.now()) {
		merged[key] = value
	}
	s.collections[collection][id] = entry{seq: found.seq, fields: merged}
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

// Delete - removes the document
func (s *Storage) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.collections[collection][id]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.collections[collection], id)
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

// Query - evaluates the query over a copy of the collection
func (s *Storage) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries := make([]entry, 0, len(s.collections[q.Collection]))
	ids := make(map[int64]string, len(s.collections[q.Collection]))
	for id, found := range s.collections[q.Collection] {
		entries = append(entries, found)
		ids[found.seq] = id
	}
	s.mu.RUnlock()

	// insertion order keeps ties stable between snapshots
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	documents := make([]store.Document, 0, len(entries))
	for _, found := range entries {
		documents = append(documents, store.Document{ID: ids[found.seq], Fields: copyFields(found.fields)})
	}
	return store.Apply(documents, q), nil
}

// Subscribe - live query over the collection
func (s *Storage) Subscribe(ctx context.Context, q store.Query) (*store.Subscription, error) {
	return s.hub.Subscribe(ctx, q.Collection, func(ctx context.Context) (*store.Snapshot, error) {
		documents, err := s.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		return &store.Snapshot{Documents: documents, ReadAt: s.clock()}, nil
	})
}

// Subscribers - number of live subscriptions
func (s *Storage) Subscribers() int {
	return s.hub.Len()
}

// Close - ends all subscriptions
func (s *Storage) Close() error {
	s.hub.Close()
	return nil
}
