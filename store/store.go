// Package store describes a schemaless document store with live collection
// subscriptions. Documents are key/value maps grouped in named collections.
// Implementations live in the memory, postgres and mongo subpackages.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound - document with the given id does not exist
	ErrNotFound = errors.New("store: document not found")
	// ErrAlreadyExists - document with the given id already exists
	ErrAlreadyExists = errors.New("store: document already exists")
	// ErrClosed - store is closed
	ErrClosed = errors.New("store: closed")
)

// Fields - field data of a document
type Fields map[string]interface{}

// Document - a single document: store assigned id merged with its field data
type Document struct {
	ID     string
	Fields Fields
}

type serverTimestamp struct{}

// ServerTimestamp - field value that is replaced by the store clock on write
var ServerTimestamp = serverTimestamp{}

// Filter - equality predicate on a single field
type Filter struct {
	Field string
	Value interface{}
}

// Query - selects documents of a collection
// Limit == 0 means no limit
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Offset     int
	Limit      int
}

// Where - returns a copy of the query with an additional equality filter
func (q Query) Where(field string, value interface{}) Query {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	q.Filters = append(filters, Filter{Field: field, Value: value})
	return q
}

// Snapshot - full point-in-time result of a subscribed query
type Snapshot struct {
	Documents []Document
	ReadAt    time.Time
}

// Event - delivered to a subscriber: either a snapshot or a terminal error
type Event struct {
	Snapshot *Snapshot
	Err      error
}

// Store - remote document store
type Store interface {
	// Add - inserts a new document and returns its generated id
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	// Create - inserts a new document with the given id. Returns ErrAlreadyExists if it is taken
	Create(ctx context.Context, collection, id string, fields Fields) error
	// Get - returns document by id or ErrNotFound
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Update - merges fields into the document. Last write wins
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Delete - removes the document or returns ErrNotFound
	Delete(ctx context.Context, collection, id string) error
	// Query - one shot read of the query result
	Query(ctx context.Context, q Query) ([]Document, error)
	// Subscribe - delivers the full query result now and after every change of the collection
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
	Close() error
}

// ResolveTimestamps - returns a copy of fields with ServerTimestamp values replaced by now
func ResolveTimestamps(fields Fields, now time.Time) Fields {
	resolved := make(Fields, len(fields))
	for key, value := range fields {
		if _, ok := value.(serverTimestamp); ok {
			resolved[key] = now
			continue
		}
		resolved[key] = value
	}
	return resolved
}
