// Package postgres - document store on top of a single jsonb table
// Every mutation publishes the collection name with pg_notify in the same transaction;
// one shared pq.Listener turns those notifications into snapshot re-reads of subscriptions.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/Viktor-Kode/bloghub/store"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"log"
	"strconv"
	"strings"
	"time"
)

const (
	// notifyChannel - postgres channel used for collection change notifications
	notifyChannel = "documents"

	uniqueViolation = "23505"

	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	listenerPingInterval = 90 * time.Second
)

// TimeLayout - fixed width UTC layout time values are stored in, so that text order is time order
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data JSONB NOT NULL,
		seq BIGSERIAL,
		PRIMARY KEY (collection, id)
	)`,
	`CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data jsonb_path_ops)`,
}

// Storage - postgres document store
type Storage struct {
	db       *sql.DB
	listener *pq.Listener
	hub      store.Hub
	logInfo  *log.Logger
	logError *log.Logger
	done     chan struct{}
}

// New - opens the database, creates the schema and starts listening for change notifications
func New(ctx context.Context, connString string, logInfo, logError *log.Logger) (*Storage, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("invalid data source: %w", err)
	}

	s := &Storage{
		db:       db,
		logInfo:  logInfo,
		logError: logError,
		done:     make(chan struct{}),
	}
	if err = s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.listener = pq.NewListener(connString, minReconnectInterval, maxReconnectInterval,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				logError.Printf("Notification listener error: %s", err)
			}
		})
	if err = s.listener.Listen(notifyChannel); err != nil {
		_ = s.listener.Close()
		_ = db.Close()
		return nil, fmt.Errorf("error listening on channel %s: %w", notifyChannel, err)
	}
	go s.dispatch()

	logInfo.Print("Postgres document store opened")
	return s, nil
}

func (s *Storage) initSchema(ctx context.Context) error {
	for _, q := range schema {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *Storage) dispatch() {
	defer close(s.done)
	for {
		select {
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			// nil notification means the connection was re-established and notifications may be lost
			if n == nil {
				s.hub.NotifyAll()
				continue
			}
			s.hub.Notify(n.Extra)
		case <-time.After(listenerPingInterval):
			go func() {
				if err := s.listener.Ping(); err != nil {
					s.logError.Printf("Notification listener ping failed: %s", err)
				}
			}()
		}
	}
}

func encodeValue(value interface{}) interface{} {
	if t, ok := value.(time.Time); ok {
		return t.UTC().Format(TimeLayout)
	}
	return value
}

// encodeFields - jsonb parameters are sent as text, []byte would be sent as bytea
func encodeFields(fields store.Fields) (string, error) {
	encoded := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		encoded[key] = encodeValue(value)
	}
	data, err := json.Marshal(encoded)
	return string(data), err
}

func (s *Storage) mutate(ctx context.Context, collection, query string, args ...interface{}) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback()
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, store.ErrAlreadyExists
		}
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if affected > 0 {
		if _, err = tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", notifyChannel, collection); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	return affected, tx.Commit()
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
	data, err := encodeFields(store.ResolveTimestamps(fields, time.Now()))
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, collection,
		"INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)", collection, id, data)
	return err
}

// Get - returns document by id
func (s *Storage) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM documents WHERE collection = $1 AND id = $2",
		collection, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	document := &store.Document{ID: id}
	if err = json.Unmarshal(data, &document.Fields); err != nil {
		return nil, err
	}
	return document, nil
}

// Update - merges fields into the document
func (s *Storage) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	data, err := encodeFields(store.ResolveTimestamps(fields, time.Now()))
	if err != nil {
		return err
	}
	affected, err := s.mutate(ctx, collection,
		"UPDATE documents SET data = data || $3::jsonb WHERE collection = $1 AND id = $2", collection, id, data)
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete - removes the document
func (s *Storage) Delete(ctx context.Context, collection, id string) error {
	affected, err := s.mutate(ctx, collection,
		"DELETE FROM documents WHERE collection = $1 AND id = $2", collection, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// buildQuery - translates the query into SQL. Filters are pushed down as jsonb containment
func buildQuery(q store.Query) (string, []interface{}, error) {
	var sb strings.Builder
	args := []interface{}{q.Collection}
	sb.WriteString("SELECT id, data FROM documents WHERE collection = $1")

	if len(q.Filters) > 0 {
		filters := make(map[string]interface{}, len(q.Filters))
		for _, filter := range q.Filters {
			filters[filter.Field] = encodeValue(filter.Value)
		}
		encoded, err := json.Marshal(filters)
		if err != nil {
			return "", nil, err
		}
		args = append(args, string(encoded))
		sb.WriteString(" AND data @> $" + strconv.Itoa(len(args)) + "::jsonb")
	}

	sb.WriteString(" ORDER BY ")
	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		sb.WriteString("data->>$" + strconv.Itoa(len(args)) + ` COLLATE "C"`)
		if q.Descending {
			sb.WriteString(" DESC NULLS LAST, ")
		} else {
			sb.WriteString(" ASC NULLS FIRST, ")
		}
	}
	sb.WriteString("seq ASC")

	if q.Offset > 0 {
		args = append(args, q.Offset)
		sb.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	return sb.String(), args, nil
}

// Query - one shot read
func (s *Storage) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	query, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	documents := make([]store.Document, 0)
	for rows.Next() {
		var document store.Document
		var data []byte
		if err = rows.Scan(&document.ID, &data); err != nil {
			return nil, err
		}
		if err = json.Unmarshal(data, &document.Fields); err != nil {
			return nil, err
		}
		documents = append(documents, document)
	}
	return documents, rows.Err()
}

// Subscribe - live query. The result is re-read after every notification for the collection
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
	return s.db.PingContext(ctx)
}

// Close - ends subscriptions, stops the listener and closes the database
func (s *Storage) Close() error {
	s.hub.Close()
	if err := s.listener.Close(); err != nil {
		s.logError.Printf("Error closing notification listener: %s", err)
	}
	<-s.done
	return s.db.Close()
}
