// Package memory implements the document store in process memory. It backs
// the "memory" database driver for local development and stands in for
// PostgreSQL in tests, including unique index enforcement.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/devilmonastery/cvbuilder/internal/domain/repositories"
	"github.com/devilmonastery/cvbuilder/internal/pkg/metrics"
)

type record struct {
	content   []byte
	fields    map[string]any
	createdAt time.Time
	updatedAt time.Time
}

// Store is an in-memory repositories.Store. Values are kept JSON-encoded so
// callers never share memory with stored documents.
type Store[T repositories.Entity] struct {
	table   string
	indexes []repositories.UniqueIndex

	mu   sync.RWMutex
	docs map[string]*record
}

// NewStore creates an empty store enforcing the given unique indexes
func NewStore[T repositories.Entity](table string, indexes ...repositories.UniqueIndex) *Store[T] {
	return &Store[T]{
		table:   table,
		indexes: indexes,
		docs:    make(map[string]*record),
	}
}

// Ping always succeeds; it lets the store satisfy readiness checks
func (s *Store[T]) Ping(ctx context.Context) error {
	return nil
}

// Create inserts a new document; the key and unique index check happen
// under the write lock, so concurrent creates of one key have one winner.
func (s *Store[T]) Create(ctx context.Context, entity T) (doc *repositories.Document[T], err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "create", time.Since(start), -1, err) }()

	id := entity.DocumentID()
	if id == "" {
		return nil, repositories.ErrInvalidDocument
	}

	rec, err := encode(entity)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; exists {
		return nil, fmt.Errorf("%w: %s %s already exists", repositories.ErrConflict, s.table, id)
	}
	if err := s.checkUnique(id, rec.fields); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec.createdAt, rec.updatedAt = now, now
	s.docs[id] = rec

	return &repositories.Document[T]{Key: id, Value: entity, CreatedAt: now, UpdatedAt: now}, nil
}

// Replace overwrites an existing document's value, keeping its key
func (s *Store[T]) Replace(ctx context.Context, entity T) (doc *repositories.Document[T], err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "replace", time.Since(start), -1, err) }()

	id := entity.DocumentID()
	if id == "" {
		return nil, repositories.ErrInvalidDocument
	}

	rec, err := encode(entity)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", repositories.ErrNotFound, s.table, id)
	}
	if err := s.checkUnique(id, rec.fields); err != nil {
		return nil, err
	}

	rec.createdAt = existing.createdAt
	rec.updatedAt = time.Now().UTC()
	s.docs[id] = rec

	return &repositories.Document[T]{Key: id, Value: entity, CreatedAt: rec.createdAt, UpdatedAt: rec.updatedAt}, nil
}

// Delete removes a document if present
func (s *Store[T]) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "delete", time.Since(start), -1, err) }()

	if id == "" {
		return repositories.ErrInvalidDocument
	}

	s.mu.Lock()
	delete(s.docs, id)
	s.mu.Unlock()
	return nil
}

// GetByID returns the document or nil if absent
func (s *Store[T]) GetByID(ctx context.Context, id string) (doc *repositories.Document[T], err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "get", time.Since(start), -1, err) }()

	s.mu.RLock()
	rec, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	value, err := decode[T](rec)
	if err != nil {
		return nil, err
	}
	return &repositories.Document[T]{Key: id, Value: value, CreatedAt: rec.createdAt, UpdatedAt: rec.updatedAt}, nil
}

// GetAll returns every value ordered by key
func (s *Store[T]) GetAll(ctx context.Context) (values []T, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "list", time.Since(start), int64(len(values)), err) }()

	return s.collect(repositories.Query{}, 0)
}

// FindOne returns the first match by key order, or nil
func (s *Store[T]) FindOne(ctx context.Context, q repositories.Query) (value *T, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "find_one", time.Since(start), -1, err) }()

	values, err := s.collect(q, 1)
	if err != nil || len(values) == 0 {
		return nil, err
	}
	return &values[0], nil
}

// Find returns all matches ordered by key
func (s *Store[T]) Find(ctx context.Context, q repositories.Query) (values []T, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "find", time.Since(start), int64(len(values)), err) }()

	return s.collect(q, 0)
}

// Count returns the number of stored documents
func (s *Store[T]) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// collect returns values matching q in key order; limit 0 means unlimited
func (s *Store[T]) collect(q repositories.Query, limit int) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]T, 0)
	for _, k := range keys {
		rec := s.docs[k]
		if !matches(rec.fields, q) {
			continue
		}
		v, err := decode[T](rec)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if limit > 0 && len(values) >= limit {
			break
		}
	}
	return values, nil
}

// checkUnique must be called with the write lock held
func (s *Store[T]) checkUnique(id string, fields map[string]any) error {
	for _, idx := range s.indexes {
		if !matches(fields, idx.Where) {
			continue
		}
		key, ok := indexKey(fields, idx.Fields)
		if !ok {
			continue
		}
		for otherID, other := range s.docs {
			if otherID == id || !matches(other.fields, idx.Where) {
				continue
			}
			if otherKey, ok := indexKey(other.fields, idx.Fields); ok && reflect.DeepEqual(key, otherKey) {
				return fmt.Errorf("%w: %s violates unique index %s", repositories.ErrConflict, s.table, idx.Name)
			}
		}
	}
	return nil
}

func indexKey(fields map[string]any, names []string) ([]any, bool) {
	key := make([]any, 0, len(names))
	for _, name := range names {
		v, ok := fields[name]
		if !ok || v == nil || v == "" {
			return nil, false
		}
		key = append(key, v)
	}
	return key, true
}

func matches(fields map[string]any, q repositories.Query) bool {
	for _, c := range q.Conditions {
		v, ok := fields[c.Field]
		if !ok || !reflect.DeepEqual(v, normalize(c.Value)) {
			return false
		}
	}
	return true
}

// normalize converts a condition value to the shape encoding/json decodes it
// to, so 1 compares equal to float64(1) and custom string types to string.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func encode[T repositories.Entity](entity T) (*record, error) {
	content, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: encode document: %v", repositories.ErrStorage, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(content, &fields); err != nil {
		return nil, fmt.Errorf("%w: document must encode to a JSON object: %v", repositories.ErrStorage, err)
	}
	return &record{content: content, fields: fields}, nil
}

func decode[T repositories.Entity](rec *record) (T, error) {
	var v T
	if err := json.Unmarshal(rec.content, &v); err != nil {
		return v, fmt.Errorf("%w: decode document: %v", repositories.ErrStorage, err)
	}
	return v, nil
}
