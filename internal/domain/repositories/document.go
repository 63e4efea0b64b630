package repositories

import (
	"context"
	"time"
)

// Entity is anything that can be stored as a document. DocumentID is the
// entity's own logical identifier and becomes the document key.
type Entity interface {
	DocumentID() string
}

// Document pairs a key with a typed value persisted as a schemaless blob
type Document[T Entity] struct {
	Key       string
	Value     T
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the generic key -> document persistence contract.
// Lookups return (nil, nil) when nothing matches; only Replace treats a
// missing key as an error.
type Store[T Entity] interface {
	// Create inserts a new document keyed by the entity's ID.
	// Returns ErrConflict if the key, or any unique index, is already taken.
	Create(ctx context.Context, entity T) (*Document[T], error)

	// Replace overwrites the value stored under the entity's ID.
	// Returns ErrNotFound if no document exists under that key.
	Replace(ctx context.Context, entity T) (*Document[T], error)

	// Delete removes the document; deleting a missing key is not an error
	Delete(ctx context.Context, id string) error

	// GetByID returns the document or nil if absent
	GetByID(ctx context.Context, id string) (*Document[T], error)

	// GetAll returns every stored value in no particular order
	GetAll(ctx context.Context) ([]T, error)

	// FindOne returns the first value matching every condition of q, or nil
	FindOne(ctx context.Context, q Query) (*T, error)

	// Find returns all values matching every condition of q
	Find(ctx context.Context, q Query) ([]T, error)

	// Count returns the number of stored documents
	Count(ctx context.Context) (int, error)
}

// Condition is an equality test on one top-level field of the stored JSON
type Condition struct {
	Field string
	Value any
}

// Query is a conjunction of equality conditions. It deliberately cannot
// express arbitrary predicates so every backend can serve it from an index.
type Query struct {
	Conditions []Condition
}

// Where starts a query with a single condition
func Where(field string, value any) Query {
	return Query{Conditions: []Condition{{Field: field, Value: value}}}
}

// And returns a copy of q with one more condition
func (q Query) And(field string, value any) Query {
	conds := make([]Condition, len(q.Conditions), len(q.Conditions)+1)
	copy(conds, q.Conditions)
	return Query{Conditions: append(conds, Condition{Field: field, Value: value})}
}

// Fields returns the query as a field -> value map
func (q Query) Fields() map[string]any {
	m := make(map[string]any, len(q.Conditions))
	for _, c := range q.Conditions {
		m[c.Field] = c.Value
	}
	return m
}

// UniqueIndex describes a uniqueness constraint over document fields.
// Documents with an empty value in any indexed field, or that do not
// match Where, are not covered by the index.
type UniqueIndex struct {
	Name   string
	Fields []string
	Where  Query
}
