package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/devilmonastery/cvbuilder/internal/domain/repositories"
	"github.com/devilmonastery/cvbuilder/internal/pkg/metrics"
)

// Table names of the document tables created by the migrations
const (
	AccountsTable         = "accounts"
	LinkedIdentitiesTable = "linked_identities"
)

// pqUniqueViolation is the SQLSTATE for unique_violation
const pqUniqueViolation = "23505"

type documentRow struct {
	ID        string    `db:"id"`
	Content   []byte    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DocumentStore implements repositories.Store over a (id, content jsonb) table.
// Queries are translated to jsonb containment so the GIN index serves them.
type DocumentStore[T repositories.Entity] struct {
	db    *sqlx.DB
	table string
}

// NewDocumentStore creates a store over the named table. The table name is
// interpolated into SQL and must come from code, never from input.
func NewDocumentStore[T repositories.Entity](db *sqlx.DB, table string) *DocumentStore[T] {
	return &DocumentStore[T]{db: db, table: table}
}

// Create inserts the document. A taken key is detected through ON CONFLICT,
// a taken unique index through the unique_violation error.
func (s *DocumentStore[T]) Create(ctx context.Context, entity T) (doc *repositories.Document[T], err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "create", time.Since(start), -1, err) }()

	id := entity.DocumentID()
	if id == "" {
		return nil, repositories.ErrInvalidDocument
	}

	content, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s document: %v", repositories.ErrStorage, s.table, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, created_at, updated_at)
		VALUES ($1, $2::jsonb, now(), now())
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at, updated_at
	`, s.table)

	var row documentRow
	err = s.db.QueryRowxContext(ctx, query, id, string(content)).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s already exists", repositories.ErrConflict, s.table, id)
	}
	if err != nil {
		return nil, s.wrapError("create", err)
	}

	return &repositories.Document[T]{Key: id, Value: entity, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}, nil
}

// Replace overwrites the content of an existing document
func (s *DocumentStore[T]) Replace(ctx context.Context, entity T) (doc *repositories.Document[T], err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "replace", time.Since(start), -1, err) }()

	id := entity.DocumentID()
	if id == "" {
		return nil, repositories.ErrInvalidDocument
	}

	content, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s document: %v", repositories.ErrStorage, s.table, err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET content = $2::jsonb, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, s.table)

	var row documentRow
	err = s.db.QueryRowxContext(ctx, query, id, string(content)).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", repositories.ErrNotFound, s.table, id)
	}
	if err != nil {
		return nil, s.wrapError("replace", err)
	}

	return &repositories.Document[T]{Key: id, Value: entity, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}, nil
}

// Delete removes the document; a missing key is not an error
func (s *DocumentStore[T]) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "delete", time.Since(start), -1, err) }()

	if id == "" {
		return repositories.ErrInvalidDocument
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return s.wrapError("delete", err)
	}
	return nil
}

// GetByID returns the document or nil if absent
func (s *DocumentStore[T]) GetByID(ctx context.Context, id string) (doc *repositories.Document[T], err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "get", time.Since(start), -1, err) }()

	query := fmt.Sprintf(`SELECT id, content, created_at, updated_at FROM %s WHERE id = $1`, s.table)

	var row documentRow
	err = s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrapError("get", err)
	}

	value, err := s.decode(row.Content)
	if err != nil {
		return nil, err
	}
	return &repositories.Document[T]{Key: row.ID, Value: value, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}, nil
}

// GetAll returns every value ordered by key
func (s *DocumentStore[T]) GetAll(ctx context.Context) (values []T, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "list", time.Since(start), int64(len(values)), err) }()

	query := fmt.Sprintf(`SELECT content FROM %s ORDER BY id`, s.table)
	return s.selectValues(ctx, "list", query)
}

// FindOne returns the first match by key order, or nil
func (s *DocumentStore[T]) FindOne(ctx context.Context, q repositories.Query) (value *T, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "find_one", time.Since(start), -1, err) }()

	filter, err := containment(q)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT content FROM %s WHERE content @> $1::jsonb ORDER BY id LIMIT 1`, s.table)
	values, err := s.selectValues(ctx, "find_one", query, filter)
	if err != nil || len(values) == 0 {
		return nil, err
	}
	return &values[0], nil
}

// Find returns all matches ordered by key
func (s *DocumentStore[T]) Find(ctx context.Context, q repositories.Query) (values []T, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBOperation(s.table, "find", time.Since(start), int64(len(values)), err) }()

	filter, err := containment(q)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT content FROM %s WHERE content @> $1::jsonb ORDER BY id`, s.table)
	return s.selectValues(ctx, "find", query, filter)
}

// Count returns the number of stored documents
func (s *DocumentStore[T]) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)
	if err := s.db.GetContext(ctx, &count, query); err != nil {
		return 0, s.wrapError("count", err)
	}
	return count, nil
}

func (s *DocumentStore[T]) selectValues(ctx context.Context, op, query string, args ...any) ([]T, error) {
	var contents [][]byte
	if err := s.db.SelectContext(ctx, &contents, query, args...); err != nil {
		return nil, s.wrapError(op, err)
	}

	values := make([]T, 0, len(contents))
	for _, content := range contents {
		v, err := s.decode(content)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (s *DocumentStore[T]) decode(content []byte) (T, error) {
	var v T
	if err := json.Unmarshal(content, &v); err != nil {
		return v, fmt.Errorf("%w: decode %s document: %v", repositories.ErrStorage, s.table, err)
	}
	return v, nil
}

// wrapError maps driver errors onto the store error taxonomy
func (s *DocumentStore[T]) wrapError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%w: %s violates unique index %s", repositories.ErrConflict, s.table, pqErr.Constraint)
	}
	return fmt.Errorf("%w: %s %s: %v", repositories.ErrStorage, op, s.table, err)
}

// containment renders a query as the JSON object used with the @> operator.
// Parameters are sent as text; lib/pq would encode []byte as bytea.
func containment(q repositories.Query) (string, error) {
	filter, err := json.Marshal(q.Fields())
	if err != nil {
		return "", fmt.Errorf("%w: encode query: %v", repositories.ErrStorage, err)
	}
	return string(filter), nil
}
