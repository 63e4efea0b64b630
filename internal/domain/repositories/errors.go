package repositories

import "errors"

// Document store errors
var (
	// ErrConflict is returned when a create collides with an existing key or unique index
	ErrConflict = errors.New("document conflict")

	// ErrNotFound is returned when replacing a document that does not exist
	ErrNotFound = errors.New("document not found")

	// ErrStorage is returned when the underlying storage fails or holds undecodable data
	ErrStorage = errors.New("storage error")

	// ErrInvalidDocument is returned for documents without a key
	ErrInvalidDocument = errors.New("document id cannot be empty")
)
