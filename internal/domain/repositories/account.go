package repositories

import (
	"context"

	"github.com/devilmonastery/cvbuilder/internal/domain/entities"
)

// Field names used by account lookups; they must match the entity's JSON tags
const (
	AccountFieldEmailNormalized = "email_normalized"
)

// AccountUniqueIndexes mirrors the unique indexes on the accounts table
var AccountUniqueIndexes = []UniqueIndex{
	{Name: "accounts_email_normalized_key", Fields: []string{AccountFieldEmailNormalized}},
}

// AccountStore provides the account lookups identity resolution needs on top
// of a generic document store
type AccountStore struct {
	store Store[entities.Account]
}

// NewAccountStore wraps a document store of accounts
func NewAccountStore(store Store[entities.Account]) *AccountStore {
	return &AccountStore{store: store}
}

// Get returns the account with the given ID, or nil if it does not exist
func (s *AccountStore) Get(ctx context.Context, accountID string) (*entities.Account, error) {
	doc, err := s.store.GetByID(ctx, accountID)
	if err != nil || doc == nil {
		return nil, err
	}
	return &doc.Value, nil
}

// FindByEmail returns the first account whose normalized email matches.
// An empty email never matches anything.
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*entities.Account, error) {
	normalized := entities.NormalizeEmail(email)
	if normalized == "" {
		return nil, nil
	}
	return s.store.FindOne(ctx, Where(AccountFieldEmailNormalized, normalized))
}

// Create persists a new account
func (s *AccountStore) Create(ctx context.Context, account *entities.Account) error {
	_, err := s.store.Create(ctx, *account)
	return err
}

// Replace overwrites an existing account
func (s *AccountStore) Replace(ctx context.Context, account *entities.Account) error {
	_, err := s.store.Replace(ctx, *account)
	return err
}

// Delete removes an account. Used only to roll back an account orphaned by a
// lost create race.
func (s *AccountStore) Delete(ctx context.Context, accountID string) error {
	return s.store.Delete(ctx, accountID)
}

// List returns every account
func (s *AccountStore) List(ctx context.Context) ([]entities.Account, error) {
	return s.store.GetAll(ctx)
}

// Count returns the number of accounts
func (s *AccountStore) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}
