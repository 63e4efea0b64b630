package repositories

import (
	"context"
	"sort"

	"github.com/devilmonastery/cvbuilder/internal/domain/entities"
)

// Field names used by linked identity lookups; they must match the entity's JSON tags
const (
	IdentityFieldAccountID      = "account_id"
	IdentityFieldProviderType   = "provider_type"
	IdentityFieldProviderUserID = "provider_user_id"
	IdentityFieldIsActive       = "is_active"
)

// IdentityUniqueIndexes mirrors the unique indexes on the linked_identities table
var IdentityUniqueIndexes = []UniqueIndex{
	{
		Name:   "linked_identities_provider_subject_key",
		Fields: []string{IdentityFieldProviderType, IdentityFieldProviderUserID},
		Where:  Where(IdentityFieldIsActive, true),
	},
}

// IdentityStore provides linked identity lookups on top of a generic document store.
// Supports multi-provider authentication where one account links several
// providers (Google, Auth0, GitHub, ...).
type IdentityStore struct {
	store Store[entities.LinkedIdentity]
}

// NewIdentityStore wraps a document store of linked identities
func NewIdentityStore(store Store[entities.LinkedIdentity]) *IdentityStore {
	return &IdentityStore{store: store}
}

// FindActive returns the active identity for a provider subject, or nil.
// This is the primary lookup during login to find returning users.
func (s *IdentityStore) FindActive(ctx context.Context, providerType, providerUserID string) (*entities.LinkedIdentity, error) {
	q := Where(IdentityFieldProviderType, providerType).
		And(IdentityFieldProviderUserID, providerUserID).
		And(IdentityFieldIsActive, true)
	return s.store.FindOne(ctx, q)
}

// ListActiveByAccount returns the account's active identities, oldest first
func (s *IdentityStore) ListActiveByAccount(ctx context.Context, accountID string) ([]entities.LinkedIdentity, error) {
	q := Where(IdentityFieldAccountID, accountID).And(IdentityFieldIsActive, true)
	identities, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(identities, func(i, j int) bool {
		return identities[i].CreatedAt.Before(identities[j].CreatedAt)
	})
	return identities, nil
}

// Create persists a new identity
func (s *IdentityStore) Create(ctx context.Context, identity *entities.LinkedIdentity) error {
	_, err := s.store.Create(ctx, *identity)
	return err
}

// Replace overwrites an existing identity
func (s *IdentityStore) Replace(ctx context.Context, identity *entities.LinkedIdentity) error {
	_, err := s.store.Replace(ctx, *identity)
	return err
}

// Count returns the number of identities, active or not
func (s *IdentityStore) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}
