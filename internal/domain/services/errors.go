package services

import (
	"errors"

	"github.com/devilmonastery/cvbuilder/internal/auth/oidc"
	"github.com/devilmonastery/cvbuilder/internal/domain/repositories"
)

var (
	// ErrAuthenticationFailed wraps every failure returned by Authenticate.
	// The cause stays reachable with errors.Is.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrDataIntegrity is returned when a linked identity points at an
	// account that does not exist
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrEmailNotVerified is returned when merging by email is restricted to
	// verified addresses and the provider did not verify it
	ErrEmailNotVerified = errors.New("email not verified by provider")

	// ErrAccountNotFound is returned by account lookups for unknown ids
	ErrAccountNotFound = errors.New("account not found")
)

// FailureReason returns a stable label for an authentication error, used for
// logs and metrics
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, oidc.ErrUnsupportedProvider):
		return "unsupported_provider"
	case errors.Is(err, oidc.ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, oidc.ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, ErrEmailNotVerified):
		return "email_not_verified"
	case errors.Is(err, ErrDataIntegrity):
		return "data_integrity"
	case errors.Is(err, repositories.ErrConflict):
		return "conflict"
	case errors.Is(err, repositories.ErrStorage):
		return "storage"
	}
	return "internal"
}
