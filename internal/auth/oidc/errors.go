package oidc

import (
	"errors"
	"fmt"
)

// Provider errors. Adapters and the registry return these (wrapped) so callers
// can classify failures with errors.Is.
var (
	// ErrUnsupportedProvider is returned for provider names no adapter exists for
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrProviderUnavailable is returned when a provider is not configured or
	// cannot be reached in time
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderNotConfigured is the ErrProviderUnavailable case where the
	// provider is known but has no client configured
	ErrProviderNotConfigured = fmt.Errorf("%w: not configured", ErrProviderUnavailable)

	// ErrInvalidCredential is returned when a token is expired, malformed, or
	// issued for another audience
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrProviderExchange is returned when an authorization code exchange fails
	ErrProviderExchange = errors.New("provider code exchange failed")
)

// ExchangeError carries the provider's error payload from a failed code
// exchange. It matches ErrProviderExchange with errors.Is.
type ExchangeError struct {
	Provider    ProviderType
	StatusCode  int
	Code        string // RFC 6749 "error"
	Description string // RFC 6749 "error_description"
}

func (e *ExchangeError) Error() string {
	msg := fmt.Sprintf("%s: %s: status %d", ErrProviderExchange, e.Provider, e.StatusCode)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += " (" + e.Description + ")"
	}
	return msg
}

func (e *ExchangeError) Unwrap() error {
	return ErrProviderExchange
}

func unavailable(provider ProviderType, operation string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrProviderUnavailable, provider, operation, err)
}

func invalidCredential(provider ProviderType, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidCredential, provider, fmt.Sprintf(format, args...))
}
