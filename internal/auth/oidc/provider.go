package oidc

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ProviderType identifies an external identity provider
type ProviderType string

const (
	ProviderGoogle    ProviderType = "google"
	ProviderAuth0     ProviderType = "auth0"
	ProviderMicrosoft ProviderType = "microsoft"
	ProviderGitHub    ProviderType = "github"
)

// KnownProviderTypes lists every provider type an adapter exists for
var KnownProviderTypes = []ProviderType{ProviderGoogle, ProviderAuth0, ProviderMicrosoft, ProviderGitHub}

var defaultDisplayNames = map[ProviderType]string{
	ProviderGoogle:    "Google",
	ProviderAuth0:     "Auth0",
	ProviderMicrosoft: "Microsoft",
	ProviderGitHub:    "GitHub",
}

// ParseProviderType resolves a provider name case-insensitively
func ParseProviderType(name string) (ProviderType, error) {
	pt := ProviderType(strings.ToLower(strings.TrimSpace(name)))
	if !pt.IsKnown() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
	return pt, nil
}

// IsKnown reports whether an adapter exists for the type
func (t ProviderType) IsKnown() bool {
	_, ok := defaultDisplayNames[t]
	return ok
}

func (t ProviderType) String() string {
	return string(t)
}

// Provider is the uniform contract every identity provider adapter implements.
// Callers never need to know whether the provider verifies self-contained
// signed tokens or introspects bearer tokens.
type Provider interface {
	// Type returns the provider identifier
	Type() ProviderType

	// DisplayName returns the human readable provider name
	DisplayName() string

	// AuthorizationURL builds the URL the end user is redirected to. All
	// parameters are URL-encoded and the provider's default scopes are
	// always requested.
	AuthorizationURL(ctx context.Context, state, redirectURI string, scopes []string) (string, error)

	// ExchangeCode trades an authorization code for a provider access token,
	// using the same redirect URI that obtained the code
	ExchangeCode(ctx context.Context, code, redirectURI string) (string, error)

	// ValidateToken verifies a provider credential and returns the
	// normalized user info
	ValidateToken(ctx context.Context, token string) (*UserInfo, error)
}

// UserInfo is the normalized result of validating a provider credential.
// Optional fields the provider omits are left empty rather than failing.
type UserInfo struct {
	Subject       string
	Email         string
	Name          string
	Picture       string
	Locale        string
	EmailVerified bool
	RawClaims     map[string]any

	// Set by introspection adapters, where the validated credential is itself
	// a reusable provider access token
	AccessToken          string
	AccessTokenExpiresAt *time.Time
}
