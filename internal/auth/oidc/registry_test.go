package oidc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/cvbuilder/internal/config"
)

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(config.AuthConfig{
		Providers: []config.ProviderConfig{
			{Name: "google", ClientID: "g"},
			{Name: "Auth0", ClientID: "a", Domain: "tenant.example.com"},
			{Name: "github", ClientID: "gh", Disabled: true},
			{Name: "microsoft"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []ProviderType{ProviderAuth0, ProviderGoogle}, r.ListAvailable())
	assert.True(t, r.IsAvailable(ProviderGoogle))
	assert.False(t, r.IsAvailable(ProviderGitHub))
	assert.False(t, r.IsAvailable("myspace"))

	p, err := r.Get("GOOGLE")
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, p.Type())
	assert.Equal(t, "Google", p.DisplayName())

	_, err = r.Get(ProviderMicrosoft)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	_, err = r.Get("myspace")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
	assert.NotErrorIs(t, err, ErrProviderUnavailable)
}

func TestNewRegistry_InvalidConfig(t *testing.T) {
	_, err := NewRegistry(config.AuthConfig{Providers: []config.ProviderConfig{{Name: "myspace", ClientID: "x"}}})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = NewRegistry(config.AuthConfig{Providers: []config.ProviderConfig{{Name: "auth0", ClientID: "x"}}})
	assert.Error(t, err)

	_, err = NewRegistry(config.AuthConfig{Providers: []config.ProviderConfig{{Name: "microsoft", ClientID: "x"}}})
	assert.Error(t, err)
}

func TestNewRegistry_Auth0ExplicitEndpoints(t *testing.T) {
	r, err := NewRegistry(config.AuthConfig{Providers: []config.ProviderConfig{{
		Name:        "auth0",
		ClientID:    "a",
		AuthURL:     "https://login.internal/authorize",
		TokenURL:    "https://login.internal/oauth/token",
		UserInfoURL: "https://login.internal/userinfo",
	}}})
	require.NoError(t, err)
	p, err := r.Get(ProviderAuth0)
	require.NoError(t, err)
	url, err := p.AuthorizationURL(t.Context(), "st", "https://app/cb", nil)
	require.NoError(t, err)
	assert.Contains(t, url, "https://login.internal/authorize?")

	_, err = NewRegistry(config.AuthConfig{Providers: []config.ProviderConfig{{
		Name:     "auth0",
		ClientID: "a",
		AuthURL:  "https://login.internal/authorize",
	}}})
	assert.ErrorContains(t, err, "domain")
}

// Whatever config.Load accepts must also build a registry.
func TestNewRegistry_AcceptsLoadedAuth0Config(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: memory
auth:
  jwt:
    secret: s
    issuer: i
    audience: a
  providers:
    - name: auth0
      client_id: auth0-client
      client_secret: auth0-secret
      auth_url: https://login.internal/authorize
      token_url: https://login.internal/oauth/token
      userinfo_url: https://login.internal/userinfo
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	r, err := NewRegistry(cfg.Auth)
	require.NoError(t, err)
	assert.True(t, r.IsAvailable(ProviderAuth0))
}

func TestParseProviderType(t *testing.T) {
	pt, err := ParseProviderType(" GitHub ")
	require.NoError(t, err)
	assert.Equal(t, ProviderGitHub, pt)

	_, err = ParseProviderType("")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}
