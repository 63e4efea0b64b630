package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const baseConfig = `
database:
  driver: memory
auth:
  jwt:
    secret: ${TEST_JWT_SECRET}
    issuer: cvbuilder
    audience: cvbuilder-web
    lifetime: 2h
  providers:
    - name: google
      client_id: google-client
      client_secret: google-secret
`

func TestLoad_ExpandsEnvAndParsesDurations(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "s3cret")

	cfg, err := Load(writeConfig(t, baseConfig))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWT.Secret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.JWT.Lifetime)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Auth.ProviderTimeout)

	google, ok := cfg.Auth.Provider("google")
	require.True(t, ok)
	assert.Equal(t, "google-client", google.ClientID)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-file")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("JWT_EXPIRES_MINUTES", "30")
	t.Setenv("AUTH0_CLIENT_ID", "auth0-client")
	t.Setenv("AUTH0_CLIENT_SECRET", "auth0-secret")
	t.Setenv("AUTH0_DOMAIN", "tenant.eu.auth0.com")

	cfg, err := Load(writeConfig(t, baseConfig))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.Auth.JWT.Lifetime)

	auth0, ok := cfg.Auth.Provider("auth0")
	require.True(t, ok, "auth0 should be added from the environment")
	assert.Equal(t, "auth0-client", auth0.ClientID)
	assert.Equal(t, "tenant.eu.auth0.com", auth0.Domain)
}

func TestLoad_ReportsAllMissingValues(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  postgres:
    host: ""
auth:
  providers:
    - name: auth0
      client_id: abc
`)

	_, err := Load(path)
	require.Error(t, err)

	for _, want := range []string{
		"auth.jwt.secret",
		"auth.jwt.issuer",
		"auth.jwt.audience",
		"DB_CONNECTION_STRING",
		"auth.providers[auth0].client_secret",
		"AUTH0_DOMAIN",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_Auth0DomainRule(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "s3cret")

	withURLs := baseConfig + `
    - name: Auth0
      client_id: auth0-client
      client_secret: auth0-secret
      auth_url: https://login.internal/authorize
      token_url: https://login.internal/oauth/token
      userinfo_url: https://login.internal/userinfo
`
	cfg, err := Load(writeConfig(t, withURLs))
	require.NoError(t, err)
	auth0, ok := cfg.Auth.Provider("Auth0")
	require.True(t, ok)
	assert.True(t, auth0.HasExplicitEndpoints())

	partial := baseConfig + `
    - name: Auth0
      client_id: auth0-client
      client_secret: auth0-secret
      auth_url: https://login.internal/authorize
`
	_, err = Load(writeConfig(t, partial))
	require.ErrorContains(t, err, "AUTH0_DOMAIN")
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "s3cret")
	path := writeConfig(t, `
database:
  driver: sqlite
auth:
  jwt:
    secret: x
    issuer: i
    audience: a
`)

	_, err := Load(path)
	require.ErrorContains(t, err, "database.driver")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "config file not found")
}

func TestPostgresConfig_DSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "cv", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=cv sslmode=disable", p.DSN())

	p.ConnectionString = "postgres://x"
	assert.Equal(t, "postgres://x", p.DSN())
}
