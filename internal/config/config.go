package config

import (
	"fmt"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Auth        AuthConfig     `yaml:"auth"`
	Environment string         `yaml:"environment" default:"local"` // local, dev, prod
	NodeID      int64          `yaml:"node_id" default:"1"`         // Snowflake node for ID generation
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string          `yaml:"host" default:"localhost"`
	Port            int             `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" default:"10s"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds the per-client limits applied to /auth routes
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" default:"5"`
	Burst             int     `yaml:"burst" default:"20"`
}

// Address returns the listen address for the HTTP server
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" default:"postgres"` // postgres, memory
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	ConnectionString string `yaml:"connection_string"` // Takes precedence over the discrete fields below
	Host             string `yaml:"host" default:"localhost"`
	Port             int    `yaml:"port" default:"5432"`
	Database         string `yaml:"database" default:"cvbuilder"`
	User             string `yaml:"user" default:"postgres"`
	Password         string `yaml:"password"`
	SSLMode          string `yaml:"sslmode" default:"disable"` // disable, require, verify-ca, verify-full
	MaxOpenConns     int    `yaml:"max_open_conns" default:"25"`
	MaxIdleConns     int    `yaml:"max_idle_conns" default:"5"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWT             JWTConfig        `yaml:"jwt"`
	EncryptionKey   string           `yaml:"encryption_key"`                      // 32 bytes, base64; encrypts stored provider tokens
	ProviderTimeout time.Duration    `yaml:"provider_timeout" default:"10s"`      // Bound on every outbound provider call
	Providers       []ProviderConfig `yaml:"providers"`

	// RequireVerifiedEmailForMerge refuses to link a new provider identity to an
	// existing account by email unless the provider reports the email as verified.
	RequireVerifiedEmailForMerge bool `yaml:"require_verified_email_for_merge"`
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret   string        `yaml:"secret"`                  // HMAC signing secret
	Issuer   string        `yaml:"issuer"`                  // iss claim
	Audience string        `yaml:"audience"`                // aud claim
	Lifetime time.Duration `yaml:"lifetime" default:"168h"` // Default 7 days
}

// ProviderConfig holds external identity provider configuration
type ProviderConfig struct {
	Name         string   `yaml:"name"`                    // "google", "auth0", "github", "microsoft"
	DisplayName  string   `yaml:"display_name,omitempty"`  // Shown by GET /auth/providers
	ClientID     string   `yaml:"client_id"`               // OAuth client ID; the provider is unavailable without it
	ClientSecret string   `yaml:"client_secret,omitempty"` // OAuth client secret
	Domain       string   `yaml:"domain,omitempty"`        // Tenant domain (Auth0)
	Issuer       string   `yaml:"issuer,omitempty"`        // OIDC issuer URL (for discovery)
	Scopes       []string `yaml:"scopes,omitempty"`        // Replaces the provider's default scopes
	Disabled     bool     `yaml:"disabled,omitempty"`      // Keep the block but do not register the provider

	// Endpoint overrides, mostly for tests and self-hosted tenants
	AuthURL     string `yaml:"auth_url,omitempty"`
	TokenURL    string `yaml:"token_url,omitempty"`
	UserInfoURL string `yaml:"userinfo_url,omitempty"`
	EmailsURL   string `yaml:"emails_url,omitempty"`
	JWKSURL     string `yaml:"jwks_url,omitempty"`
}

// Provider returns the configuration block for the named provider, if present
func (a *AuthConfig) Provider(name string) (*ProviderConfig, bool) {
	for i := range a.Providers {
		if a.Providers[i].Name == name {
			return &a.Providers[i], true
		}
	}
	return nil, false
}

// HasExplicitEndpoints reports whether the authorize, token and userinfo
// URLs are all overridden, so no tenant domain is needed to derive them
func (p *ProviderConfig) HasExplicitEndpoints() bool {
	return p.AuthURL != "" && p.TokenURL != "" && p.UserInfoURL != ""
}

// DSN returns the PostgreSQL connection string
func (p *PostgresConfig) DSN() string {
	if p.ConnectionString != "" {
		return p.ConnectionString
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}
