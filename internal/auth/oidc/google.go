package oidc

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/cvbuilder/internal/config"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
	googleJWKSURL  = "https://www.googleapis.com/oauth2/v3/certs"
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// GoogleProvider verifies Google ID tokens locally against Google's JWKS
type GoogleProvider struct {
	oauthClient
	endpoint oauth2.Endpoint
	verifier idTokenVerifier
	jwks     *JWKSCache
}

// NewGoogleProvider creates a Google adapter from its config block
func NewGoogleProvider(cfg config.ProviderConfig, httpClient *http.Client) *GoogleProvider {
	jwksURL := valueOr(cfg.JWKSURL, googleJWKSURL)
	return &GoogleProvider{
		oauthClient: oauthClient{
			provider:      ProviderGoogle,
			displayName:   valueOr(cfg.DisplayName, defaultDisplayNames[ProviderGoogle]),
			config:        newOAuthConfig(cfg),
			defaultScopes: scopesOr(cfg.Scopes, "openid", "email", "profile"),
			authParams:    map[string]string{"access_type": "offline", "prompt": "consent"},
			httpClient:    httpClient,
		},
		endpoint: oauth2.Endpoint{
			AuthURL:   valueOr(cfg.AuthURL, googleAuthURL),
			TokenURL:  valueOr(cfg.TokenURL, googleTokenURL),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		verifier: idTokenVerifier{
			provider: ProviderGoogle,
			clientID: cfg.ClientID,
			issuers:  googleIssuers,
		},
		jwks: NewJWKSCache(ProviderGoogle, jwksURL, defaultJWKSTTL, httpClient),
	}
}

func (p *GoogleProvider) AuthorizationURL(_ context.Context, state, redirectURI string, scopes []string) (string, error) {
	return p.authorizationURL(p.endpoint, state, redirectURI, scopes), nil
}

func (p *GoogleProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	return p.exchangeCode(ctx, p.endpoint, code, redirectURI)
}

// ValidateToken verifies a Google ID token
func (p *GoogleProvider) ValidateToken(ctx context.Context, token string) (*UserInfo, error) {
	claims, err := p.verifier.verify(ctx, token, p.jwks)
	if err != nil {
		return nil, err
	}
	return userInfoFromClaims(claims), nil
}

// newOAuthConfig maps a provider config block onto an oauth2.Config. The
// endpoint is filled in per call since discovery may supply it lazily.
func newOAuthConfig(cfg config.ProviderConfig) oauth2.Config {
	return oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}
}

func valueOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// scopesOr returns the configured scopes, which replace the defaults when set
func scopesOr(configured []string, defaults ...string) []string {
	if len(configured) > 0 {
		return configured
	}
	return defaults
}
