package oidc

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/cvbuilder/internal/config"
)

// GenericOIDCProvider implements Provider for any issuer that publishes an
// OpenID discovery document. Endpoints and signing keys come from discovery
// unless overridden in config.
type GenericOIDCProvider struct {
	oauthClient
	issuer    string
	overrides config.ProviderConfig
	discovery *DiscoveryCache
	verifier  idTokenVerifier

	mu   sync.Mutex
	jwks *JWKSCache
}

// NewGenericOIDCProvider creates a discovery-based adapter registered under
// providerType
func NewGenericOIDCProvider(providerType ProviderType, cfg config.ProviderConfig, discovery *DiscoveryCache, httpClient *http.Client) *GenericOIDCProvider {
	issuer := strings.TrimSuffix(cfg.Issuer, "/")
	return &GenericOIDCProvider{
		oauthClient: oauthClient{
			provider:      providerType,
			displayName:   valueOr(cfg.DisplayName, defaultDisplayNames[providerType]),
			config:        newOAuthConfig(cfg),
			defaultScopes: scopesOr(cfg.Scopes, "openid", "email", "profile"),
			httpClient:    httpClient,
		},
		issuer:    issuer,
		overrides: cfg,
		discovery: discovery,
		verifier: idTokenVerifier{
			provider: providerType,
			clientID: cfg.ClientID,
			issuers:  []string{issuer},
		},
	}
}

func (p *GenericOIDCProvider) AuthorizationURL(ctx context.Context, state, redirectURI string, scopes []string) (string, error) {
	endpoint, err := p.endpoint(ctx)
	if err != nil {
		return "", err
	}
	return p.authorizationURL(endpoint, state, redirectURI, scopes), nil
}

func (p *GenericOIDCProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	endpoint, err := p.endpoint(ctx)
	if err != nil {
		return "", err
	}
	return p.exchangeCode(ctx, endpoint, code, redirectURI)
}

// ValidateToken verifies an ID token against the discovered JWKS. The
// discovered issuer is accepted alongside the configured one.
func (p *GenericOIDCProvider) ValidateToken(ctx context.Context, token string) (*UserInfo, error) {
	jwks, issuers, err := p.keys(ctx)
	if err != nil {
		return nil, err
	}

	verifier := p.verifier
	verifier.issuers = issuers
	claims, err := verifier.verify(ctx, token, jwks)
	if err != nil {
		return nil, err
	}
	return userInfoFromClaims(claims), nil
}

func (p *GenericOIDCProvider) endpoint(ctx context.Context) (oauth2.Endpoint, error) {
	endpoint := oauth2.Endpoint{
		AuthURL:   p.overrides.AuthURL,
		TokenURL:  p.overrides.TokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
	if endpoint.AuthURL != "" && endpoint.TokenURL != "" {
		return endpoint, nil
	}

	doc, err := p.discovery.Get(ctx, p.provider, p.issuer)
	if err != nil {
		return oauth2.Endpoint{}, err
	}
	endpoint.AuthURL = valueOr(endpoint.AuthURL, doc.AuthorizationEndpoint)
	endpoint.TokenURL = valueOr(endpoint.TokenURL, doc.TokenEndpoint)
	return endpoint, nil
}

// keys returns the JWKS cache, created on first use once the JWKS URL is known
func (p *GenericOIDCProvider) keys(ctx context.Context) (*JWKSCache, []string, error) {
	issuers := p.verifier.issuers
	jwksURL := p.overrides.JWKSURL
	if jwksURL == "" {
		doc, err := p.discovery.Get(ctx, p.provider, p.issuer)
		if err != nil {
			return nil, nil, err
		}
		jwksURL = doc.JWKSURI
		if doc.Issuer != p.issuer {
			issuers = append([]string{doc.Issuer}, issuers...)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.jwks == nil {
		p.jwks = NewJWKSCache(p.provider, jwksURL, defaultJWKSTTL, p.httpClient)
	}
	return p.jwks, issuers, nil
}
