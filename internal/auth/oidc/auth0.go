package oidc

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/cvbuilder/internal/config"
	"github.com/devilmonastery/cvbuilder/internal/pkg/urlutil"
)

// Auth0Provider introspects access tokens against the tenant's userinfo endpoint
type Auth0Provider struct {
	oauthClient
	endpoint    oauth2.Endpoint
	userInfoURL string
}

// NewAuth0Provider creates an Auth0 adapter for the configured tenant domain
func NewAuth0Provider(cfg config.ProviderConfig, httpClient *http.Client) *Auth0Provider {
	base := urlutil.TenantBaseURL(cfg.Domain)
	return &Auth0Provider{
		oauthClient: oauthClient{
			provider:      ProviderAuth0,
			displayName:   valueOr(cfg.DisplayName, defaultDisplayNames[ProviderAuth0]),
			config:        newOAuthConfig(cfg),
			defaultScopes: scopesOr(cfg.Scopes, "openid", "profile", "email"),
			authParams:    map[string]string{"prompt": "login"},
			httpClient:    httpClient,
		},
		endpoint: oauth2.Endpoint{
			AuthURL:   valueOr(cfg.AuthURL, base+"/authorize"),
			TokenURL:  valueOr(cfg.TokenURL, base+"/oauth/token"),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		userInfoURL: valueOr(cfg.UserInfoURL, base+"/userinfo"),
	}
}

func (p *Auth0Provider) AuthorizationURL(_ context.Context, state, redirectURI string, scopes []string) (string, error) {
	return p.authorizationURL(p.endpoint, state, redirectURI, scopes), nil
}

func (p *Auth0Provider) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	return p.exchangeCode(ctx, p.endpoint, code, redirectURI)
}

// ValidateToken resolves an access token through /userinfo
func (p *Auth0Provider) ValidateToken(ctx context.Context, token string) (*UserInfo, error) {
	if strings.TrimSpace(token) == "" {
		return nil, invalidCredential(p.provider, "empty token")
	}

	claims := map[string]any{}
	if err := p.getJSON(ctx, "userinfo", p.userInfoURL, token, &claims); err != nil {
		return nil, err
	}

	info := userInfoFromClaims(claims)
	if info.Subject == "" {
		return nil, unavailable(p.provider, "userinfo", fmt.Errorf("response has no sub"))
	}
	info.AccessToken = token
	return info, nil
}
