package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/cvbuilder/internal/config"
)

const (
	githubAuthURL   = "https://github.com/login/oauth/authorize"
	githubTokenURL  = "https://github.com/login/oauth/access_token"
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

// GitHubProvider introspects OAuth access tokens against the GitHub REST API.
// GitHub issues no ID tokens.
type GitHubProvider struct {
	oauthClient
	endpoint  oauth2.Endpoint
	userURL   string
	emailsURL string
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// NewGitHubProvider creates a GitHub adapter
func NewGitHubProvider(cfg config.ProviderConfig, httpClient *http.Client) *GitHubProvider {
	return &GitHubProvider{
		oauthClient: oauthClient{
			provider:      ProviderGitHub,
			displayName:   valueOr(cfg.DisplayName, defaultDisplayNames[ProviderGitHub]),
			config:        newOAuthConfig(cfg),
			defaultScopes: scopesOr(cfg.Scopes, "read:user", "user:email"),
			authParams:    map[string]string{"allow_signup": "true"},
			httpClient:    httpClient,
		},
		endpoint: oauth2.Endpoint{
			AuthURL:   valueOr(cfg.AuthURL, githubAuthURL),
			TokenURL:  valueOr(cfg.TokenURL, githubTokenURL),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		userURL:   valueOr(cfg.UserInfoURL, githubUserURL),
		emailsURL: valueOr(cfg.EmailsURL, githubEmailsURL),
	}
}

func (p *GitHubProvider) AuthorizationURL(_ context.Context, state, redirectURI string, scopes []string) (string, error) {
	return p.authorizationURL(p.endpoint, state, redirectURI, scopes), nil
}

func (p *GitHubProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	return p.exchangeCode(ctx, p.endpoint, code, redirectURI)
}

// ValidateToken resolves an access token through /user. The public profile
// email is often empty, so the primary verified address from /user/emails
// fills it in.
func (p *GitHubProvider) ValidateToken(ctx context.Context, token string) (*UserInfo, error) {
	if strings.TrimSpace(token) == "" {
		return nil, invalidCredential(p.provider, "empty token")
	}

	user := map[string]any{}
	if err := p.getJSON(ctx, "user", p.userURL, token, &user); err != nil {
		return nil, err
	}

	// Decoded with UseNumber, so the numeric id keeps its exact digits
	var subject string
	switch id := user["id"].(type) {
	case json.Number:
		subject = id.String()
	case string:
		subject = id
	}
	if subject == "" {
		return nil, unavailable(p.provider, "user", fmt.Errorf("response has no id"))
	}

	name := stringClaim(user, "name")
	if name == "" {
		name = stringClaim(user, "login")
	}

	info := &UserInfo{
		Subject:     subject,
		Email:       stringClaim(user, "email"),
		Name:        name,
		Picture:     stringClaim(user, "avatar_url"),
		RawClaims:   user,
		AccessToken: token,
	}

	// Only /user decides whether the token is valid. A grant without
	// user:email leaves the email as the profile shows it, unverified.
	if emails, err := p.listEmails(ctx, token); err == nil {
		applyGitHubEmails(info, emails)
	}
	return info, nil
}

func (p *GitHubProvider) listEmails(ctx context.Context, token string) ([]githubEmail, error) {
	var emails []githubEmail
	if err := p.getJSON(ctx, "emails", p.emailsURL, token, &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

// applyGitHubEmails marks the profile email verified when GitHub says so, or
// picks the primary verified address when the profile has none
func applyGitHubEmails(info *UserInfo, emails []githubEmail) {
	if info.Email != "" {
		for _, e := range emails {
			if strings.EqualFold(e.Email, info.Email) {
				info.EmailVerified = e.Verified
				return
			}
		}
		return
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			info.Email = e.Email
			info.EmailVerified = true
			return
		}
	}
}
