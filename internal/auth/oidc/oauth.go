package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/cvbuilder/internal/pkg/metrics"
)

// maxResponseBytes caps how much of a provider response is read
const maxResponseBytes = 1 << 20

// oauthClient holds what every adapter shares: the OAuth 2.0 client
// configuration, the provider's default scopes, and the bounded HTTP client
// used for every outbound call.
type oauthClient struct {
	provider      ProviderType
	displayName   string
	config        oauth2.Config
	defaultScopes []string
	authParams    map[string]string
	httpClient    *http.Client
}

func (c *oauthClient) Type() ProviderType {
	return c.provider
}

func (c *oauthClient) DisplayName() string {
	return c.displayName
}

// authorizationURL renders the authorization request. url.Values sorts its
// keys, so the result is deterministic for the same inputs.
func (c *oauthClient) authorizationURL(endpoint oauth2.Endpoint, state, redirectURI string, scopes []string) string {
	cfg := c.config
	cfg.Endpoint = endpoint
	cfg.RedirectURL = redirectURI
	cfg.Scopes = mergeScopes(scopes, c.defaultScopes)

	opts := make([]oauth2.AuthCodeOption, 0, len(c.authParams))
	for k, v := range c.authParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return cfg.AuthCodeURL(state, opts...)
}

// exchangeCode performs the authorization code grant against endpoint
func (c *oauthClient) exchangeCode(ctx context.Context, endpoint oauth2.Endpoint, code, redirectURI string) (string, error) {
	cfg := c.config
	cfg.Endpoint = endpoint
	cfg.RedirectURL = redirectURI

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	start := time.Now()
	token, err := cfg.Exchange(ctx, code)
	metrics.RecordProviderCall(c.provider.String(), "exchange", time.Since(start), err)
	if err != nil {
		return "", c.exchangeError(err)
	}
	return token.AccessToken, nil
}

func (c *oauthClient) exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &ExchangeError{
			Provider:    c.provider,
			StatusCode:  status,
			Code:        retrieveErr.ErrorCode,
			Description: retrieveErr.ErrorDescription,
		}
	}
	if isTransportError(err) {
		return unavailable(c.provider, "exchange", err)
	}
	// Well-formed HTTP exchange with an unusable body, e.g. no access_token
	return &ExchangeError{Provider: c.provider, StatusCode: http.StatusOK, Description: err.Error()}
}

// getJSON issues an authenticated GET and decodes the JSON response into out.
// 401/403 mean the bearer credential was rejected; anything else that is not
// 2xx means the provider could not answer.
func (c *oauthClient) getJSON(ctx context.Context, operation, url, bearer string, out any) (err error) {
	start := time.Now()
	defer func() { metrics.RecordProviderCall(c.provider.String(), operation, time.Since(start), err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unavailable(c.provider, operation, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return invalidCredential(c.provider, "%s rejected token: status %d", operation, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return unavailable(c.provider, operation, fmt.Errorf("status %d", resp.StatusCode))
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return unavailable(c.provider, operation, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// mergeScopes returns the requested scopes followed by the defaults, without
// duplicates or blanks
func mergeScopes(requested, defaults []string) []string {
	seen := make(map[string]bool, len(requested)+len(defaults))
	out := make([]string, 0, len(requested)+len(defaults))
	for _, list := range [][]string{requested, defaults} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
