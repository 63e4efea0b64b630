package oidc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/cvbuilder/internal/config"
	"github.com/devilmonastery/cvbuilder/internal/pkg/metrics"
)

func TestMergeScopes(t *testing.T) {
	defaults := []string{"openid", "email", "profile"}

	assert.Equal(t, defaults, mergeScopes(nil, defaults))
	assert.Equal(t, []string{"calendar", "openid", "email", "profile"}, mergeScopes([]string{"calendar", "openid", ""}, defaults))
	assert.Equal(t, []string{"a", "b"}, mergeScopes([]string{"a", "a", "b"}, nil))
}

func TestExchangeCode(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"code":          r.PostForm.Get("code"),
			"redirect_uri":  r.PostForm.Get("redirect_uri"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
		}

		switch r.PostForm.Get("code") {
		case "good":
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "at-1", "token_type": "Bearer", "expires_in": 3600})
		case "empty":
			writeJSON(w, http.StatusOK, map[string]any{"token_type": "Bearer"})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "code expired"})
		}
	}))
	defer srv.Close()

	p := NewAuth0Provider(config.ProviderConfig{
		Name:         "auth0",
		ClientID:     testClientID,
		ClientSecret: "shh",
		Domain:       "tenant.example.com",
		TokenURL:     srv.URL,
	}, testHTTPClient())

	t.Run("success", func(t *testing.T) {
		token, err := p.ExchangeCode(context.Background(), "good", "https://app.example.com/cb")
		require.NoError(t, err)
		assert.Equal(t, "at-1", token)
		assert.Equal(t, map[string]string{
			"grant_type":    "authorization_code",
			"code":          "good",
			"redirect_uri":  "https://app.example.com/cb",
			"client_id":     testClientID,
			"client_secret": "shh",
		}, gotForm)
	})

	t.Run("provider error", func(t *testing.T) {
		token, err := p.ExchangeCode(context.Background(), "stale", "https://app.example.com/cb")
		assert.Empty(t, token)
		require.ErrorIs(t, err, ErrProviderExchange)

		var exErr *ExchangeError
		require.True(t, errors.As(err, &exErr))
		assert.Equal(t, http.StatusBadRequest, exErr.StatusCode)
		assert.Equal(t, "invalid_grant", exErr.Code)
		assert.Equal(t, "code expired", exErr.Description)
		assert.Equal(t, ProviderAuth0, exErr.Provider)
	})

	t.Run("missing access token", func(t *testing.T) {
		_, err := p.ExchangeCode(context.Background(), "empty", "https://app.example.com/cb")
		assert.ErrorIs(t, err, ErrProviderExchange)
	})
}

func TestExchangeCode_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewAuth0Provider(config.ProviderConfig{Name: "auth0", ClientID: testClientID, Domain: "x", TokenURL: url}, testHTTPClient())
	_, err := p.ExchangeCode(context.Background(), "code", "https://app.example.com/cb")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.NotErrorIs(t, err, ErrProviderExchange)
}

func TestGetJSON_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) }, ErrInvalidCredential},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) }, ErrInvalidCredential},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }, ErrProviderUnavailable},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("{not json")) }, ErrProviderUnavailable},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			writeJSON(w, http.StatusOK, map[string]any{"sub": "late"})
		}, ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := &oauthClient{provider: ProviderAuth0, httpClient: &http.Client{Timeout: 100 * time.Millisecond}}
			var out map[string]any
			err := c.getJSON(context.Background(), "userinfo", srv.URL, "tok", &out)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetJSON_DeadlineKeepsCause(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	timeouts := metrics.ProviderCalls.WithLabelValues("auth0", "userinfo", "timeout")
	before := testutil.ToFloat64(timeouts)

	c := &oauthClient{provider: ProviderAuth0, httpClient: testHTTPClient()}
	var out map[string]any
	err := c.getJSON(ctx, "userinfo", srv.URL, "tok", &out)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, before+1, testutil.ToFloat64(timeouts))
}
