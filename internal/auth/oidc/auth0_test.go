package oidc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/cvbuilder/internal/config"
)

func TestAuth0Provider_ValidateToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sub":            "auth0|abc",
			"email":          "grace@example.com",
			"email_verified": true,
			"nickname":       "grace",
			"picture":        "https://example.com/g.png",
		})
	}))
	defer srv.Close()

	p := NewAuth0Provider(config.ProviderConfig{
		Name:        "auth0",
		ClientID:    testClientID,
		Domain:      "tenant.example.com",
		UserInfoURL: srv.URL,
	}, testHTTPClient())

	info, err := p.ValidateToken(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "auth0|abc", info.Subject)
	assert.Equal(t, "grace@example.com", info.Email)
	assert.True(t, info.EmailVerified)
	assert.Equal(t, "grace", info.Name)
	assert.Equal(t, "good-token", info.AccessToken)
	assert.Equal(t, "auth0|abc", info.RawClaims["sub"])

	_, err = p.ValidateToken(context.Background(), "bad-token")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = p.ValidateToken(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAuth0Provider_URLs(t *testing.T) {
	p := NewAuth0Provider(config.ProviderConfig{Name: "auth0", ClientID: testClientID, Domain: "https://tenant.example.com/"}, testHTTPClient())

	assert.Equal(t, "https://tenant.example.com/authorize", p.endpoint.AuthURL)
	assert.Equal(t, "https://tenant.example.com/oauth/token", p.endpoint.TokenURL)
	assert.Equal(t, "https://tenant.example.com/userinfo", p.userInfoURL)

	got, err := p.AuthorizationURL(context.Background(), "xyz", "https://app.example.com/cb", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://tenant.example.com/authorize?client_id=client-123&prompt=login"+
		"&redirect_uri=https%3A%2F%2Fapp.example.com%2Fcb&response_type=code&scope=openid+profile+email&state=xyz", got)
}
