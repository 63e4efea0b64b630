package oidc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/cvbuilder/internal/config"
)

// newIssuer serves a discovery document pointing at ks for its keys
func newIssuer(t *testing.T, ks *keyServer, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		writeJSON(w, http.StatusOK, DiscoveryDocument{
			Issuer:                srv.URL,
			AuthorizationEndpoint: srv.URL + "/authorize",
			TokenEndpoint:         srv.URL + "/token",
			JWKSURI:               ks.URL,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenericOIDCProvider(t *testing.T) {
	ks := newKeyServer(t, "ms1")
	var hits atomic.Int32
	issuer := newIssuer(t, ks, &hits)

	discovery := NewDiscoveryCache(time.Hour, testHTTPClient())
	p := NewGenericOIDCProvider(ProviderMicrosoft, config.ProviderConfig{
		Name:     "microsoft",
		ClientID: testClientID,
		Issuer:   issuer.URL + "/",
	}, discovery, testHTTPClient())

	assert.Equal(t, ProviderMicrosoft, p.Type())
	assert.Equal(t, "Microsoft", p.DisplayName())

	authURL, err := p.AuthorizationURL(context.Background(), "s1", "https://app.example.com/cb", nil)
	require.NoError(t, err)
	assert.Contains(t, authURL, issuer.URL+"/authorize?")
	assert.Contains(t, authURL, "scope=openid+email+profile")

	claims := idTokenClaims(issuer.URL, time.Now())
	delete(claims, "name")
	claims["preferred_username"] = "ada@contoso.com"
	info, err := p.ValidateToken(context.Background(), ks.sign(t, "ms1", claims))
	require.NoError(t, err)
	assert.Equal(t, "subject-1", info.Subject)
	assert.Equal(t, "ada@contoso.com", info.Name)

	_, err = p.ValidateToken(context.Background(), ks.sign(t, "ms1", idTokenClaims("https://login.example.com", time.Now())))
	assert.ErrorIs(t, err, ErrInvalidCredential)

	assert.EqualValues(t, 1, hits.Load(), "discovery document should be cached")
}

func TestGenericOIDCProvider_DiscoveryUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewGenericOIDCProvider(ProviderMicrosoft, config.ProviderConfig{
		Name:     "microsoft",
		ClientID: testClientID,
		Issuer:   srv.URL,
	}, NewDiscoveryCache(time.Hour, testHTTPClient()), testHTTPClient())

	_, err := p.AuthorizationURL(context.Background(), "s", "https://app.example.com/cb", nil)
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = p.ValidateToken(context.Background(), "whatever")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestDiscoveryCache_ConcurrentMissesFetchOnce(t *testing.T) {
	ks := newKeyServer(t, "k")
	var hits atomic.Int32
	issuer := newIssuer(t, ks, &hits)
	cache := NewDiscoveryCache(time.Hour, testHTTPClient())

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := cache.Get(context.Background(), ProviderMicrosoft, issuer.URL)
			done <- err
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-done)
	}
	assert.LessOrEqual(t, hits.Load(), int32(10))
	assert.GreaterOrEqual(t, hits.Load(), int32(1))

	before := hits.Load()
	_, err := cache.Get(context.Background(), ProviderMicrosoft, issuer.URL)
	require.NoError(t, err)
	assert.Equal(t, before, hits.Load())
}
