package oidc

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/devilmonastery/cvbuilder/internal/pkg/metrics"
)

const (
	defaultJWKSTTL = time.Hour

	// minJWKSRefresh bounds how often an unknown kid may force a refetch
	minJWKSRefresh = 30 * time.Second
)

// JWKSCache caches the RSA signing keys published at a JWKS endpoint
type JWKSCache struct {
	url        string
	provider   ProviderType
	httpClient *http.Client
	keys       *gocache.Cache
	group      singleflight.Group

	mu          sync.Mutex
	lastRefresh time.Time
}

// NewJWKSCache creates a cache for the keys at url
func NewJWKSCache(provider ProviderType, url string, ttl time.Duration, httpClient *http.Client) *JWKSCache {
	if ttl <= 0 {
		ttl = defaultJWKSTTL
	}
	return &JWKSCache{
		url:        url,
		provider:   provider,
		httpClient: httpClient,
		keys:       gocache.New(ttl, 2*ttl),
	}
}

// GetKey returns the public key for kid. An unknown kid triggers one refresh
// in case the provider rotated its keys.
func (j *JWKSCache) GetKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := j.keys.Get(kid); ok {
		metrics.CacheHits.WithLabelValues("jwks").Inc()
		return key.(*rsa.PublicKey), nil
	}
	metrics.CacheMisses.WithLabelValues("jwks").Inc()

	if !j.refreshAllowed() {
		return nil, invalidCredential(j.provider, "signing key %q not found", kid)
	}
	if err := j.refresh(ctx); err != nil {
		return nil, err
	}

	if key, ok := j.keys.Get(kid); ok {
		return key.(*rsa.PublicKey), nil
	}
	return nil, invalidCredential(j.provider, "signing key %q not found", kid)
}

func (j *JWKSCache) refreshAllowed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.keys.ItemCount() == 0 || time.Since(j.lastRefresh) >= minJWKSRefresh
}

// refresh collapses concurrent fetches into one. The fetch is detached from
// the first caller's cancellation so other waiters still get the result.
func (j *JWKSCache) refresh(ctx context.Context) error {
	ch := j.group.DoChan(j.url, func() (any, error) {
		keys, err := j.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		for kid, key := range keys {
			j.keys.SetDefault(kid, key)
		}
		j.mu.Lock()
		j.lastRefresh = time.Now()
		j.mu.Unlock()
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return unavailable(j.provider, "jwks", ctx.Err())
	}
}

func (j *JWKSCache) fetch(ctx context.Context) (keys map[string]*rsa.PublicKey, err error) {
	start := time.Now()
	defer func() { metrics.RecordProviderCall(j.provider.String(), "jwks", time.Since(start), err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS request: %w", err)
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(j.provider, "jwks", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(j.provider, "jwks", fmt.Errorf("status %d", resp.StatusCode))
	}

	var set struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&set); err != nil {
		return nil, unavailable(j.provider, "jwks", fmt.Errorf("decode: %w", err))
	}

	keys = make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if pub, ok := k.rsaPublicKey(); ok {
			keys[k.Kid] = pub
		}
	}
	if len(keys) == 0 {
		return nil, unavailable(j.provider, "jwks", fmt.Errorf("no usable RSA keys at %s", j.url))
	}
	return keys, nil
}

type jsonWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jsonWebKey) rsaPublicKey() (*rsa.PublicKey, bool) {
	if k.Kty != "RSA" || k.Kid == "" || (k.Use != "" && k.Use != "sig") {
		return nil, false
	}
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, false
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil || len(e) == 0 || len(e) > 4 {
		return nil, false
	}

	var exp int
	for _, b := range e {
		exp = exp<<8 | int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: exp}, true
}
