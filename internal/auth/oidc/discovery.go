package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/devilmonastery/cvbuilder/internal/pkg/metrics"
	"github.com/devilmonastery/cvbuilder/internal/pkg/urlutil"
)

const defaultDiscoveryTTL = 24 * time.Hour

// DiscoveryDocument is the subset of the OpenID Provider metadata we use
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// DiscoveryCache caches discovery documents by issuer
type DiscoveryCache struct {
	httpClient *http.Client
	docs       *gocache.Cache
	group      singleflight.Group
}

// NewDiscoveryCache creates a discovery cache with the given TTL
func NewDiscoveryCache(ttl time.Duration, httpClient *http.Client) *DiscoveryCache {
	if ttl <= 0 {
		ttl = defaultDiscoveryTTL
	}
	return &DiscoveryCache{
		httpClient: httpClient,
		docs:       gocache.New(ttl, time.Hour),
	}
}

// Get returns the discovery document for issuer, fetching it on a miss
func (c *DiscoveryCache) Get(ctx context.Context, provider ProviderType, issuer string) (*DiscoveryDocument, error) {
	if doc, ok := c.docs.Get(issuer); ok {
		metrics.CacheHits.WithLabelValues("discovery").Inc()
		return doc.(*DiscoveryDocument), nil
	}
	metrics.CacheMisses.WithLabelValues("discovery").Inc()

	ch := c.group.DoChan(issuer, func() (any, error) {
		doc, err := c.fetch(context.WithoutCancel(ctx), provider, issuer)
		if err != nil {
			return nil, err
		}
		c.docs.SetDefault(issuer, doc)
		return doc, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*DiscoveryDocument), nil
	case <-ctx.Done():
		return nil, unavailable(provider, "discovery", ctx.Err())
	}
}

func (c *DiscoveryCache) fetch(ctx context.Context, provider ProviderType, issuer string) (doc *DiscoveryDocument, err error) {
	start := time.Now()
	defer func() { metrics.RecordProviderCall(provider.String(), "discovery", time.Since(start), err) }()

	url := urlutil.OIDCDiscoveryURL(issuer)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(provider, "discovery", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(provider, "discovery", fmt.Errorf("status %d", resp.StatusCode))
	}

	doc = &DiscoveryDocument{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(doc); err != nil {
		return nil, unavailable(provider, "discovery", fmt.Errorf("decode: %w", err))
	}

	if doc.Issuer == "" || doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" || doc.JWKSURI == "" {
		return nil, unavailable(provider, "discovery", fmt.Errorf("incomplete discovery document from %s", issuer))
	}
	return doc, nil
}
