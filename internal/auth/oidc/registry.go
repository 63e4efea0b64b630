package oidc

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/devilmonastery/cvbuilder/internal/config"
)

// Registry maps provider types to their adapters. It is built once at
// startup and never mutated, so concurrent reads need no locking.
type Registry struct {
	providers map[ProviderType]Provider
}

// NewRegistry builds one adapter per configured provider with a client id.
// Disabled blocks are skipped; an unknown provider name is an error.
func NewRegistry(cfg config.AuthConfig) (*Registry, error) {
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	discovery := NewDiscoveryCache(defaultDiscoveryTTL, httpClient)

	var providers []Provider
	for _, pc := range cfg.Providers {
		if pc.Disabled || pc.ClientID == "" {
			continue
		}

		pt, err := ParseProviderType(pc.Name)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", pc.Name, err)
		}

		switch pt {
		case ProviderGoogle:
			providers = append(providers, NewGoogleProvider(pc, httpClient))
		case ProviderAuth0:
			if pc.Domain == "" && !pc.HasExplicitEndpoints() {
				return nil, fmt.Errorf("provider %s: domain or explicit auth, token and userinfo URLs are required", pc.Name)
			}
			providers = append(providers, NewAuth0Provider(pc, httpClient))
		case ProviderGitHub:
			providers = append(providers, NewGitHubProvider(pc, httpClient))
		case ProviderMicrosoft:
			if pc.Issuer == "" {
				return nil, fmt.Errorf("provider %s: issuer is required for OIDC discovery", pc.Name)
			}
			providers = append(providers, NewGenericOIDCProvider(pt, pc, discovery, httpClient))
		}
	}

	return NewRegistryFromProviders(providers...), nil
}

// NewRegistryFromProviders builds a registry over ready-made adapters
func NewRegistryFromProviders(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[ProviderType]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Type()] = p
	}
	return r
}

// Get returns the adapter for providerType
func (r *Registry) Get(providerType ProviderType) (Provider, error) {
	pt := ProviderType(strings.ToLower(string(providerType)))
	if !pt.IsKnown() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, providerType)
	}
	p, ok := r.providers[pt]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, pt)
	}
	return p, nil
}

// IsAvailable reports whether an adapter is configured for providerType
func (r *Registry) IsAvailable(providerType ProviderType) bool {
	_, err := r.Get(providerType)
	return err == nil
}

// ListAvailable returns the configured provider types in sorted order
func (r *Registry) ListAvailable() []ProviderType {
	types := make([]ProviderType, 0, len(r.providers))
	for pt := range r.providers {
		types = append(types, pt)
	}
	slices.Sort(types)
	return types
}
