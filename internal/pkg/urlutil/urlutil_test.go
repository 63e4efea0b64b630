package urlutil

import (
	"testing"
)

func TestOIDCDiscoveryURL(t *testing.T) {
	tests := []struct {
		name   string
		issuer string
		want   string
	}{
		{
			name:   "basic issuer",
			issuer: "https://accounts.google.com",
			want:   "https://accounts.google.com/.well-known/openid-configuration",
		},
		{
			name:   "issuer with trailing slash",
			issuer: "https://accounts.google.com/",
			want:   "https://accounts.google.com/.well-known/openid-configuration",
		},
		{
			name:   "issuer with multiple trailing slashes",
			issuer: "https://example.com///",
			want:   "https://example.com/.well-known/openid-configuration",
		},
		{
			name:   "tenant issuer with path",
			issuer: "https://login.microsoftonline.com/common/v2.0",
			want:   "https://login.microsoftonline.com/common/v2.0/.well-known/openid-configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OIDCDiscoveryURL(tt.issuer)
			if got != tt.want {
				t.Errorf("OIDCDiscoveryURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTenantBaseURL(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"tenant.example.com", "https://tenant.example.com"},
		{"https://tenant.example.com/", "https://tenant.example.com"},
		{"http://127.0.0.1:8080", "http://127.0.0.1:8080"},
		{" tenant.example.com// ", "https://tenant.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			if got := TenantBaseURL(tt.domain); got != tt.want {
				t.Errorf("TenantBaseURL(%q) = %v, want %v", tt.domain, got, tt.want)
			}
		})
	}
}
