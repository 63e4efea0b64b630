package urlutil

import (
	"fmt"
	"strings"
)

// OIDCDiscoveryURL builds the OIDC discovery document URL for the given issuer.
// Returns a URL like: {issuer}/.well-known/openid-configuration
// Ensures no double slashes by trimming trailing slash from issuer.
func OIDCDiscoveryURL(issuer string) string {
	issuer = strings.TrimRight(issuer, "/")
	return fmt.Sprintf("%s/.well-known/openid-configuration", issuer)
}

// TenantBaseURL turns a tenant domain such as "acme.eu.auth0.com" into a base
// URL without a trailing slash. An explicit http:// or https:// scheme is kept;
// anything else gets https://.
func TenantBaseURL(domain string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if strings.HasPrefix(domain, "https://") || strings.HasPrefix(domain, "http://") {
		return domain
	}
	return "https://" + domain
}
