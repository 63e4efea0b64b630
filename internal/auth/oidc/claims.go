package oidc

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// clockSkew is the leeway allowed on exp, nbf and iat
const clockSkew = 30 * time.Second

// idTokenVerifier checks signed OpenID Connect ID tokens: RS256 signature
// against the provider's JWKS, audience, expiry and an issuer allow-list
type idTokenVerifier struct {
	provider ProviderType
	clientID string
	issuers  []string
	now      func() time.Time
}

func (v *idTokenVerifier) verify(ctx context.Context, raw string, keys *JWKSCache) (jwt.MapClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, invalidCredential(v.provider, "empty token")
	}

	now := v.now
	if now == nil {
		now = time.Now
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(now),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, invalidCredential(v.provider, "token header has no kid")
		}
		return keys.GetKey(ctx, kid)
	})
	if err != nil {
		// Key fetch failures are the provider's fault, not the caller's
		if errors.Is(err, ErrProviderUnavailable) {
			return nil, err
		}
		return nil, invalidCredential(v.provider, "%v", err)
	}

	iss, _ := claims.GetIssuer()
	if !slices.Contains(v.issuers, iss) {
		return nil, invalidCredential(v.provider, "unexpected issuer %q", iss)
	}
	if sub, _ := claims.GetSubject(); sub == "" {
		return nil, invalidCredential(v.provider, "token has no subject")
	}
	return claims, nil
}

// userInfoFromClaims maps standard OIDC claims onto UserInfo
func userInfoFromClaims(claims map[string]any) *UserInfo {
	name := stringClaim(claims, "name")
	if name == "" {
		name = stringClaim(claims, "preferred_username")
	}
	if name == "" {
		name = stringClaim(claims, "nickname")
	}

	return &UserInfo{
		Subject:       stringClaim(claims, "sub"),
		Email:         stringClaim(claims, "email"),
		Name:          name,
		Picture:       stringClaim(claims, "picture"),
		Locale:        stringClaim(claims, "locale"),
		EmailVerified: boolClaim(claims, "email_verified"),
		RawClaims:     claims,
	}
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

// boolClaim accepts JSON booleans and the "true" strings some providers send
func boolClaim(claims map[string]any, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}
