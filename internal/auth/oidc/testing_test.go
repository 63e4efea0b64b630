package oidc

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testClientID = "client-123"

// keyServer serves a JWKS document for a set of in-test RSA keys
type keyServer struct {
	*httptest.Server

	mu       sync.Mutex
	keys     map[string]*rsa.PrivateKey
	status   int
	requests atomic.Int32
}

func newKeyServer(t *testing.T, kids ...string) *keyServer {
	t.Helper()
	ks := &keyServer{keys: map[string]*rsa.PrivateKey{}, status: http.StatusOK}
	for _, kid := range kids {
		ks.addKey(t, kid)
	}
	ks.Server = httptest.NewServer(http.HandlerFunc(ks.serveJWKS))
	t.Cleanup(ks.Close)
	return ks
}

func (ks *keyServer) addKey(t *testing.T, kid string) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ks.mu.Lock()
	ks.keys[kid] = key
	ks.mu.Unlock()
	return key
}

func (ks *keyServer) setStatus(status int) {
	ks.mu.Lock()
	ks.status = status
	ks.mu.Unlock()
}

func (ks *keyServer) serveJWKS(w http.ResponseWriter, _ *http.Request) {
	ks.requests.Add(1)
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.status != http.StatusOK {
		w.WriteHeader(ks.status)
		return
	}

	var doc struct {
		Keys []map[string]string `json:"keys"`
	}
	for kid, key := range ks.keys {
		doc.Keys = append(doc.Keys, map[string]string{
			"kid": kid,
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// sign produces an RS256 token with the given kid
func (ks *keyServer) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	ks.mu.Lock()
	key := ks.keys[kid]
	ks.mu.Unlock()
	require.NotNil(t, key, "no key %q", kid)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func idTokenClaims(issuer string, now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            issuer,
		"aud":            testClientID,
		"sub":            "subject-1",
		"email":          "Ada@Example.com",
		"email_verified": true,
		"name":           "Ada Lovelace",
		"picture":        "https://example.com/ada.png",
		"locale":         "en",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func testHTTPClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Second}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
