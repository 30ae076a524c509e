// Package auth provides API key authentication as an "authentication"
// stage middleware.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/tjfontaine/stagehand/internal/di"
	"github.com/tjfontaine/stagehand/internal/httpmsg"
	"github.com/tjfontaine/stagehand/internal/middleware"
)

const (
	// Stage is the stage the middleware runs in.
	Stage = "authentication"
	// PrincipalName is the DI name of the authenticated principal.
	PrincipalName = "principal"
)

var (
	ErrMissingKey    = errors.New("missing Authorization header")
	ErrMalformedKey  = errors.New("invalid Authorization header format")
	ErrInvalidScheme = errors.New("unsupported authorization scheme")
	ErrInvalidKey    = errors.New("invalid API key")
)

// Key is a stored API key hash and the principal it identifies.
type Key struct {
	Hash      string
	Principal string
}

// Authenticator validates API keys against stored hashes. Keys can be
// replaced while requests are being served.
type Authenticator struct {
	mu   sync.RWMutex
	keys map[string]string // keyhash -> principal
}

// NewAuthenticator creates an authenticator for keys.
func NewAuthenticator(keys []Key) *Authenticator {
	a := &Authenticator{}
	a.SetKeys(keys)
	return a
}

// SetKeys replaces the known keys.
func (a *Authenticator) SetKeys(keys []Key) {
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[strings.ToLower(k.Hash)] = k.Principal
	}
	a.mu.Lock()
	a.keys = m
	a.mu.Unlock()
}

// Len returns the number of known keys.
func (a *Authenticator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys)
}

// ValidateAPIKey returns the principal for apiKey.
func (a *Authenticator) ValidateAPIKey(apiKey string) (string, error) {
	keyHash := HashAPIKey(apiKey)

	a.mu.RLock()
	defer a.mu.RUnlock()

	for hash, principal := range a.keys {
		if subtle.ConstantTimeCompare([]byte(keyHash), []byte(hash)) == 1 {
			return principal, nil
		}
	}
	return "", ErrInvalidKey
}

// ExtractAPIKey extracts a bearer token from the Authorization header.
func ExtractAPIKey(req *httpmsg.Request) (string, error) {
	header := req.HeaderMap().First("Authorization")
	if header == "" {
		return "", ErrMissingKey
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", ErrMalformedKey
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return "", ErrInvalidScheme
	}
	return parts[1], nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// Middleware rejects requests without a valid key with a 401 and binds the
// principal for later steps otherwise. mapping must be the engine's name
// mapping; nil means names are not rewritten.
func (a *Authenticator) Middleware(mapping di.Mapping) middleware.Middleware {
	if mapping == nil {
		mapping = di.Identity
	}
	requestName := mapping("request")
	enter := di.Fn(func(ctx context.Context, args di.Args) (any, error) {
		req := di.MustGet[*httpmsg.Request](args, requestName)
		key, err := ExtractAPIKey(req)
		if err == nil {
			var principal string
			if principal, err = a.ValidateAPIKey(key); err == nil {
				return di.Value{Name: PrincipalName, Value: principal}, nil
			}
		}
		res := httpmsg.NewResponse(http.StatusUnauthorized, httpmsg.WithStatusMessage(err.Error()))
		res.SetHeader("WWW-Authenticate", `Bearer realm="stagehand"`)
		return res, nil
	}, di.Named(requestName))
	return middleware.New(Stage, enter, di.Injectable{})
}
