// Package auth provides authentication middleware for API key and JWT-based
// client authentication.
package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// APIKeyHeader is the request header for API key authentication
	APIKeyHeader = "X-API-Key"

	// clientContextKey is the context key for storing client info
	clientContextKey contextKey = "client"
)

// ClientInfo holds the identity extracted from authentication
type ClientInfo struct {
	ID   string
	Name string
}

// Middleware validates API keys or bearer tokens on incoming requests.
// Requests matching a skip path pass through unauthenticated.
type Middleware struct {
	apiKeys   map[string]bool
	jwt       *JWTManager
	skipPaths map[string]bool
	logger    *slog.Logger
}

// NewMiddleware creates authentication middleware. The JWT manager may be
// nil, in which case only API keys are accepted. An empty key list with a
// nil manager disables authentication entirely.
func NewMiddleware(apiKeys []string, jwt *JWTManager, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	keys := make(map[string]bool, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = true
		}
	}
	return &Middleware{
		apiKeys: keys,
		jwt:     jwt,
		skipPaths: map[string]bool{
			"/healthz": true,
			"/readyz":  true,
		},
		logger: logger,
	}
}

// WithSkipPaths adds paths that bypass authentication
func (m *Middleware) WithSkipPaths(paths ...string) *Middleware {
	for _, p := range paths {
		m.skipPaths[p] = true
	}
	return m
}

// Enabled reports whether any credential source is configured.
func (m *Middleware) Enabled() bool {
	return len(m.apiKeys) > 0 || m.jwt != nil
}

// Handler returns the HTTP middleware.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() || m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
			if !m.apiKeys[key] {
				m.deny(w, r, "invalid API key")
				return
			}
			ctx := context.WithValue(r.Context(), clientContextKey, &ClientInfo{Name: "api-key"})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if token, ok := bearerToken(r); ok {
			if m.jwt == nil {
				m.deny(w, r, "bearer tokens not accepted")
				return
			}
			claims, err := m.jwt.ValidateToken(token)
			if err != nil {
				m.deny(w, r, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), clientContextKey, &ClientInfo{
				ID:   claims.ClientID,
				Name: claims.ClientName,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		m.deny(w, r, "missing credentials")
	})
}

func (m *Middleware) deny(w http.ResponseWriter, r *http.Request, reason string) {
	m.logger.Warn("request rejected",
		slog.String("path", r.URL.Path),
		slog.String("remote", r.RemoteAddr),
		slog.String("reason", reason))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": reason})
}

// bearerToken extracts a bearer token from the Authorization header
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// ClientFromContext extracts client info from context
func ClientFromContext(ctx context.Context) (*ClientInfo, bool) {
	client, ok := ctx.Value(clientContextKey).(*ClientInfo)
	return client, ok
}
