package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestJWTRoundTrip(t *testing.T) {
	mgr := NewJWTManager(DefaultJWTConfig("test-secret"))

	token, err := mgr.GenerateToken("client-1", "appraiser")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := mgr.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.ClientID != "client-1" || claims.ClientName != "appraiser" {
		t.Errorf("claims = %q/%q, want client-1/appraiser", claims.ClientID, claims.ClientName)
	}
}

func TestJWTExpired(t *testing.T) {
	mgr := NewJWTManager(DefaultJWTConfig("test-secret"))

	token, err := mgr.GenerateTokenWithExpiry("client-1", "", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateTokenWithExpiry: %v", err)
	}

	if _, err := mgr.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("err = %v, want ErrExpiredToken", err)
	}
	if !mgr.IsTokenExpired(token) {
		t.Error("IsTokenExpired should report true")
	}

	// Refresh should still work from an expired but well-formed token.
	refreshed, err := mgr.RefreshToken(token)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if _, err := mgr.ValidateToken(refreshed); err != nil {
		t.Errorf("refreshed token should validate, got %v", err)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	mgr := NewJWTManager(DefaultJWTConfig("secret-a"))
	other := NewJWTManager(DefaultJWTConfig("secret-b"))

	token, err := mgr.GenerateToken("client-1", "")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("token signed with a different secret should not validate")
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareAPIKey(t *testing.T) {
	mw := NewMiddleware([]string{"key-1"}, nil, testLogger())
	h := mw.Handler(okHandler())

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"valid key", "key-1", http.StatusOK},
		{"wrong key", "nope", http.StatusUnauthorized},
		{"missing key", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/estimate", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestMiddlewareBearerToken(t *testing.T) {
	mgr := NewJWTManager(DefaultJWTConfig("test-secret"))
	mw := NewMiddleware(nil, mgr, testLogger())

	var got *ClientInfo
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClientFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token, err := mgr.GenerateToken("client-7", "dealer")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/estimate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil || got.ID != "client-7" {
		t.Errorf("client in context = %+v, want ID client-7", got)
	}
}

func TestMiddlewareSkipPaths(t *testing.T) {
	mw := NewMiddleware([]string{"key-1"}, nil, testLogger())
	h := mw.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health check should bypass auth, got %d", rec.Code)
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	mw := NewMiddleware(nil, nil, testLogger())
	h := mw.Handler(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/estimate", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("unconfigured auth should pass requests through, got %d", rec.Code)
	}
}
