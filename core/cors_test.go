package core

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newCORSTestHandler(t *testing.T, cfg *CORSConfig) http.Handler {
	t.Helper()
	return CORSMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORSMiddleware_DisabledPassesThrough(t *testing.T) {
	h := newCORSTestHandler(t, &CORSConfig{Enabled: false})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header when disabled, got %q", got)
	}
}

func TestCORSMiddleware_AllowsExactOrigin(t *testing.T) {
	h := newCORSTestHandler(t, &CORSConfig{Enabled: true, AllowedOrigins: []string{"https://example.com"}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Fatalf("expected origin echoed back, got %q", got)
	}
}

func TestCORSMiddleware_RejectsUnlistedOrigin(t *testing.T) {
	h := newCORSTestHandler(t, &CORSConfig{Enabled: true, AllowedOrigins: []string{"https://example.com"}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header for unlisted origin, got %q", got)
	}
}

func TestCORSMiddleware_PreflightReturnsNoContent(t *testing.T) {
	h := newCORSTestHandler(t, &CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}})
	req := httptest.NewRequest(http.MethodOptions, "/sendMsg", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
}

func TestOriginAllowed_WildcardSubdomain(t *testing.T) {
	allowed := []string{"https://*.example.com"}

	if !originAllowed("https://api.example.com", allowed) {
		t.Fatal("expected subdomain to match")
	}
	if originAllowed("https://example.com", allowed) {
		t.Fatal("expected bare root domain not to match a subdomain wildcard")
	}
	if originAllowed("https://api.other.com", allowed) {
		t.Fatal("expected a different domain not to match")
	}
}

func TestOriginAllowed_WildcardPort(t *testing.T) {
	allowed := []string{"http://localhost:*"}

	if !originAllowed("http://localhost:5173", allowed) {
		t.Fatal("expected any localhost port to match")
	}
	if originAllowed("http://otherhost:5173", allowed) {
		t.Fatal("expected a different host not to match")
	}
}

func TestOriginAllowed_EmptyOriginNeverMatches(t *testing.T) {
	if originAllowed("", []string{"*"}) {
		t.Fatal("expected an empty (same-origin) Origin header to never match")
	}
}
