package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"MultiDB/internal/config"
)

func corsRequest(t *testing.T, cfg config.CORSConfig, method, origin string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	h := withCORS(cfg, func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(method, "/api/index", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w, reached
}

func TestCORSEchoesConfiguredOrigin(t *testing.T) {
	cfg := config.CORSConfig{AllowOrigin: "http://localhost:3000"}
	w, _ := corsRequest(t, cfg, http.MethodGet, "http://localhost:3000")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin: %q", got)
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Fatalf("vary: %q", got)
	}
}

func TestCORSMatchesAgainstList(t *testing.T) {
	cfg := config.CORSConfig{AllowOrigin: "http://192.168.0.251:3000, http://cbs:3000"}

	w, _ := corsRequest(t, cfg, http.MethodGet, "http://cbs:3000")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://cbs:3000" {
		t.Fatalf("allow origin: %q", got)
	}

	w, _ = corsRequest(t, cfg, http.MethodGet, "http://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("blocked origin got allow header: %q", got)
	}
}

func TestCORSWildcardWithCredentials(t *testing.T) {
	cfg := config.CORSConfig{AllowOrigin: "*", AllowCredentials: true}
	w, _ := corsRequest(t, cfg, http.MethodGet, "http://localhost:3000")

	// credentialed wildcard must echo the concrete origin
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin: %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("allow credentials: %q", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	cfg := config.CORSConfig{AllowOrigin: "*"}
	w, reached := corsRequest(t, cfg, http.MethodOptions, "http://localhost:3000")

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status: %d", w.Code)
	}
	if reached {
		t.Fatal("preflight must not reach the handler")
	}
}
