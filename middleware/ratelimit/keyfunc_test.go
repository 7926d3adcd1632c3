package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultKeyFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := DefaultKeyFunc("X-Client", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Client", " client-123 ")

	if got := fn(r); got != "client-123" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestClientIP_TrustProxyUsesFirstForwardedIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := ClientIP(r, true); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestClientIP_TrustProxyFallsBackToRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Real-IP", "9.9.9.9")

	if got := ClientIP(r, true); got != "9.9.9.9" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}
}

func TestClientIP_IgnoresProxyHeadersWhenUntrusted(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	r.Header.Set("X-Real-IP", "9.9.9.9")

	if got := ClientIP(r, false); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestClientIP_UnknownWhenNothingAvailable(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.RemoteAddr = ""

	if got := ClientIP(r, false); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}
