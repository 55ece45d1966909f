package rpc

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func limitedHandler(t *testing.T, cfg RateLimit) http.Handler {
	t.Helper()
	limiter, err := newRateLimiter(cfg)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return limiter.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func serveFrom(handler http.Handler, remote, realIP, forwarded string) int {
	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.RemoteAddr = remote
	if realIP != "" {
		req.Header.Set("X-Real-IP", realIP)
	}
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res.Code
}

func TestRateLimiterIgnoresSpoofedForwardingHeaders(t *testing.T) {
	handler := limitedHandler(t, RateLimit{RequestsPerMinute: 1, Burst: 1})

	passed := 0
	for i := 0; i < 50; i++ {
		realIP := fmt.Sprintf("198.51.100.%d", i+1)
		forwarded := fmt.Sprintf("192.0.2.%d", i+1)
		if serveFrom(handler, "203.0.113.9:40000", realIP, forwarded) == http.StatusOK {
			passed++
		}
	}
	if passed != 1 {
		t.Fatalf("expected one request through for a single peer, got %d", passed)
	}
}

func TestRateLimiterHonoursTrustedProxy(t *testing.T) {
	handler := limitedHandler(t, RateLimit{
		RequestsPerMinute: 1,
		Burst:             1,
		TrustedProxies:    []string{"10.0.0.0/8"},
	})

	if code := serveFrom(handler, "10.1.2.3:5000", "198.51.100.1", ""); code != http.StatusOK {
		t.Fatalf("expected first client to pass, got %d", code)
	}
	if code := serveFrom(handler, "10.1.2.3:5000", "198.51.100.2", ""); code != http.StatusOK {
		t.Fatalf("expected distinct client behind proxy to pass, got %d", code)
	}
	if code := serveFrom(handler, "10.9.9.9:5000", "", "198.51.100.1, 10.1.2.3"); code != http.StatusTooManyRequests {
		t.Fatalf("expected repeat client via X-Forwarded-For to be limited, got %d", code)
	}
	if code := serveFrom(handler, "10.1.2.3:5000", "not-an-ip", ""); code != http.StatusOK {
		t.Fatalf("expected unparseable header to fall back to the proxy address, got %d", code)
	}
	if code := serveFrom(handler, "10.1.2.3:5000", "", ""); code != http.StatusTooManyRequests {
		t.Fatalf("expected proxy address bucket to be exhausted, got %d", code)
	}
}

func TestRateLimiterSeparatesPeers(t *testing.T) {
	handler := limitedHandler(t, RateLimit{RequestsPerMinute: 1, Burst: 1})
	if code := serveFrom(handler, "203.0.113.9:1", "", ""); code != http.StatusOK {
		t.Fatalf("expected first peer to pass, got %d", code)
	}
	if code := serveFrom(handler, "203.0.113.10:1", "", ""); code != http.StatusOK {
		t.Fatalf("expected second peer to pass, got %d", code)
	}
	if code := serveFrom(handler, "203.0.113.9:2", "", ""); code != http.StatusTooManyRequests {
		t.Fatalf("expected repeat peer to be limited, got %d", code)
	}
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.7 ", "", "::ffff:172.16.0.1"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(prefixes) != 3 {
		t.Fatalf("expected 3 prefixes, got %d", len(prefixes))
	}
	if prefixes[1].Bits() != 32 || prefixes[2].Addr().String() != "172.16.0.1" {
		t.Fatalf("unexpected prefixes %v", prefixes)
	}
	if _, err := ParseTrustedProxies([]string{"proxy.internal"}); err == nil {
		t.Fatalf("expected hostname to be rejected")
	}
}
