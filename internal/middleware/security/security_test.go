package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"notimo/internal/log"
)

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tracking/view", nil))
	for name, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rr.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector(log.Discard())
	tests := []struct {
		name   string
		target string
		agent  string
		want   bool
	}{
		{"plain view", "/api/tracking/view?period=month", "", false},
		{"curl is fine", "/api/categories", "curl/8.4.0", false},
		{"path traversal", "/api/../../etc/passwd", "", true},
		{"dotenv lookup", "/.env", "", true},
		{"scanner agent", "/healthz", "sqlmap/1.7", true},
		{"sql in query", "/api/tracking/view?label=1%20union%20select", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			if got := d.DetectSuspiciousRequest(r); got != tt.want {
				t.Errorf("DetectSuspiciousRequest(%s) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestDetectorMiddlewareBlocksTrace(t *testing.T) {
	d := NewDetector(log.Discard())
	called := false
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodTrace, "/", nil))
	if rr.Code != http.StatusMethodNotAllowed || called {
		t.Fatalf("TRACE should be rejected, got %d (called=%v)", rr.Code, called)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	if !called {
		t.Fatal("suspicious requests are logged, not blocked")
	}
	if m := d.GetMetrics(); m.BlockedRequests != 1 || m.SuspiciousRequests != 1 {
		t.Errorf("unexpected metrics %+v", m)
	}
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector(log.Discard())
	tests := []struct {
		name, remote, xff, xri, want string
	}{
		{"direct public peer ignores headers", "203.0.113.5:4000", "198.51.100.1", "", "203.0.113.5"},
		{"trusted proxy forwards", "10.0.0.2:4000", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"real ip fallback", "127.0.0.1:4000", "garbage", "198.51.100.7", "198.51.100.7"},
		{"no port", "192.168.1.10", "", "", "192.168.1.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
