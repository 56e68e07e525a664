package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crm-dashboard/backend/internal/logging"
	"crm-dashboard/backend/internal/platform/httpx"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("generated id = %q, header = %q", seen, rec.Header().Get("X-Request-ID"))
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if seen != "abc-123" {
		t.Errorf("client id not propagated: %q", seen)
	}
}

func TestClientIP_TrustsOnlyConfiguredProxies(t *testing.T) {
	proxies, err := httpx.ParseTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = httpx.Meta(r).IPAddress
	})

	tests := []struct {
		name    string
		proxies *httpx.TrustedProxies
		remote  string
		want    string
	}{
		{"spoofed header from client", proxies, "203.0.113.7:40000", "203.0.113.7"},
		{"header from proxy", proxies, "10.1.2.3:40000", "1.2.3.4"},
		{"no proxies configured", nil, "10.1.2.3:40000", "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
			r.RemoteAddr = tt.remote
			r.Header.Set("X-Forwarded-For", "1.2.3.4")
			ClientIP(tt.proxies)(next).ServeHTTP(httptest.NewRecorder(), r)
			if seen != tt.want {
				t.Errorf("client ip = %q, want %q", seen, tt.want)
			}
		})
	}
}

func TestLogger_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Options{Format: "json", Output: &buf})
	h := Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	out := buf.String()
	if !strings.Contains(out, `"status":418`) || !strings.Contains(out, `"path":"/x"`) {
		t.Errorf("log line = %s", out)
	}
}

func TestRecover(t *testing.T) {
	h := Recover(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	var readErr error
	h := BodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	if readErr == nil {
		t.Error("reading past the limit should fail")
	}
}
