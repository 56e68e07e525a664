package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func ready(t *testing.T, srv *Server) (int, status) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var body status
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, body
}

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(nil, nil, nil, nil).Live(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReady_NoDependencies(t *testing.T) {
	code, body := ready(t, NewServer(nil, nil, nil, nil))
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("code = %d, body = %+v", code, body)
	}
}

func TestReady_AllHealthy(t *testing.T) {
	code, body := ready(t, NewServer(&mockPinger{}, &mockPolicyChecker{}, PingFunc(func(context.Context) error { return nil }), nil))
	if code != http.StatusOK {
		t.Fatalf("code = %d, want 200", code)
	}
	for _, name := range []string{"database", "policy", "throttle"} {
		if body.Checks[name] != "ok" {
			t.Errorf("check %s = %q", name, body.Checks[name])
		}
	}
}

func TestReady_Failures(t *testing.T) {
	tests := []struct {
		name   string
		srv    *Server
		failed string
	}{
		{"database down", NewServer(&mockPinger{pingErr: errors.New("connection refused")}, &mockPolicyChecker{}, nil, nil), "database"},
		{"policy broken", NewServer(&mockPinger{}, &mockPolicyChecker{healthErr: errors.New("policy allowed member")}, nil, nil), "policy"},
		{"redis down", NewServer(nil, nil, &mockPinger{pingErr: errors.New("dial tcp")}, nil), "throttle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := ready(t, tt.srv)
			if code != http.StatusServiceUnavailable {
				t.Fatalf("code = %d, want 503", code)
			}
			if body.Checks[tt.failed] != "unavailable" {
				t.Errorf("checks = %v", body.Checks)
			}
		})
	}
}
