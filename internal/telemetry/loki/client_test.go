package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, status int, got *PushRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_EmptyURL(t *testing.T) {
	if _, err := NewClient("  ", nil); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestPushEventJSON_Labels(t *testing.T) {
	var got PushRequest
	srv := newTestServer(t, http.StatusNoContent, &got)
	c, err := NewClient(srv.URL+"/", nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	raw := []byte(`{"type":"auth.login","outcome":"failure","reason":"invalid_credentials","user_id":"u1","occurred_at":"2026-01-02T03:04:05Z"}`)
	if err := c.PushEventJSON(context.Background(), raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d", len(got.Streams))
	}
	s := got.Streams[0]
	want := map[string]string{"job": "crm-auth", "event_type": "auth.login", "outcome": "failure"}
	for k, v := range want {
		if s.Stream[k] != v {
			t.Errorf("label %q = %q, want %q", k, s.Stream[k], v)
		}
	}
	if _, ok := s.Stream["user_id"]; ok {
		t.Error("user_id must not be a label")
	}
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixNano()
	if len(s.Values) != 1 || s.Values[0][0] != fmtInt(ts) || s.Values[0][1] != string(raw) {
		t.Errorf("values = %v", s.Values)
	}
}

func TestPushEventJSON_InvalidJSON(t *testing.T) {
	var got PushRequest
	srv := newTestServer(t, http.StatusOK, &got)
	c, _ := NewClient(srv.URL, nil)
	if err := c.PushEventJSON(context.Background(), []byte("not json")); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	s := got.Streams[0]
	if len(s.Stream) != 1 || s.Stream["job"] != "crm-auth" {
		t.Errorf("labels = %v, want only job", s.Stream)
	}
	if s.Values[0][1] != "not json" {
		t.Errorf("line = %q", s.Values[0][1])
	}
}

func TestPushEvent_SanitizesLabels(t *testing.T) {
	var got PushRequest
	srv := newTestServer(t, http.StatusOK, &got)
	c, _ := NewClient(srv.URL, nil)
	err := c.PushEvent(context.Background(), time.Now(), "line", map[string]string{"a": "x y/z", "b": "  "})
	if err != nil {
		t.Fatalf("PushEvent: %v", err)
	}
	if got.Streams[0].Stream["a"] != "x_y_z" {
		t.Errorf("a = %q", got.Streams[0].Stream["a"])
	}
	if _, ok := got.Streams[0].Stream["b"]; ok {
		t.Error("blank label should be dropped")
	}
}

func TestPushEvent_Non2xx(t *testing.T) {
	var got PushRequest
	srv := newTestServer(t, http.StatusBadRequest, &got)
	c, _ := NewClient(srv.URL, nil)
	if err := c.PushEvent(context.Background(), time.Now(), "line", nil); err == nil {
		t.Fatal("expected error on 400")
	}
}

func fmtInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
