package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"crm-dashboard/backend/internal/telemetry"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), telemetry.Event{OrgID: "org1"}); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestNewEventEmitter_WithProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), telemetry.Event{Type: telemetry.EventLogin}); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func attributes(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestEmit_AttributeMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	event := telemetry.Event{
		Type:       telemetry.EventLogin,
		Outcome:    telemetry.OutcomeSuccess,
		UserID:     "user1",
		OrgID:      "org1",
		Email:      "a@x.com",
		IPAddress:  "10.0.0.1",
		UserAgent:  "curl/8",
		OccurredAt: at,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}
	if rec.EventName() != "auth.login" {
		t.Errorf("event name = %q", rec.EventName())
	}
	if rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want info", rec.Severity())
	}
	want := map[string]string{
		"event_type": "auth.login", "outcome": "success", "user_id": "user1",
		"org_id": "org1", "ip_address": "10.0.0.1", "user_agent": "curl/8",
	}
	attrs := attributes(rec)
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
	if _, ok := attrs["email"]; ok {
		t.Error("email must not be exported as an attribute")
	}
	if _, ok := attrs["reason"]; ok {
		t.Error("empty reason should not be set")
	}
}

func TestEmit_FailureIsWarn(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	event := telemetry.Event{Type: telemetry.EventRefresh, Outcome: telemetry.OutcomeFailure, Reason: "session_expired"}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if cap.rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want warn", cap.rec.Severity())
	}
	if got := attributes(cap.rec)["reason"]; got != "session_expired" {
		t.Errorf("reason = %q", got)
	}
}

func TestEmit_ZeroTimestamp_SetsCurrentTime(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	before := time.Now().UTC()
	if err := em.Emit(context.Background(), telemetry.Event{Type: telemetry.EventLogout}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	after := time.Now().UTC()
	ts := cap.rec.Timestamp()
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", ts, before, after)
	}
}

func TestNewEventEmitterWithLogger_Nil(t *testing.T) {
	em := NewEventEmitterWithLogger(nil)
	if err := em.Emit(context.Background(), telemetry.Event{}); err != nil {
		t.Errorf("Emit: %v", err)
	}
}
