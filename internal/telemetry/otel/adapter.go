package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"crm-dashboard/backend/internal/telemetry"
)

// instrumentationName scopes the log records and metrics emitted by this package.
const instrumentationName = "crm-auth.telemetry"

// recordEmitter is the part of otellog.Logger the emitter needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(instrumentationName))
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger directly.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	if logger == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, telemetry.Event) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record and emits it. Failures carry WARN severity.
func (e *otelEmitter) Emit(ctx context.Context, event telemetry.Event) error {
	rec := otellog.Record{}
	if !event.OccurredAt.IsZero() {
		rec.SetTimestamp(event.OccurredAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetEventName(string(event.Type))
	rec.SetBody(otellog.StringValue(string(event.Type)))
	if event.Failed() {
		rec.SetSeverity(otellog.SeverityWarn)
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
	}
	add := func(key, value string) {
		if value != "" {
			rec.AddAttributes(otellog.String(key, value))
		}
	}
	add("event_type", string(event.Type))
	add("outcome", string(event.Outcome))
	add("reason", event.Reason)
	add("user_id", event.UserID)
	add("org_id", event.OrgID)
	add("ip_address", event.IPAddress)
	add("user_agent", event.UserAgent)
	e.logger.Emit(ctx, rec)
	return nil
}
