package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"crm-dashboard/backend/internal/telemetry"
)

// AuthMetrics counts auth events by type, outcome and reason. It implements telemetry.EventEmitter.
type AuthMetrics struct {
	events metric.Int64Counter
}

// NewAuthMetrics registers the auth counters on provider's meter.
func NewAuthMetrics(provider metric.MeterProvider) (*AuthMetrics, error) {
	meter := provider.Meter(instrumentationName)
	events, err := meter.Int64Counter(
		"crm.auth.events",
		metric.WithDescription("Auth lifecycle events by type and outcome."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{events: events}, nil
}

// Emit increments the event counter. A nil receiver is a no-op.
func (m *AuthMetrics) Emit(ctx context.Context, event telemetry.Event) error {
	if m == nil {
		return nil
	}
	attrs := []attribute.KeyValue{
		attribute.String("event_type", string(event.Type)),
		attribute.String("outcome", string(event.Outcome)),
	}
	if event.Reason != "" {
		attrs = append(attrs, attribute.String("reason", event.Reason))
	}
	m.events.Add(ctx, 1, metric.WithAttributes(attrs...))
	return nil
}
