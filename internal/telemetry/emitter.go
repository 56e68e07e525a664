package telemetry

import (
	"context"
	"errors"
)

// EventEmitter emits auth events (e.g. to OTel Logs or Kafka). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event Event) error
}

// Fanout emits each event to every non-nil emitter and joins their errors.
type Fanout []EventEmitter

// Emit implements EventEmitter.
func (f Fanout) Emit(ctx context.Context, event Event) error {
	var errs []error
	for _, em := range f {
		if em == nil {
			continue
		}
		if err := em.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
