package telemetry

import (
	"context"
	"time"

	"crm-dashboard/backend/internal/logging"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after HTTP shutdown before closing the producer and OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// Use from request paths for fire-and-forget, best-effort telemetry; errors are logged to log when non-nil.
//
// A nil emitter returns immediately without starting a goroutine.
// The goroutine uses context.Background() with emitTimeout so request cancellation does not abort in-flight emit.
func EmitAsync(emitter EventEmitter, log *logging.Logger, event Event) {
	if emitter == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil && log != nil {
			log.Warn("telemetry: async emit failed", "event", string(event.Type), "error", err)
		}
	}()
}
