// Package worker moves auth events from Kafka to Loki.
package worker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"crm-dashboard/backend/internal/logging"
)

// pushTimeout bounds one Loki push.
const pushTimeout = 10 * time.Second

// MessageReader is the subset of *kafka.Reader the worker consumes from.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Pusher ships one raw event.
type Pusher interface {
	PushEventJSON(ctx context.Context, rawJSON []byte) error
}

// NewReader returns a consumer-group reader for topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// Run reads messages until ctx is done, pushing each to p. Read and push failures are logged and skipped.
// It returns nil when ctx is cancelled.
func Run(ctx context.Context, r MessageReader, p Pusher, log *logging.Logger) error {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker: stopped")
				return nil
			}
			log.Warn("worker: kafka read error", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := p.PushEventJSON(pushCtx, msg.Value); err != nil {
			log.Warn("worker: loki push failed", "offset", msg.Offset, "error", err)
		}
		cancel()
	}
}
