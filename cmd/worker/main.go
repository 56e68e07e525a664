// Worker consumes auth events from Kafka and pushes them to Loki.
// Requires KAFKA_BROKERS and LOKI_URL; AUTH_EVENTS_TOPIC and KAFKA_GROUP_ID have defaults.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"crm-dashboard/backend/internal/config"
	"crm-dashboard/backend/internal/logging"
	"crm-dashboard/backend/internal/telemetry/loki"
	"crm-dashboard/backend/internal/telemetry/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config", "error", err)
		os.Exit(1)
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Env: cfg.Env, Service: "crm-auth-worker"})

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Error("worker: KAFKA_BROKERS is required")
		os.Exit(1)
	}
	client, err := loki.NewClient(cfg.LokiURL, nil)
	if err != nil {
		log.Error("worker: loki client", "error", err)
		os.Exit(1)
	}

	reader := worker.NewReader(brokers, cfg.AuthEventsTopic, cfg.KafkaGroupID)
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker: consuming", "topic", cfg.AuthEventsTopic, "group", cfg.KafkaGroupID, "loki", cfg.LokiURL)
	if err := worker.Run(ctx, reader, client, log); err != nil {
		log.Error("worker: stopped with error", "error", err)
		os.Exit(1)
	}
}
