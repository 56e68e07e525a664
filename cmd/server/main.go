// Server is the CRM auth backend: session cookies, the request gate, and the auth/account/admin API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"crm-dashboard/backend/internal/audit"
	auditrepo "crm-dashboard/backend/internal/audit/repository"
	"crm-dashboard/backend/internal/config"
	"crm-dashboard/backend/internal/db"
	healthhandler "crm-dashboard/backend/internal/health/handler"
	identityrepo "crm-dashboard/backend/internal/identity/repository"
	identityservice "crm-dashboard/backend/internal/identity/service"
	"crm-dashboard/backend/internal/logging"
	membershiprepo "crm-dashboard/backend/internal/membership/repository"
	orgrepo "crm-dashboard/backend/internal/organization/repository"
	"crm-dashboard/backend/internal/platform/httpx"
	"crm-dashboard/backend/internal/policy/engine"
	"crm-dashboard/backend/internal/ratelimit"
	"crm-dashboard/backend/internal/security"
	"crm-dashboard/backend/internal/server"
	"crm-dashboard/backend/internal/server/middleware"
	sessionrepo "crm-dashboard/backend/internal/session/repository"
	sessionservice "crm-dashboard/backend/internal/session/service"
	"crm-dashboard/backend/internal/telemetry"
	telemetryotel "crm-dashboard/backend/internal/telemetry/otel"
	"crm-dashboard/backend/internal/telemetry/producer"
	userrepo "crm-dashboard/backend/internal/user/repository"
)

const serviceName = "crm-auth"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config", "error", err)
		os.Exit(1)
	}
	log := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Env:     cfg.Env,
		Service: serviceName,
		Version: version,
	})
	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	if err := cfg.RequireAuth(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:       cfg.OTelEndpoint,
		Insecure:       cfg.OTelInsecure,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown", "error", err)
		}
	}()
	metrics, err := telemetryotel.NewAuthMetrics(providers.MeterProvider)
	if err != nil {
		return fmt.Errorf("auth metrics: %w", err)
	}
	events := telemetry.Fanout{telemetryotel.NewEventEmitter(providers.LoggerProvider), metrics}
	kafka := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuthEventsTopic)
	if kafka != nil {
		events = append(events, kafka)
		defer func() {
			if err := kafka.Close(); err != nil {
				log.Warn("kafka producer close", "error", err)
			}
		}()
		log.Info("publishing auth events", "topic", kafka.Topic())
	}

	users := userrepo.NewSQLRepository(conn)
	memberships := membershiprepo.NewSQLRepository(conn)
	audits := auditrepo.NewSQLRepository(conn)
	tokens := security.NewTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer)

	deps := identityservice.Deps{
		Users:       users,
		Identities:  identityrepo.NewSQLRepository(conn),
		Orgs:        orgrepo.NewSQLRepository(conn),
		Memberships: memberships,
		Audits:      audits,
		Tx:          db.NewTxManager(conn),
		Hasher:      security.NewHasher(cfg.BcryptCost),
		Tokens:      tokens,
		Audit:       audit.NewLogger(audits, log.With("component", "audit")),
		Events:      events,
		Log:         log.With("component", "auth"),
	}

	var throttlePing healthhandler.Pinger
	redisClient, err := ratelimit.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		throttle := ratelimit.NewLoginThrottle(redisClient, cfg.LoginMaxAttempts, cfg.LoginThrottleWindow())
		deps.Throttle = throttle
		throttlePing = healthhandler.PingFunc(throttle.Ping)
	} else {
		log.Warn("REDIS_URL not set; login throttling disabled")
	}

	svc := identityservice.NewAuthService(deps)
	sessions := sessionservice.NewManager(sessionrepo.NewSQLRepository(conn), tokens, svc)
	svc.Sessions = sessions

	policy, err := engine.NewOPAEvaluator(ctx, "")
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	gate := middleware.NewGate(middleware.GateConfig{
		Tokens:      tokens,
		Sessions:    sessions,
		Memberships: memberships,
		Policy:      policy,
		Log:         log.With("component", "gate"),
	})

	proxies, err := httpx.ParseTrustedProxies(cfg.TrustedProxiesList())
	if err != nil {
		return fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
	}

	handler, err := server.NewHandler(server.Deps{
		Auth:           svc,
		Gate:           gate,
		Health:         healthhandler.NewServer(conn, policy, throttlePing, log),
		SecureCookies:  cfg.SecureCookies(),
		TrustedProxies: proxies,
		ServiceName:    serviceName,
		Log:            log,
	})
	if err != nil {
		return err
	}
	srv := server.New(cfg.HTTPAddr, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, srv, cfg.ShutdownGrace(), log)
	})
	g.Go(func() error {
		return sessions.RunSweeper(gctx, cfg.SweepInterval(), log.With("component", "sweeper"))
	})
	err = g.Wait()

	// Background event emits may still be in flight after the last response.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
