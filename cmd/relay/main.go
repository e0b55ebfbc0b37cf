package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/telemetry-armada/internal/api/debug"
	"github.com/ahrav/telemetry-armada/internal/app/telemetry"
	"github.com/ahrav/telemetry-armada/internal/app/telemetry/metrics"
	"github.com/ahrav/telemetry-armada/internal/config"
	credStore "github.com/ahrav/telemetry-armada/internal/config/credentials/memory"
	"github.com/ahrav/telemetry-armada/internal/config/fileloader"
	"github.com/ahrav/telemetry-armada/internal/domain/events"
	domain "github.com/ahrav/telemetry-armada/internal/domain/telemetry"
	eventdispatcher "github.com/ahrav/telemetry-armada/internal/infra/event_dispatcher"
	"github.com/ahrav/telemetry-armada/internal/infra/eventbus/kafka"
	memBus "github.com/ahrav/telemetry-armada/internal/infra/eventbus/memory"
	"github.com/ahrav/telemetry-armada/internal/infra/eventbus/reliability"
	"github.com/ahrav/telemetry-armada/internal/infra/gateway"
	postgresGateway "github.com/ahrav/telemetry-armada/internal/infra/gateway/postgres"
	restGateway "github.com/ahrav/telemetry-armada/internal/infra/gateway/rest"
	"github.com/ahrav/telemetry-armada/internal/infra/runner"
	memStore "github.com/ahrav/telemetry-armada/internal/infra/storage/telemetry/memory"
	"github.com/ahrav/telemetry-armada/pkg/common"
	"github.com/ahrav/telemetry-armada/pkg/common/logger"
	"github.com/ahrav/telemetry-armada/pkg/common/otel"
)

const (
	serviceType = "relay"

	defaultConfigPath = "config.yaml"
)

func main() {
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("failed to get hostname: %v", err)
	}

	var log *logger.Logger

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}

			// Add any error-specific attributes.
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			// Output the error event with valid JSON details.
			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n",
				r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("RELAY-%s", hostname)
	metadata := map[string]string{
		"service":   svcName,
		"hostname":  hostname,
		"pod":       os.Getenv("POD_NAME"),
		"namespace": os.Getenv("POD_NAMESPACE"),
		"app":       serviceType,
	}

	// TODO: Adjust the min log level via env var.
	log = logger.NewWithMetadata(os.Stdout, logger.LevelDebug, svcName, traceIDFn, logEvents, metadata)

	// Setup signal handling.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize telemetry.
	prob, err := strconv.ParseFloat(os.Getenv("OTEL_SAMPLING_RATIO"), 64)
	if err != nil {
		log.Error(ctx, "failed to parse OTEL_SAMPLING_RATIO", "error", err)
		os.Exit(1)
	}
	tp, telemetryTeardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      os.Getenv("OTEL_SERVICE_NAME"),
		ExporterEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ExcludedRoutes: map[string]struct{}{
			"/v1/health":    {},
			"/v1/readiness": {},
		},
		Probability: prob,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"k8s.pod.name":     os.Getenv("POD_NAME"),
			"k8s.namespace":    os.Getenv("POD_NAMESPACE"),
			"k8s.container.id": hostname,
		},
		InsecureExporter: true, // TODO: Come back to setup TLS.
	})
	if err != nil {
		log.Error(ctx, "failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer telemetryTeardown(ctx)

	tracer := tp.Tracer(os.Getenv("OTEL_SERVICE_NAME"))

	ready := &atomic.Bool{}
	healthServer := common.NewHealthServer(ready)
	defer func() {
		if err := healthServer.Server().Shutdown(ctx); err != nil {
			log.Error(ctx, "Error shutting down health server", "error", err)
		}
	}()

	configPath := os.Getenv("RELAY_CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := fileloader.NewFileLoader(configPath).Load(ctx)
	if err != nil {
		log.Error(ctx, "failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	catalog, err := fileloader.NewCatalogLoader(cfg.CatalogPath).Load(ctx)
	if err != nil {
		log.Error(ctx, "failed to load device catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}
	log.Info(ctx, "Device catalog loaded",
		"devices", len(catalog.Devices()),
		"models", len(catalog.Models()))

	credentialStore, err := credStore.NewCredentialStore(cfg.Auth)
	if err != nil {
		log.Error(ctx, "failed to create credential store", "error", err)
		os.Exit(1)
	}

	mp := otel.GetMeterProvider()
	metricCollector, err := metrics.NewRelayMetrics(mp)
	if err != nil {
		log.Error(ctx, "failed to create metrics collector", "error", err)
		os.Exit(1)
	}

	// A pool is only opened when a postgres-backed provider is configured;
	// pure REST deployments run without a database.
	var pool *pgxpool.Pool
	if cfg.Postgres != nil {
		poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN)
		if err != nil {
			log.Error(ctx, "failed to parse db config", "error", err)
			os.Exit(1)
		}
		poolCfg.MinConns = 5
		poolCfg.MaxConns = 20
		poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			log.Error(ctx, "failed to open db", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := runMigrations(pool); err != nil {
			log.Error(ctx, "failed to run migrations", "error", err)
			os.Exit(1)
		}
		log.Info(ctx, "Migrations applied successfully")
	}

	gateways := make(map[string]domain.ProviderGateway, len(cfg.Providers))
	for name, p := range cfg.Providers {
		switch p.Type {
		case config.ProviderTypeREST:
			var apiKey string
			if p.AuthRef != "" {
				creds, err := credentialStore.GetCredentials(p.AuthRef)
				if err != nil {
					log.Error(ctx, "failed to resolve provider credentials",
						"provider", name, "auth_ref", p.AuthRef, "error", err)
					os.Exit(1)
				}
				apiKey = creds.Key
			}
			gw, err := restGateway.New(restGateway.Config{
				BaseURL:           p.BaseURL,
				APIKey:            apiKey,
				Timeout:           p.Timeout.Std(),
				RequestsPerSecond: p.RequestsPerSecond,
				Burst:             p.Burst,
				MaxRetries:        p.MaxRetries,
			}, tracer)
			if err != nil {
				log.Error(ctx, "failed to create rest gateway", "provider", name, "error", err)
				os.Exit(1)
			}
			gateways[name] = gw

		case config.ProviderTypePostgres:
			gateways[name] = postgresGateway.NewGateway(pool, tracer)
		}
	}

	providerRouter, err := gateway.NewRouter(catalog, gateways)
	if err != nil {
		log.Error(ctx, "failed to create provider router", "error", err)
		os.Exit(1)
	}

	var eventBus events.EventBus
	if cfg.Kafka != nil {
		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = fmt.Sprintf("relay-%s", hostname)
		}
		clientID := cfg.Kafka.ClientID
		if clientID == "" {
			clientID = svcName
		}

		kafkaClient, err := kafka.NewClient(&kafka.ClientConfig{
			Brokers:     cfg.Kafka.Brokers,
			GroupID:     groupID,
			ClientID:    clientID,
			ServiceType: serviceType,
		})
		if err != nil {
			log.Error(ctx, "failed to create kafka client", "error", err)
			os.Exit(1)
		}
		defer kafkaClient.Close()

		eventBus, err = kafka.ConnectEventBus(&kafka.EventBusConfig{
			Brokers:               cfg.Kafka.Brokers,
			AggregateResultsTopic: cfg.Kafka.AggregateResultsTopic,
			LiveValuesTopic:       cfg.Kafka.LiveValuesTopic,
			GroupID:               groupID,
			ClientID:              clientID,
			ServiceType:           serviceType,
		}, kafkaClient, log, metricCollector, tracer)
		if err != nil {
			log.Error(ctx, "failed to connect event bus", "error", err)
			os.Exit(1)
		}
	} else {
		log.Info(ctx, "No kafka brokers configured, using in-process event bus")
		eventBus = memBus.NewEventBus()
	}

	eventPublisher := kafka.NewDomainEventPublisher(eventBus, events.NewDomainEventTranslator())

	// Session runner for the relay's own background work; the coordinator
	// owns a separate runner for fetch tasks.
	sessionRunner := runner.NewTaskRunner(
		"session",
		log,
		metricCollector,
		tracer,
		runner.WithConcurrency(cfg.Runner.MaxConcurrent),
		runner.WithWatchdogTimeout(cfg.Runner.WatchdogTimeout.Std()),
	)

	store := memStore.NewAggregateStore()
	cache := telemetry.NewAggregateCache(
		providerRouter,
		store,
		eventPublisher,
		log,
		metricCollector,
		tracer,
		telemetry.WithQuietPeriod(cfg.Fetch.QuietPeriod.Std()),
		telemetry.WithFetchConcurrency(cfg.Fetch.MaxConcurrent),
		telemetry.WithRetryDelay(cfg.Fetch.RetryDelay.Std()),
		telemetry.WithMaxAttempts(cfg.Fetch.MaxAttempts),
	)

	dispatcher := eventdispatcher.New(svcName, tracer, log)
	eventLogger := telemetry.NewEventLogger(log)
	if err := dispatcher.RegisterHandler(ctx, eventLogger); err != nil {
		log.Error(ctx, "failed to register event logger", "error", err)
		os.Exit(1)
	}

	// Consumed events are handed to the session runner so a slow handler
	// never stalls the consume loop. Critical events jump the queue.
	busHandler := func(ctx context.Context, envelope events.EventEnvelope, ack events.AckFunc) error {
		sessionRunner.Submit(ctx, func(done func()) {
			defer done()
			if err := dispatcher.Dispatch(ctx, envelope, ack); err != nil {
				log.Error(ctx, "failed to dispatch event",
					"event_type", envelope.Type, "error", err)
			}
		}, reliability.IsCriticalEvent(envelope.Type))
		return nil
	}
	if err := eventBus.Subscribe(ctx, eventLogger.SupportedEvents(), busHandler); err != nil {
		log.Error(ctx, "failed to subscribe to events", "error", err)
		os.Exit(1)
	}

	go func() {
		debugHost := os.Getenv("DEBUG_HOST")
		debugPort := os.Getenv("DEBUG_PORT")
		if debugPort == "" {
			debugPort = "6060"
		}
		addr := fmt.Sprintf("%s:%s", debugHost, debugPort)

		log.Info(ctx, "Debug server started", "addr", addr)
		if err := http.ListenAndServe(addr, debug.Mux()); err != nil {
			log.Error(ctx, "Debug server closed", "addr", addr, "error", err)
		}
	}()

	log.Info(ctx, "Relay initialized", "providers", len(gateways))
	ready.Store(true)

	sig := <-sigCh
	log.Info(ctx, "Received shutdown signal", "signal", sig)
	ready.Store(false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	g, gctx := errgroup.WithContext(shutdownCtx)
	g.Go(func() error { return eventBus.Close() })
	g.Go(func() error { cache.Stop(gctx); return nil })
	g.Go(func() error { sessionRunner.Reset(gctx); return nil })
	if err := g.Wait(); err != nil {
		log.Error(shutdownCtx, "Failed to shut down cleanly", "error", err)
	}
}

// runMigrations uses golang-migrate to apply all up migrations from
// db/migrations before the daemon starts serving.
func runMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)

	driver, err := pgx.WithInstance(db, &pgx.Config{})
	if err != nil {
		return fmt.Errorf("could not create pgx driver: %w", err)
	}

	const migrationsPath = "file://db/migrations"
	m, err := migrate.NewWithDatabaseInstance(migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	return nil
}
