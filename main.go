package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func main() {
	migrateCmd := flag.Bool("migrate", false, "Run database migration and seed data")
	seedDemoCmd := flag.Bool("seed-demo", false, "Seed demo transactions and budgets (idempotent)")
	workerCmd := flag.Bool("worker", false, "Consume transaction events and raise budget alerts")
	flag.Parse()

	cfg := Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Amounts are JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case *migrateCmd:
		err = runMigrate(ctx, cfg, logger)
	case *seedDemoCmd:
		err = runSeedDemo(ctx, cfg, logger)
	case *workerCmd:
		err = runWorker(ctx, cfg, logger)
	default:
		err = runServer(ctx, cfg, logger)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Exiting with error", "error", err)
		os.Exit(1)
	}
}

func runMigrate(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	if cfg.DataBackend != "postgres" {
		return fmt.Errorf("migrations apply to the postgres backend only, DATA_BACKEND is %q", cfg.DataBackend)
	}
	if err := setupDatabase(ctx, cfg, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Migration completed successfully")
	return nil
}

func runSeedDemo(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := seedDemoData(ctx, store, time.Now()); err != nil {
		return fmt.Errorf("seeding demo data failed: %w", err)
	}
	logger.Info("Demo data seeded", "username", demoUsername)
	return nil
}

// openStore returns the Store selected by DATA_BACKEND.
func openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (Store, error) {
	if cfg.DataBackend == "memory" {
		logger.Info("Using in-memory storage", "component", "storage")
		return NewMemoryStore(), nil
	}
	db, err := openDB(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return NewPostgresStore(db), nil
}

func runWorker(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	if cfg.AMQPURL == "" {
		return errors.New("worker mode requires AMQP_URL")
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	bus, err := NewAMQPBus(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP: %w", err)
	}
	defer bus.Close()

	evaluator := NewBudgetAlertEvaluator(store, NewDashboardAggregator(store, store, store), cfg.AlertThreshold, logger)
	logger.Info("Budget alert worker started", "queue", cfg.AMQPQueue, "threshold", cfg.AlertThreshold)
	return bus.Consume(ctx, evaluator.HandleEvent)
}

func runServer(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.DataBackend == "memory" {
		if err := seedDemoData(ctx, store, time.Now()); err != nil {
			return fmt.Errorf("seeding demo data failed: %w", err)
		}
		logger.Info("Demo user available", "component", "storage", "username", demoUsername)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = newRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Failed to initialize Redis, continuing with in-process cache only", "component", "cache", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}
	cache := NewCache(redisClient, cfg.CacheSize, logger)

	blobs, err := NewUploadStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	events := newEventPublisher(cfg, store, logger)
	defer events.Close()

	srv := NewServer(cfg, store, cache, blobs, events, logger).httpServer()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// newEventPublisher publishes to AMQP when configured and otherwise evaluates
// budget alerts in this process.
func newEventPublisher(cfg *Config, store Store, logger *slog.Logger) EventPublisher {
	if cfg.AMQPURL != "" {
		bus, err := NewAMQPBus(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err == nil {
			logger.Info("Publishing events to AMQP", "component", "events", "exchange", cfg.AMQPExchange)
			return bus
		}
		logger.Warn("Failed to connect to AMQP, evaluating alerts in-process", "component", "events", "error", err)
	}
	evaluator := NewBudgetAlertEvaluator(store, NewDashboardAggregator(store, store, store), cfg.AlertThreshold, logger)
	return newInlinePublisher(evaluator.HandleEvent, logger)
}
