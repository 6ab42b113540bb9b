package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/orderforge/api/internal/handlers"
	"github.com/orderforge/api/internal/jobs"
	"github.com/orderforge/api/internal/platform/config"
	"github.com/orderforge/api/internal/platform/events"
	pfirestore "github.com/orderforge/api/internal/platform/firestore"
	"github.com/orderforge/api/internal/platform/observability"
	"github.com/orderforge/api/internal/repositories"
	firestoreRepo "github.com/orderforge/api/internal/repositories/firestore"
	"github.com/orderforge/api/internal/repositories/memory"
	"github.com/orderforge/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	store, readiness, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise storage", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("store close error", zap.Error(err))
		}
	}()

	orderEvents, inventoryEvents, pubsubClient, err := newEventPublishers(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise event publishers", zap.Error(err))
	}
	if pubsubClient != nil {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	}

	inventoryService, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: store.Inventory(),
		Events:    inventoryEvents,
		Clock:     time.Now,
		Logger:    zapEventLogger(logger.Named("inventory")),
	})
	if err != nil {
		logger.Fatal("failed to initialise inventory service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     store.Orders(),
		Inventory:  inventoryService,
		UnitOfWork: store,
		Events:     orderEvents,
		Clock:      time.Now,
		Logger:     zapEventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	var sweeper *jobs.PromotionSweeper
	if cfg.Scheduler.Enabled {
		sweeper, err = jobs.NewPromotionSweeper(jobs.PromotionSweeperDeps{
			Orders:   orderService,
			Interval: cfg.Scheduler.PromotionInterval,
			Logger:   logger.Named("promotion"),
		})
		if err != nil {
			logger.Fatal("failed to initialise promotion sweeper", zap.Error(err))
		}
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	projectID := cfg.Firestore.ProjectID
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthStartedAt(startedAt),
		handlers.WithReadinessCheck("store", readiness),
	)

	orderHandlers := handlers.NewOrderHandlers(orderService)
	inventoryHandlers := handlers.NewInventoryHandlers(inventoryService)
	maintenanceHandlers := handlers.NewMaintenanceHandlers(orderService)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithInventoryRoutes(inventoryHandlers.Routes),
		handlers.WithInternalRoutes(maintenanceHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("orderforge api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newStore builds the configured persistence backend along with a readiness
// probe for /readyz.
func newStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.Store, handlers.ReadinessCheck, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn("using in-memory storage; data will not survive restarts")
		store := memory.NewStore()
		return store, func(context.Context) error { return nil }, nil
	case config.StorageDriverFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		client, err := provider.Client(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		store, err := firestoreRepo.NewStore(provider)
		if err != nil {
			return nil, nil, err
		}
		readiness := func(ctx context.Context) error {
			probeCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
			defer cancel()
			iter := client.Collections(probeCtx)
			if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
				return err
			}
			return nil
		}
		return store, readiness, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// newEventPublishers wires the Pub/Sub publishers when events are enabled.
// The returned client is nil when publishing is disabled.
func newEventPublishers(ctx context.Context, cfg config.Config) (services.OrderEventPublisher, services.InventoryEventPublisher, *pubsub.Client, error) {
	if !cfg.Events.Enabled {
		return nil, nil, nil, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pubsub client: %w", err)
	}

	orderPublisher, err := events.NewPubSubOrderPublisher(client.Topic(cfg.Events.OrderTopic))
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	inventoryPublisher, err := events.NewPubSubInventoryPublisher(client.Topic(cfg.Events.InventoryTopic))
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	return orderPublisher, inventoryPublisher, client, nil
}

// zapEventLogger adapts a zap logger to the services logging callback.
func zapEventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Info("service event", zFields...)
	}
}
