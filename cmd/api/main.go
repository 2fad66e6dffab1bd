package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/wms-platform/fulfillment-service/internal/api/handlers"
	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/cache"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/clients"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/events"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/export"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/ids"
	mongoRepo "github.com/wms-platform/fulfillment-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/idempotency"
	"github.com/wms-platform/fulfillment-service/pkg/kafka"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/middleware"
	"github.com/wms-platform/fulfillment-service/pkg/mongodb"
	"github.com/wms-platform/fulfillment-service/pkg/outbox"
	outboxmongo "github.com/wms-platform/fulfillment-service/pkg/outbox/mongodb"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

const serviceName = "fulfillment-service"

func main() {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	if err := run(context.Background(), loadConfig(), appDependencies{}, signalCh); err != nil {
		os.Exit(1)
	}
}

type tracerProvider interface {
	Shutdown(ctx context.Context) error
}

type outboxPublisher interface {
	Start(ctx context.Context) error
	Stop() error
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type appDependencies struct {
	initTracing        func(ctx context.Context, cfg *tracing.Config) (tracerProvider, error)
	newMetrics         func(cfg *metrics.Config) *metrics.Metrics
	connectMongo       func(ctx context.Context, cfg *mongodb.Config, m *metrics.Metrics, logger *logging.Logger) (*mongodb.InstrumentedClient, error)
	connectRedis       func(ctx context.Context, cfg *cache.Config) (redis.UniversalClient, error)
	newEventPublisher  func(cfg *kafka.Config, m *metrics.Metrics, logger *logging.Logger) (kafka.EventPublisher, func() error)
	newOutboxPublisher func(repo outbox.Repository, producer kafka.EventPublisher, logger *logging.Logger, m *metrics.Metrics, cfg *outbox.PublisherConfig) outboxPublisher
	newHTTPServer      func(addr string, handler http.Handler) httpServer
}

func defaultDependencies() appDependencies {
	return appDependencies{
		initTracing: func(ctx context.Context, cfg *tracing.Config) (tracerProvider, error) {
			return tracing.Initialize(ctx, cfg)
		},
		newMetrics: metrics.New,
		connectMongo: func(ctx context.Context, cfg *mongodb.Config, m *metrics.Metrics, logger *logging.Logger) (*mongodb.InstrumentedClient, error) {
			client, err := mongodb.NewClient(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return mongodb.NewInstrumentedClient(client, m, logger), nil
		},
		connectRedis: func(ctx context.Context, cfg *cache.Config) (redis.UniversalClient, error) {
			rdb, err := cache.NewClient(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return rdb, nil
		},
		newEventPublisher: func(cfg *kafka.Config, m *metrics.Metrics, logger *logging.Logger) (kafka.EventPublisher, func() error) {
			return kafka.NewPublisher(cfg, m, logger)
		},
		newOutboxPublisher: func(repo outbox.Repository, producer kafka.EventPublisher, logger *logging.Logger, m *metrics.Metrics, cfg *outbox.PublisherConfig) outboxPublisher {
			return outbox.NewPublisher(repo, producer, logger, m, cfg)
		},
		newHTTPServer: func(addr string, handler http.Handler) httpServer {
			return &http.Server{
				Addr:         addr,
				Handler:      handler,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 60 * time.Second,
			}
		},
	}
}

func (d appDependencies) withDefaults() appDependencies {
	def := defaultDependencies()
	if d.initTracing == nil {
		d.initTracing = def.initTracing
	}
	if d.newMetrics == nil {
		d.newMetrics = def.newMetrics
	}
	if d.connectMongo == nil {
		d.connectMongo = def.connectMongo
	}
	if d.connectRedis == nil {
		d.connectRedis = def.connectRedis
	}
	if d.newEventPublisher == nil {
		d.newEventPublisher = def.newEventPublisher
	}
	if d.newOutboxPublisher == nil {
		d.newOutboxPublisher = def.newOutboxPublisher
	}
	if d.newHTTPServer == nil {
		d.newHTTPServer = def.newHTTPServer
	}
	return d
}

func run(ctx context.Context, config *Config, deps appDependencies, signalCh <-chan os.Signal) error {
	deps = deps.withDefaults()
	if config == nil {
		config = loadConfig()
	}

	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.ParseLevel(config.LogLevel)
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting fulfillment-service API")

	tp, err := deps.initTracing(ctx, config.Tracing)
	if err != nil {
		// Continue without tracing
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", config.Tracing.OTLPEndpoint)
	}

	m := deps.newMetrics(metrics.DefaultConfig(serviceName))

	mongoClient, err := deps.connectMongo(ctx, config.MongoDB, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Close(closeCtx)
	}()
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	idGen, err := ids.NewGenerator(config.SnowflakeNode)
	if err != nil {
		return fmt.Errorf("failed to create id generator: %w", err)
	}

	readiness := map[string]func(ctx context.Context) error{
		"mongodb": mongoClient.HealthCheck,
	}

	// The stock cache is optional; totals are computed from the ledger without it.
	var stockCache application.StockCache
	rdb, err := deps.connectRedis(ctx, config.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, running without stock cache", "addr", config.Redis.Addr)
	} else {
		defer rdb.Close()
		sc := cache.NewStockCache(rdb, config.Redis.TTL)
		stockCache = sc
		readiness["redis"] = sc.HealthCheck
		logger.Info("Stock cache enabled", "addr", config.Redis.Addr, "ttl", config.Redis.TTL)
	}

	idempotencyRepo := idempotency.NewMongoKeyRepository(mongoClient)
	if err := idempotencyRepo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to initialize idempotency indexes")
	}

	outboxRepo := outboxmongo.NewOutboxRepository(mongoClient)
	eventSink := events.NewOutboxSink(outboxRepo, cloudevents.NewEventFactory(cloudevents.Source))

	producer, closeProducer := deps.newEventPublisher(config.Kafka, m, logger)
	defer func() {
		if err := closeProducer(); err != nil {
			logger.WithError(err).Warn("Failed to close kafka producer")
		}
	}()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	publisher := deps.newOutboxPublisher(outboxRepo, producer, logger, m, &outbox.PublisherConfig{
		PollInterval: 1 * time.Second,
		BatchSize:    100,
	})
	if err := publisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		return fmt.Errorf("failed to start outbox publisher: %w", err)
	}
	defer func() {
		_ = publisher.Stop()
	}()
	logger.Info("Outbox publisher started")

	serviceDeps := application.Dependencies{
		Shelves:    mongoRepo.NewShelfRepository(mongoClient),
		Stock:      mongoRepo.NewStockRepository(mongoClient),
		Routes:     mongoRepo.NewRouteRepository(mongoClient),
		Sessions:   mongoRepo.NewPackingSessionRepository(mongoClient),
		Sequences:  mongoRepo.NewCounterRepository(mongoClient),
		Transactor: mongoClient,
		Events:     eventSink,
		IDs:        idGen,
		Orders:     clients.NewOrderStoreClient(config.Clients.OrderStoreURL, config.Clients.Timeout, logger.Logger, m),
		Catalog:    clients.NewCatalogClient(config.Clients.CatalogURL, config.Clients.Timeout, logger.Logger, m),
		Cache:      stockCache,
		Exporter:   export.NewXLSXExporter(),
		Metrics:    m,
		Logger:     logger,
	}
	if config.Clients.ConsumablesURL != "" {
		serviceDeps.Consumables = clients.NewConsumablesClient(config.Clients.ConsumablesURL, config.Clients.Timeout, logger.Logger, m)
	} else {
		logger.Warn("CONSUMABLES_URL not set, packing consumables are not debited")
	}
	services := application.NewServices(serviceDeps)

	router := newRouter(logger, m, services, idempotencyRepo, readiness)

	server := deps.newHTTPServer(config.ServerAddr, router)

	go func() {
		logger.Info("Starting HTTP server", "addr", config.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()

	select {
	case <-signalCh:
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
	return nil
}

// newRouter builds the gin engine: the standard middleware chain, the
// operational endpoints and the versioned API. A nil keyRepo disables
// Idempotency-Key handling.
func newRouter(
	logger *logging.Logger,
	m *metrics.Metrics,
	services *application.Services,
	keyRepo idempotency.KeyRepository,
	readiness map[string]func(ctx context.Context) error,
) *gin.Engine {
	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger, m))

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, readiness))
	if m != nil {
		router.GET("/metrics", middleware.MetricsEndpoint(m))
	}

	var apiMiddleware []gin.HandlerFunc
	if keyRepo != nil {
		idemConfig := idempotency.DefaultConfig(serviceName, keyRepo, logger, m)
		idemConfig.UserIDExtractor = middleware.GetUserID
		apiMiddleware = append(apiMiddleware, idempotency.Middleware(idemConfig))
	}
	handlers.RegisterAll(router, services, logger, apiMiddleware...)

	return router
}
