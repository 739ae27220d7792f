package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/coursesearch/internal/catalog"
	"github.com/utafrali/coursesearch/internal/config"
	"github.com/utafrali/coursesearch/internal/engine"
	esengine "github.com/utafrali/coursesearch/internal/engine/elasticsearch"
	"github.com/utafrali/coursesearch/internal/engine/memory"
	"github.com/utafrali/coursesearch/internal/event"
	handler "github.com/utafrali/coursesearch/internal/handler/http"
	"github.com/utafrali/coursesearch/internal/lock"
	"github.com/utafrali/coursesearch/internal/service"
	"github.com/utafrali/coursesearch/pkg/database"
	"github.com/utafrali/coursesearch/pkg/health"
	"github.com/utafrali/coursesearch/pkg/httpclient"
	pkgkafka "github.com/utafrali/coursesearch/pkg/kafka"
	"github.com/utafrali/coursesearch/pkg/tracing"
)

// Redis keys owned by the service. The lock key is shared with catalogctl.
const (
	ReindexLockKey    = "course-search:reindex-lock"
	idempotencyPrefix = "course-search:events:"
)

// App wires together all dependencies and runs the course search service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	engine   engine.SearchEngine
	indexing *service.IndexingService
	search   *service.SearchService

	redis    *redis.Client
	producer *pkgkafka.Producer
	consumer *pkgkafka.Consumer
	dlq      *pkgkafka.DLQProducer
	watcher  *catalog.Watcher

	httpServer     *http.Server
	shutdownTracer func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Optional backends (Redis, Kafka) are only contacted when enabled.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.shutdownTracer = shutdownTracer

	engine.SetSlowRequestLogging(cfg.SlowQueryThreshold, logger)

	eng, err := NewEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.engine = eng

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("search_engine", eng.Ping)

	var indexingOpts []service.IndexingOption

	if cfg.RedisEnabled {
		client, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.redis = client
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, client, cfg.ServiceName); err != nil {
			logger.Warn("redis pool metrics not registered", slog.String("error", err.Error()))
		}
		indexingOpts = append(indexingOpts, service.WithLocker(lock.NewRedis(client, ReindexLockKey, cfg.ReindexLockTTL)))
		healthHandler.RegisterNonCritical("redis", database.PingRedis(client))
		logger.Info("redis reindex lock enabled", slog.String("addr", cfg.Redis().Addr()))
	}

	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		indexingOpts = append(indexingOpts, service.WithPublisher(a.producer))
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
	}

	a.indexing = service.NewIndexingService(eng, catalog.NewSource(cfg.CatalogPath), logger, indexingOpts...)
	a.search = service.NewSearchService(eng, logger)

	if cfg.KafkaEnabled {
		a.consumer = a.newConsumer()
		logger.Info("kafka consumer initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("topic", event.TopicCatalogPublished),
			slog.String("group", cfg.KafkaGroupID),
		)
	}

	if cfg.CatalogWatch {
		a.watcher = catalog.NewWatcher(cfg.CatalogPath, func(ctx context.Context) error {
			_, err := a.indexing.Reindex(ctx)
			return err
		}, logger)
	}

	router := handler.NewRouter(a.search, a.indexing, healthHandler, handler.RouterConfig{
		ServiceName:    cfg.ServiceName,
		AdminToken:     cfg.AdminToken,
		CacheMaxAge:    cfg.CacheMaxAge,
		RequestTimeout: cfg.RequestTimeout,
		CORS:           cfg.CORS(),
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

// NewEngine builds the configured search backend. The Elasticsearch client
// goes through a pooled transport, guarded by a circuit breaker when enabled.
func NewEngine(cfg *config.Config, logger *slog.Logger) (engine.SearchEngine, error) {
	switch cfg.SearchEngine {
	case config.EngineMemory:
		logger.Info("in-memory search engine initialized")
		return memory.New(), nil
	default:
		var transport http.RoundTripper = httpclient.NewTransport(cfg.Transport())
		if cfg.BreakerEnabled {
			transport = httpclient.NewBreakerTransport(transport, cfg.Breaker(), logger)
		}

		esCfg := cfg.Elasticsearch()
		esCfg.Transport = transport
		eng, err := esengine.New(esCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		logger.Info("elasticsearch search engine initialized",
			slog.Any("urls", esCfg.Addresses),
			slog.String("index", eng.IndexName()),
		)
		return eng, nil
	}
}

// newConsumer builds the catalog.published consumer. Redelivered events are
// dropped through the idempotency store, shared in Redis when available.
func (a *App) newConsumer() *pkgkafka.Consumer {
	var store pkgkafka.IdempotencyStore
	if a.redis != nil {
		store = pkgkafka.NewRedisIdempotencyStore(a.redis, idempotencyPrefix, a.cfg.IdempotencyTTL)
	} else {
		store = pkgkafka.NewMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	}

	topic := event.TopicCatalogPublished
	eventConsumer := event.NewConsumer(a.indexing, a.logger)
	h := pkgkafka.IdempotentHandler(store, eventConsumer.Handle, topic, a.cfg.KafkaGroupID, a.logger)

	consumerCfg := pkgkafka.DefaultConsumerConfig(a.cfg.KafkaBrokers, a.cfg.KafkaGroupID, topic)
	consumerCfg.MaxRetries = a.cfg.KafkaMaxRetries

	c := pkgkafka.NewConsumer(consumerCfg, h, a.logger)
	if a.cfg.KafkaDLQEnabled {
		a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)
		c.WithDLQ(a.dlq)
	}
	return c
}

// Handler returns the HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// LoadInitialData fills an empty index from the dataset when configured to.
func (a *App) LoadInitialData(ctx context.Context) error {
	if !a.cfg.LoadOnStartup {
		return nil
	}
	if _, err := a.indexing.LoadIfEmpty(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	return nil
}

// Run loads the initial dataset, starts the HTTP server, the Kafka consumer
// and the dataset watcher, and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	if err := a.LoadInitialData(ctx); err != nil {
		return errors.Join(err, a.Shutdown())
	}

	errCh := make(chan error, 3)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	if a.watcher != nil {
		go func() {
			if err := a.watcher.Run(ctx); err != nil {
				errCh <- fmt.Errorf("catalog watcher: %w", err)
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("component failed", slog.String("error", runErr.Error()))
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	closers := []struct {
		name  string
		close func() error
	}{
		{"kafka consumer", a.closeConsumer},
		{"kafka dlq producer", a.closeDLQ},
		{"kafka producer", a.closeProducer},
		{"redis", a.closeRedis},
	}
	for _, c := range closers {
		if err := c.close(); err != nil {
			a.logger.Error(c.name+" close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeConsumer() error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Close()
}

func (a *App) closeDLQ() error {
	if a.dlq == nil {
		return nil
	}
	return a.dlq.Close()
}

func (a *App) closeProducer() error {
	if a.producer == nil {
		return nil
	}
	return a.producer.Close()
}

func (a *App) closeRedis() error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}
