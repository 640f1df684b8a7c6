package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MoonJiyun2/IdeaShelf/internal/config"
	"github.com/MoonJiyun2/IdeaShelf/internal/event"
	handler "github.com/MoonJiyun2/IdeaShelf/internal/handler/http"
	"github.com/MoonJiyun2/IdeaShelf/internal/repository/postgres"
	"github.com/MoonJiyun2/IdeaShelf/internal/service"
	"github.com/MoonJiyun2/IdeaShelf/internal/session"
	"github.com/MoonJiyun2/IdeaShelf/internal/session/memory"
	sessionredis "github.com/MoonJiyun2/IdeaShelf/internal/session/redis"
	"github.com/MoonJiyun2/IdeaShelf/internal/storage"
	"github.com/MoonJiyun2/IdeaShelf/internal/storage/local"
	"github.com/MoonJiyun2/IdeaShelf/internal/storage/s3"
	"github.com/MoonJiyun2/IdeaShelf/migrations"
	"github.com/MoonJiyun2/IdeaShelf/pkg/database"
	"github.com/MoonJiyun2/IdeaShelf/pkg/health"
	pkgkafka "github.com/MoonJiyun2/IdeaShelf/pkg/kafka"
	"github.com/MoonJiyun2/IdeaShelf/pkg/middleware"
	"github.com/MoonJiyun2/IdeaShelf/pkg/tracing"
)

// ServiceName labels logs, metrics and traces.
const ServiceName = "ideashelf"

// sessionSweepInterval is how often the in-memory session store drops
// expired sessions.
const sessionSweepInterval = 10 * time.Minute

// App wires together all dependencies and runs the IdeaShelf server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	memSessions    *memory.Store
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	// Tracing.
	tcfg := tracing.DefaultConfig(ServiceName)
	tcfg.Environment = cfg.Environment
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	shutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = shutdown
	database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Cover storage.
	store, uploadDir, err := newCoverStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("cover storage initialized", slog.String("backend", cfg.CoverStorage))

	// Sessions.
	var sessions session.Store
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		client, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		sessions = sessionredis.NewStore(client, cfg.SessionTTL())
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
	default:
		a.memSessions = memory.NewStore(cfg.SessionTTL())
		sessions = a.memSessions
	}

	// Kafka producer, only when enabled.
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	bookRepo := postgres.NewBookRepository(pool)
	reviewRepo := postgres.NewReviewRepository(pool)
	eventProducer := event.NewProducer(a.producer, logger)
	covers := service.NewCoverService(store, cfg.MaxCoverSizeBytes, logger)
	bookService := service.NewBookService(bookRepo, covers, eventProducer, logger)
	reviewService := service.NewReviewService(reviewRepo, bookRepo, eventProducer, logger)

	if cfg.SeedSampleData {
		if _, err := bookService.Seed(ctx); err != nil {
			return nil, fmt.Errorf("seed sample data: %w", err)
		}
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if a.redis != nil {
		client := a.redis
		healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		producer := a.producer
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}

	// Metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := database.RegisterPoolMetrics(reg, pool, ServiceName); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(reg, ServiceName)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		Books:     bookService,
		Reviews:   reviewService,
		Sessions:  session.NewManager(sessions, cfg.SessionTTL(), cfg.Environment == "production", logger),
		Health:    healthHandler,
		Metrics:   httpMetrics,
		Gatherer:  reg,
		CORS:      corsCfg,
		UploadDir: uploadDir,
	}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ok = true
	return a, nil
}

// newCoverStorage picks the configured cover backend. The returned directory
// is non-empty only for local storage and is served under /uploads/.
func newCoverStorage(ctx context.Context, cfg *config.Config) (storage.Storage, string, error) {
	if cfg.CoverStorage == config.CoverStorageS3 {
		store, err := s3.New(ctx, s3.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("init s3 cover storage: %w", err)
		}
		return store, "", nil
	}

	store := local.New(cfg.UploadDir)
	return store, store.Dir(), nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	if a.memSessions != nil {
		go a.memSessions.Run(ctx, sessionSweepInterval)
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.close()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.close()

	a.logger.Info("application shutdown complete")
	return nil
}

// close releases every initialized dependency. It is safe on a partially
// built App.
func (a *App) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
		a.producer = nil
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.redis = nil
	}

	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
		a.tracerShutdown = nil
	}
}
