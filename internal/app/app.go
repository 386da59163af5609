package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/shortlinks/internal/account"
	"github.com/sundayezeilo/shortlinks/internal/cache"
	"github.com/sundayezeilo/shortlinks/internal/config"
	"github.com/sundayezeilo/shortlinks/internal/db"
	"github.com/sundayezeilo/shortlinks/internal/kv"
	"github.com/sundayezeilo/shortlinks/internal/metrics"
	"github.com/sundayezeilo/shortlinks/internal/ranking"
	"github.com/sundayezeilo/shortlinks/internal/relation"
	"github.com/sundayezeilo/shortlinks/internal/score"
	"github.com/sundayezeilo/shortlinks/internal/server"
	"github.com/sundayezeilo/shortlinks/internal/shortener"
	"github.com/sundayezeilo/shortlinks/internal/telemetry"
	"github.com/sundayezeilo/shortlinks/sluggen"
)

// App holds the application dependencies and configuration.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DBPool    *pgxpool.Pool
	Store     kv.Store
	Server    *server.Server
	Handler   *shortener.Handler
	telemetry telemetry.ShutdownFunc
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
	)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("failed to setup telemetry: %w", err)
	}

	// Connect to database
	dbPool, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.ApplySchema(ctx, dbPool); err != nil {
			dbPool.Close()
			_ = shutdownTracing(ctx)
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
		logger.Info("database schema applied")
	}

	// Connect to redis
	store, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		dbPool.Close()
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var recorder *metrics.Recorder
	if cfg.Observability.MetricsEnabled {
		recorder = metrics.NewRecorder(nil)
	}

	// Setup application dependencies
	queries := db.New(dbPool)

	counter := score.NewCounter(store, &score.CounterConfig{
		SequenceStart: cfg.Ranking.SequenceStart,
	})
	cacheCfg := &cache.Config{Logger: logger}
	if recorder != nil {
		counter = recorder.InstrumentCounter(counter)
		cacheCfg.Observer = recorder
	}

	projector := ranking.NewProjector(
		ranking.NewPostgresReader(queries),
		counter,
		cache.New(store, cacheCfg),
		&ranking.Config{
			Logger:         logger,
			TopTTL:         cfg.Ranking.TopTTL,
			ListingTTL:     cfg.Ranking.ListingTTL,
			Window:         cfg.Ranking.Window,
			MostLikedLimit: cfg.Ranking.MostLikedLimit,
		},
	)

	synchronizer := relation.NewSynchronizer(relation.NewPostgresTxRunner(dbPool), &relation.SynchronizerConfig{
		Logger: logger,
	})
	accountRepo := account.NewRepository(queries, synchronizer, nil)
	accountHandler := account.NewHandler(account.HandlerConfig{
		Service: account.NewService(accountRepo),
		Logger:  logger,
	})

	svc := shortener.NewService(shortener.NewRepository(queries, nil), &shortener.ServiceConfig{
		Accounts:      accountRepo,
		Scores:        counter,
		Ranking:       projector,
		Logger:        logger,
		SlugGenerator: slugGenerator(cfg.Ranking.SlugStrategy, counter),
	})
	handler := shortener.NewHandler(shortener.HandlerConfig{
		Service: svc,
		Ranking: projector,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})

	// Create server
	srv := server.New(cfg, logger, server.Handlers{
		Links:    handler,
		Accounts: accountHandler,
		Metrics:  recorder,
	})

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"slug_strategy", cfg.Ranking.SlugStrategy,
		"metrics", recorder != nil,
	)

	return &App{
		Config:    cfg,
		Logger:    logger,
		DBPool:    dbPool,
		Store:     store,
		Server:    srv,
		Handler:   handler,
		telemetry: shutdownTracing,
	}, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	var errs []error

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		} else {
			a.Logger.Info("redis connection closed")
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.telemetry(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush traces: %w", err))
		}
	}

	return errors.Join(errs...)
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}

// slugGenerator picks the generator for strategy. Sequence codes come from
// the score store so they stay unique across instances.
func slugGenerator(strategy string, seq sluggen.Sequence) sluggen.Generator {
	if strategy == "random" {
		return sluggen.NewBase62()
	}
	return sluggen.NewSequence(seq)
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}

// connectRedis opens the key-value store backing scores and cached rankings.
func connectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kv.Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	logger.Info("connecting to redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("redis connection established")

	return kv.NewRedis(client, &kv.RedisConfig{KeyPrefix: cfg.Redis.KeyPrefix}), nil
}
