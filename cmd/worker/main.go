// recontent worker - renders queued composition jobs
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/recontent/recontent/internal/assets"
	"github.com/recontent/recontent/internal/compose"
	"github.com/recontent/recontent/internal/config"
	"github.com/recontent/recontent/internal/jobs"
	"github.com/recontent/recontent/internal/logging"
	"github.com/recontent/recontent/internal/queue"
	"github.com/recontent/recontent/internal/security"
	"github.com/recontent/recontent/internal/storage"
	"github.com/recontent/recontent/internal/traces"
	"github.com/recontent/recontent/internal/worker"
)

func main() {
	logger := logging.New("info", "text")
	logger.Info("starting recontent worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// A standalone worker only makes sense against shared infrastructure.
	if cfg.RedisURL == "" {
		logger.Error("REDIS_URL is required for the worker")
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required for the worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTraces, err := traces.Init(ctx, "recontent-worker", cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTraces(context.Background()) }()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	q, err := queue.NewRedisQueue(cfg.RedisURL, cfg.JobQueue)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = q.Close() }()

	if cfg.S3Endpoint != "" && cfg.IsProduction() {
		if err := security.ValidateEndpointURL(cfg.S3Endpoint); err != nil {
			logger.Error("unsafe S3 endpoint", "error", err)
			os.Exit(1)
		}
	}
	objects, err := storage.NewS3Store(ctx, storage.S3Config{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		logger.Error("failed to create S3 store", "error", err)
		os.Exit(1)
	}

	var composer compose.Composer
	if !cfg.MockAI {
		logger.Warn("real composition provider not configured, falling back to mock")
	}
	composer = compose.NewMockComposer()

	assetSvc := assets.NewService(assets.NewPostgresStore(db), objects,
		cfg.S3BucketRaw, cfg.S3BucketProcessed)

	w := worker.New(q, jobs.NewPostgresStore(db), assetSvc, objects, composer, logger)

	logger.Info("worker ready", "queue", cfg.JobQueue)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
