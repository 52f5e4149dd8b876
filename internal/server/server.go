// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/stripe/stripe-go/v81/client"

	"github.com/recontent/recontent/internal/assets"
	"github.com/recontent/recontent/internal/billing"
	"github.com/recontent/recontent/internal/compose"
	"github.com/recontent/recontent/internal/config"
	"github.com/recontent/recontent/internal/health"
	"github.com/recontent/recontent/internal/jobs"
	"github.com/recontent/recontent/internal/logging"
	"github.com/recontent/recontent/internal/metrics"
	"github.com/recontent/recontent/internal/org"
	"github.com/recontent/recontent/internal/plan"
	"github.com/recontent/recontent/internal/posts"
	"github.com/recontent/recontent/internal/queue"
	"github.com/recontent/recontent/internal/quota"
	"github.com/recontent/recontent/internal/ratelimit"
	"github.com/recontent/recontent/internal/security"
	"github.com/recontent/recontent/internal/storage"
	"github.com/recontent/recontent/internal/user"
	"github.com/recontent/recontent/internal/validation"
	"github.com/recontent/recontent/internal/worker"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg        *config.Config
	orgs       org.Store
	catalog    *plan.Catalog
	ledger     *quota.Ledger
	assetSvc   *assets.Service
	gate       *jobs.Gate
	postSvc    *posts.Service
	reconciler *billing.Reconciler
	webhook    *billing.WebhookHandler
	queue      queue.Queue
	objects    storage.ObjectStore
	composer   compose.Composer
	worker     *worker.Worker // in-process rendering when no Redis queue

	rateLimiter  *ratelimit.Limiter
	checks       *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithQueue injects a queue (for testing)
func WithQueue(q queue.Queue) Option {
	return func(s *Server) {
		s.queue = q
	}
}

// WithObjectStore injects an object store (for testing)
func WithObjectStore(o storage.ObjectStore) Option {
	return func(s *Server) {
		s.objects = o
	}
}

// WithComposer injects a composition provider (for testing)
func WithComposer(c compose.Composer) Option {
	return func(s *Server) {
		s.composer = c
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
		checks: health.NewRegistry(),
	}

	// Apply options first (may inject queue/storage/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	catalog, err := plan.NewCatalog([]plan.PriceMapping{
		{PriceID: cfg.StripePriceBasic, Key: string(plan.PlanBasic)},
		{PriceID: cfg.StripePricePro, Key: string(plan.PlanPro)},
		{PriceID: cfg.StripePricePremium, Key: string(plan.PlanPremium)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build plan catalog: %w", err)
	}
	s.catalog = catalog

	// Object storage (S3 if configured, otherwise in-memory)
	if s.objects == nil {
		if cfg.S3Endpoint != "" || cfg.S3AccessKey != "" || cfg.IsProduction() {
			// A custom endpoint must not point back into the pod network.
			// Dev setups run MinIO on loopback, so only production enforces.
			if cfg.S3Endpoint != "" && cfg.IsProduction() {
				if err := security.ValidateEndpointURL(cfg.S3Endpoint); err != nil {
					return nil, fmt.Errorf("unsafe S3 endpoint: %w", err)
				}
			}
			store, err := storage.NewS3Store(ctx, storage.S3Config{
				Region:    cfg.S3Region,
				Endpoint:  cfg.S3Endpoint,
				AccessKey: cfg.S3AccessKey,
				SecretKey: cfg.S3SecretKey,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create S3 store: %w", err)
			}
			s.objects = store
			s.logger.Info("using S3 object storage", "region", cfg.S3Region)
		} else {
			s.objects = storage.NewMemoryStore()
			s.logger.Info("using in-memory object storage (objects will not persist)")
		}
	}

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		assetStore   assets.Store
		jobStore     jobs.Store
		postStore    posts.Store
		quotaStore   quota.Store
		billingStore billing.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		orgStore := org.NewPostgresStore(db)
		if err := orgStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate org store", "error", err)
		}
		s.orgs = orgStore

		userStore := user.NewPostgresStore(db)
		if err := userStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate user store", "error", err)
		}

		qs := quota.NewPostgresStore(db)
		if err := qs.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate quota store", "error", err)
		}
		quotaStore = qs

		as := assets.NewPostgresStore(db)
		if err := as.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate asset store", "error", err)
		}
		assetStore = as

		js := jobs.NewPostgresStore(db)
		if err := js.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate job store", "error", err)
		}
		jobStore = js

		ps := posts.NewPostgresStore(db)
		if err := ps.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate post store", "error", err)
		}
		postStore = ps

		billingStore = billing.NewPostgresStore(db)

		s.checks.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")

		orgStore := org.NewMemoryStore()
		userStore := user.NewMemoryStore()
		s.orgs = orgStore
		quotaStore = quota.NewMemoryStore(orgStore)
		assetStore = assets.NewMemoryStore()
		jobStore = jobs.NewMemoryStore()
		postStore = posts.NewMemoryStore()
		billingStore = billing.NewMemoryStore(orgStore, userStore)
	}

	// Job queue (Redis if REDIS_URL set, otherwise in-process)
	if s.queue == nil {
		if cfg.RedisURL != "" {
			rq, err := queue.NewRedisQueue(cfg.RedisURL, cfg.JobQueue)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to redis: %w", err)
			}
			s.queue = rq
			s.logger.Info("using redis job queue", "key", cfg.JobQueue)

			s.checks.Register("queue", func(ctx context.Context) health.Status {
				if _, err := rq.Depth(ctx); err != nil {
					return health.Status{Name: "queue", Healthy: false, Detail: err.Error()}
				}
				return health.Status{Name: "queue", Healthy: true}
			})
		} else {
			s.queue = queue.NewMemoryQueue(0)
			s.logger.Info("using in-process job queue")
		}
	}

	// Composition provider
	if s.composer == nil {
		if !cfg.MockAI {
			s.logger.Warn("real composition provider not configured, falling back to mock")
		}
		s.composer = compose.NewMockComposer()
	}

	// Core services
	s.ledger = quota.NewLedger(quotaStore, s.logger)
	s.assetSvc = assets.NewService(assetStore, s.objects, cfg.S3BucketRaw, cfg.S3BucketProcessed)
	s.gate = jobs.NewGate(jobStore, s.ledger, s.assetSvc, s.queue, s.logger)
	s.postSvc = posts.NewService(postStore, s.composer)

	// Billing reconciler with optional metadata write-back
	var writeback billing.MetadataWriter
	if cfg.StripeSecretKey != "" {
		api := &client.API{}
		api.Init(cfg.StripeSecretKey, nil)
		writeback = billing.NewStripeMetadataWriter(api)
		s.logger.Info("stripe metadata write-back enabled")
	}
	s.reconciler = billing.NewReconciler(billingStore, s.catalog, writeback, s.logger)
	s.webhook = billing.NewWebhookHandler(cfg.StripeWebhookSecret, s.reconciler, s.logger)

	// Without Redis the API process renders jobs itself
	if cfg.RedisURL == "" {
		s.worker = worker.New(s.queue, jobStore, s.assetSvc, s.objects, s.composer, s.logger)
		s.logger.Info("in-process worker enabled")
	}

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB; images go to presigned URLs, never through us)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	s.rateLimiter = ratelimit.New(ratelimit.DefaultConfig())
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/api", s.infoHandler)

	// Stripe webhook lives outside /v1 so provider config never changes
	s.webhook.RegisterRoutes(&s.router.RouterGroup)

	// V1 API group
	v1 := s.router.Group("/v1")

	v1.GET("/plans", s.plansHandler)
	v1.GET("/orgs/:orgId", s.orgHandler)

	assets.NewHandler(s.assetSvc).RegisterRoutes(v1)
	jobs.NewHandler(s.gate).RegisterRoutes(v1)
	posts.NewHandler(s.postSvc).RegisterRoutes(v1)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "recontent",
		"description": "Real-estate photo composition and social content backend",
		"version":     "0.1.0",
	})
}

// plansHandler returns the plan catalogue with weekly quota limits
func (s *Server) plansHandler(c *gin.Context) {
	out := make([]gin.H, 0, len(plan.Plans))
	for _, p := range []plan.Plan{plan.PlanBasic, plan.PlanPro, plan.PlanPremium} {
		cfg := plan.Plans[p]
		out = append(out, gin.H{
			"plan":        cfg.Plan,
			"weeklyLimit": cfg.WeeklyLimit,
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

// orgHandler handles GET /v1/orgs/:orgId
func (s *Server) orgHandler(c *gin.Context) {
	o, err := s.orgs.Get(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		if errors.Is(err, org.ErrOrgNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Organization not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"org": o})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start in-process worker (demo mode, no Redis)
	if s.worker != nil {
		go func() {
			if err := s.worker.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("worker stopped", "error", err)
			}
		}()
	}

	// Sample database pool stats
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for background goroutines (worker, collectors)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	// Drain the queue connection
	if err := s.queue.Close(); err != nil && !errors.Is(err, queue.ErrClosed) {
		s.logger.Error("queue close error", "error", err)
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
