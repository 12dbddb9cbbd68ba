// Package server is the HTTP surface: webhook ingest, admin backfill and
// reset, evidence upload, health, and metrics.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chainmirror/internal/auth"
	"chainmirror/internal/backfill"
	"chainmirror/internal/config"
	"chainmirror/internal/limiter"
	"chainmirror/internal/metrics"
	"chainmirror/internal/model"
	"chainmirror/internal/storage/postgres"
)

// Store is the persistence surface the handlers need. Nil when the
// deployment has no store configured; handlers degrade per the error policy
// instead of panicking.
type Store interface {
	UpsertEventRecords(ctx context.Context, records []model.EventRecord) (stored, failed int)
	TruncateAll(ctx context.Context) []postgres.TableResult
	Ping(ctx context.Context) error
}

// Crawler runs one backfill invocation.
type Crawler interface {
	Run(ctx context.Context, limit int, before string) (backfill.Result, error)
}

// Reconciler refreshes one account's snapshot row.
type Reconciler interface {
	Reconcile(ctx context.Context, address string) error
}

// Extractor parses a transaction's log lines into domain events.
type Extractor interface {
	ExtractEvents(logLines []string) []model.DomainEvent
}

// Server wires the pipeline components behind the HTTP routes.
type Server struct {
	cfg        config.Config
	logger     *zap.Logger
	verifier   *auth.Verifier
	limiter    *limiter.Limiter
	extractor  Extractor
	store      Store
	crawler    Crawler
	reconciler Reconciler
	metrics    *metrics.Metrics
}

// New builds a Server. store, crawler, and reconciler may be nil when their
// upstream dependency is not configured.
func New(
	cfg config.Config,
	logger *zap.Logger,
	verifier *auth.Verifier,
	lim *limiter.Limiter,
	extractor Extractor,
	store Store,
	crawler Crawler,
	reconciler Reconciler,
	m *metrics.Metrics,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		logger:     logger,
		verifier:   verifier,
		limiter:    lim,
		extractor:  extractor,
		store:      store,
		crawler:    crawler,
		reconciler: reconciler,
		metrics:    m,
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")

	webhooks := api.Group("/webhooks")
	webhooks.GET("/ledger", s.handleWebhookHealth)
	webhooks.POST("/ledger", s.rateLimit(limiter.ClassWebhook), s.handleWebhook)

	admin := api.Group("/admin", s.bearerAuth())
	admin.POST("/backfill", s.rateLimit(limiter.ClassRPC), s.handleBackfill)
	admin.POST("/reconcile", s.rateLimit(limiter.ClassRPC), s.handleReconcile)
	admin.POST("/reset", s.handleReset)

	uploads := api.Group("/uploads")
	uploads.POST("/evidence", s.rateLimit(limiter.ClassUpload), s.handleUpload)

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if s.store != nil {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": err.Error()})
			return
		}
		status["store"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}
