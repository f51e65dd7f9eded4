package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DiscourseLens/internal/interfaces/http/handlers"
	"github.com/turtacn/DiscourseLens/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.  Nil handlers leave their routes unregistered.
type RouterConfig struct {
	AnalysisHandler *handlers.AnalysisHandler
	ClusterHandler  *handlers.ClusterHandler
	HealthHandler   *handlers.HealthHandler

	// CORS is applied when non-nil.
	CORS *middleware.CORSConfig
	// RateLimit guards /api/v1 when non-nil.
	RateLimit   *middleware.RateLimitConfig
	Logging     middleware.LoggingConfig
	MaxBodySize int64

	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter builds the gin engine: global middleware, public health and
// metrics endpoints, and the /api/v1 resource group.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	if cfg.RateLimit != nil {
		api.Use(middleware.RateLimit(*cfg.RateLimit))
	}
	api.Use(middleware.BodyLimit(cfg.MaxBodySize))
	registerAnalysisRoutes(api, cfg.AnalysisHandler)
	registerClusterRoutes(api, cfg.ClusterHandler)
	return r
}

func registerAnalysisRoutes(rg *gin.RouterGroup, h *handlers.AnalysisHandler) {
	if h == nil {
		return
	}
	rg.POST("/analyses", h.Analyze)
}

func registerClusterRoutes(rg *gin.RouterGroup, h *handlers.ClusterHandler) {
	if h == nil {
		return
	}
	rg.GET("/clusters", h.Get)
	rg.PUT("/clusters", h.Replace)
	rg.PUT("/topics", h.SetTopics)
}
