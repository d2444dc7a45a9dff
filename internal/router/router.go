package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medhq/hospital-api/internal/handler"
	"github.com/medhq/hospital-api/internal/middleware"
	"github.com/medhq/hospital-api/pkg/metrics"
)

// Handler registers a resource's routes on a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// SlotHandler additionally exposes the cached availability read path.
type SlotHandler interface {
	Handler
	RegisterSlotRoutes(*gin.RouterGroup, gin.HandlerFunc)
}

type Router struct {
	engine       *gin.Engine
	auth         *middleware.AuthMiddleware
	rateLimiter  *middleware.RateLimiter
	slotCache    *middleware.ResponseCache
	healthH      *handler.HealthHandler
	appointmentH SlotHandler
	billingH     Handler
	metrics      *metrics.Metrics
}

type Config struct {
	CORS         middleware.CORSConfig
	RateLimit    middleware.RateLimiterConfig
	SlotCacheTTL time.Duration
}

func NewRouter(
	cfg Config,
	auth *middleware.AuthMiddleware,
	healthH *handler.HealthHandler,
	appointmentH SlotHandler,
	billingH Handler,
	m *metrics.Metrics,
) *Router {
	engine := gin.New()

	r := &Router{
		engine:       engine,
		auth:         auth,
		rateLimiter:  middleware.NewRateLimiter(cfg.RateLimit),
		slotCache:    middleware.NewResponseCache(cfg.SlotCacheTTL),
		healthH:      healthH,
		appointmentH: appointmentH,
		billingH:     billingH,
		metrics:      m,
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())
	engine.Use(middleware.CORS(cfg.CORS))
	engine.Use(r.rateLimiter.RateLimit())
	engine.Use(r.instrument())

	return r
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) Setup() {
	r.engine.GET("/health", r.healthH.Health)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	api.Use(r.auth.Authenticate())

	r.appointmentH.RegisterRoutes(api)
	r.appointmentH.RegisterSlotRoutes(api, r.slotCache.Cached())
	r.billingH.RegisterRoutes(api)
}

func (r *Router) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		r.metrics.RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		r.metrics.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		if c.Writer.Status() >= 500 {
			r.metrics.ErrorTotal.WithLabelValues(c.Request.Method, path).Inc()
		}
	}
}
