package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"companion-call-demo/backend/api"
	apihandlers "companion-call-demo/backend/internal/api"
	"companion-call-demo/backend/internal/ws"
	"companion-call-demo/backend/pkg/config"
	"companion-call-demo/backend/pkg/di"
	"companion-call-demo/backend/pkg/errors"
	"companion-call-demo/backend/pkg/logger"
	"companion-call-demo/backend/pkg/middleware"
	"companion-call-demo/backend/pkg/observability"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container and installs the
// middleware chain
func New(container *di.Container) *Router {
	cfg := container.Config

	// Configure Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.LogError(err, "invalid trusted proxies, trusting none")
		_ = engine.SetTrustedProxies(nil)
	}

	// Request id first so every later middleware can log it
	engine.Use(middleware.RequestID())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(observability.Middleware())
	engine.Use(container.Metrics.Middleware())
	engine.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	engine.Use(bodyLimit(cfg.Security.MaxBodySize))

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container

	// Operational endpoints are not rate limited
	r.Engine.GET("/health", c.Health.Handler())
	r.Engine.GET("/api/health", c.Health.Handler())
	r.Engine.GET("/metrics", gin.WrapH(c.Metrics.Handler()))
	r.Engine.GET("/api/docs/openapi.yaml", func(ctx *gin.Context) {
		ctx.Data(http.StatusOK, "application/yaml", api.OpenAPI)
	})

	limited := r.Engine.Group("/", c.RateLimiter.Middleware(), c.Validator.Middleware())

	v1 := limited.Group("/api")
	apihandlers.NewCompanionHandler(c.Directory).RegisterRoutes(v1)
	apihandlers.NewCallHandler(c.Rooms, c.Directory, r.Config.Server.BaseURL).RegisterRoutes(v1)

	ws.NewHandler(c.Rooms, r.Config.Security.AllowedOrigins, c.Metrics, r.Logger).RegisterRoutes(limited)

	r.Engine.NoRoute(func(ctx *gin.Context) {
		_ = ctx.Error(errors.NewNotFoundError(errors.CodeNotFound, "No such route"))
	})
}

// bodyLimit caps request bodies at n bytes
func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
