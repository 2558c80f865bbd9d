// Package router assembles the gin engine from the composed application.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "workorders_backend/internal/http"
	"workorders_backend/internal/http/middleware"
	"workorders_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	healthTimeout = 2 * time.Second

	// State-changing requests per client IP.
	writeRatePerSecond = 5
	writeBurst         = 20
)

// New builds the HTTP engine, mounts shared middleware and lets every module
// register its routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	if app.Logger != nil {
		engine.Use(httpkit.RequestLogger(app.Logger))
	}
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	engine.GET("/api/health", healthHandler(app.Health))

	v1 := engine.Group("/api/v1")
	authMiddleware := httpkit.AuthRequired(app.Config)
	protected := v1.Group("")
	protected.Use(authMiddleware)
	admin := protected.Group("/admin")
	admin.Use(httpkit.RequireRole("admin"))

	routerCtx := &apphttp.RouterContext{
		Engine:         engine,
		V1:             v1,
		Protected:      protected,
		Admin:          admin,
		Config:         app.Config,
		AuthMiddleware: authMiddleware,
		WriteLimiter:   httpkit.NewIPRateLimiter(rate.Limit(writeRatePerSecond), writeBurst, app.Logger),
	}

	for _, module := range app.Modules {
		if app.Logger != nil {
			app.Logger.Debug("registering module routes", "module", module.Name())
		}
		module.RegisterRoutes(routerCtx)
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
		return corsCfg
	}
	corsCfg.AllowOrigins = cfg.GetCORSOrigins()
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	}
	return corsCfg
}

func healthHandler(checks []apphttp.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				httpkit.JSON(c, http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		httpkit.OK(c, gin.H{"status": "ok"})
	}
}
