package dashboard

import (
	"net/http"

	"github.com/beewatch/backend/internal/api/middleware"
	"github.com/beewatch/backend/internal/config"
	"github.com/beewatch/backend/internal/telemetry"
	"github.com/beewatch/backend/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// NewRouter builds the dashboard HTTP engine
func NewRouter(cfg *config.Config, logger *utils.Logger, controller *Controller, registry *prometheus.Registry, httpMetrics *telemetry.HTTPMetrics) *gin.Engine {
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.LoggingMiddleware(logger))
	if httpMetrics != nil {
		engine.Use(httpMetrics.Middleware())
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Origin"}
	engine.Use(cors.New(corsConfig))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	if registry != nil {
		engine.GET("/metrics", gin.WrapH(telemetry.Handler(registry)))
	}
	engine.GET("/ws", controller.ServeWS)

	controller.RegisterRoutes(engine.Group("/api/dashboard"))

	return engine
}
