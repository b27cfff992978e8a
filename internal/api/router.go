package api

import (
	"net/http"

	"github.com/beewatch/backend/internal/api/controllers"
	"github.com/beewatch/backend/internal/api/middleware"
	"github.com/beewatch/backend/internal/config"
	"github.com/beewatch/backend/internal/services"
	"github.com/beewatch/backend/internal/telemetry"
	"github.com/beewatch/backend/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// ServiceName identifies the API in the root response and metrics
const ServiceName = "beewatch-api"

// Router manages the API routes and controllers
type Router struct {
	engine          *gin.Engine
	logger          *utils.Logger
	config          *config.Config
	authMiddleware  *middleware.AuthMiddleware
	serviceProvider *services.ServiceProvider
	registry        *prometheus.Registry

	dataController       *controllers.DataController
	predictionController *controllers.PredictionController
	alertController      *controllers.AlertController
}

// NewRouter creates a new Router instance. registry may be nil, in which
// case no metrics are collected.
func NewRouter(
	config *config.Config,
	logger *utils.Logger,
	serviceProvider *services.ServiceProvider,
	registry *prometheus.Registry,
) (*Router, error) {
	// Set Gin mode based on environment
	if config.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.LoggingMiddleware(logger))

	if registry != nil {
		httpMetrics, err := telemetry.NewHTTPMetrics(registry, ServiceName)
		if err != nil {
			return nil, err
		}
		engine.Use(httpMetrics.Middleware())
	}

	// Sensors and dashboards call from any origin
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Authorization", "Content-Type", "Origin"}
	engine.Use(cors.New(corsConfig))

	return &Router{
		engine:          engine,
		logger:          logger.Named("router"),
		config:          config,
		authMiddleware:  middleware.NewAuthMiddleware(&config.JWT),
		serviceProvider: serviceProvider,
		registry:        registry,
	}, nil
}

// SetupRoutes configures all API routes
func (r *Router) SetupRoutes() {
	r.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "service": ServiceName})
	})
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	if r.registry != nil {
		r.engine.GET("/metrics", gin.WrapH(telemetry.Handler(r.registry)))
	}

	r.dataController = controllers.NewDataController(r.serviceProvider.GetReadingService(), &r.config.Data, r.logger)
	r.predictionController = controllers.NewPredictionController(r.serviceProvider.GetPredictionService(), r.logger)
	r.alertController = controllers.NewAlertController(r.serviceProvider.GetAlertService(), r.logger)

	api := r.engine.Group("/api")

	data := api.Group("/data")
	r.dataController.RegisterRoutes(data)
	data.POST("/predicao", r.predictionController.Predict)

	ingest := []gin.HandlerFunc{r.authMiddleware.RequireDevice()}
	if r.config.RateLimit.Enabled {
		ingest = append(ingest, middleware.NewRateLimiter(&r.config.RateLimit).Middleware())
	}
	ingest = append(ingest, r.dataController.Ingest)
	data.POST("/ingest", ingest...)

	api.POST("/predicao", r.predictionController.Predict)
	r.predictionController.RegisterRoutes(api.Group("/predicoes"))

	alerts := api.Group("/alerts")
	alerts.Use(r.authMiddleware.RequireDevice())
	r.alertController.RegisterRoutes(alerts)

	r.logger.Info("API routes setup completed")
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
