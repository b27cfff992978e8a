package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/beewatch/backend/internal/alert"
	"github.com/beewatch/backend/internal/audio"
	"github.com/beewatch/backend/internal/config"
	"github.com/beewatch/backend/internal/dashboard"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/hiveapi"
	"github.com/beewatch/backend/internal/kafka"
	"github.com/beewatch/backend/internal/mqtt"
	"github.com/beewatch/backend/internal/prediction"
	"github.com/beewatch/backend/internal/push"
	"github.com/beewatch/backend/internal/source"
	"github.com/beewatch/backend/internal/telemetry"
	"github.com/beewatch/backend/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const dashboardDeviceID = "dashboard"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to the configuration directory")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		logger.Info("Received signal, initiating shutdown", zap.String("signal", sig.String()))
		cancel()
	}()

	// Dashboards authenticate like any other device when a secret is set
	var apiOpts []hiveapi.Option
	if cfg.JWT.Secret != "" {
		token, err := models.GenerateDeviceToken(dashboardDeviceID, cfg.JWT.Secret,
			time.Duration(cfg.JWT.ExpirationHours)*time.Hour)
		if err != nil {
			logger.Fatal("Failed to sign dashboard token", zap.Error(err))
		}
		apiOpts = append(apiOpts, hiveapi.WithToken(token))
	}

	client, err := hiveapi.NewClient(cfg.Dashboard.RequestTimeout, logger, apiOpts...)
	if err != nil {
		logger.Fatal("Failed to create API client", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	dashboardMetrics, err := telemetry.NewDashboardMetrics(registry)
	if err != nil {
		logger.Fatal("Failed to register dashboard metrics", zap.Error(err))
	}
	httpMetrics, err := telemetry.NewHTTPMetrics(registry, "beewatch-dashboard")
	if err != nil {
		logger.Fatal("Failed to register HTTP metrics", zap.Error(err))
	}

	// Alert sinks
	sinks := []alert.Sink{alert.NewLogSink(logger)}
	if cfg.Dashboard.AlertsURL != "" {
		sinks = append(sinks, hiveapi.NewAlertSink(client, cfg.Dashboard.AlertsURL, dashboardDeviceID))
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(&cfg.Kafka, "beewatch-dashboard", logger)
		if err != nil {
			logger.Fatal("Failed to create Kafka producer", zap.Error(err))
		}
		sinks = append(sinks, kafka.NewAlertSink(producer, cfg.Kafka.AlertsTopic))
	}

	var mqttSink *mqtt.Sink
	if cfg.MQTT.Enabled {
		mqttSink = mqtt.Connect(cfg.MQTT, logger)
		sinks = append(sinks, mqttSink)
	}

	if cfg.Push.Enabled {
		pushSink, err := push.NewSink(cfg.Push.URLs, cfg.Push.Timeout, logger)
		if err != nil {
			logger.Fatal("Failed to configure push notifications", zap.Error(err))
		}
		sinks = append(sinks, pushSink)
	}

	dispatcher := alert.NewDispatcher(logger, cfg.Dashboard.RequestTimeout, sinks...)
	dispatcher.SetObserver(dashboardMetrics)
	// Stop drains events still queued at shutdown
	dispatcher.Start(context.Background())
	logger.Info("Alert dispatcher started", zap.Strings("sinks", dispatcher.Sinks()))

	// Reading source and prediction client
	pollInterval := cfg.Dashboard.PollInterval()
	poller := source.NewPoller(
		source.NewHTTPFetcher(client, cfg.Dashboard.DataURL, logger),
		pollInterval,
		cfg.Dashboard.RequestTimeout,
		logger,
	)

	var predictor *prediction.Client
	if cfg.Dashboard.PredictURL != "" {
		predictor = prediction.NewClient(client, cfg.Dashboard.PredictURL, cfg.Dashboard.PredictionTTL, logger)
		predictor.SetObserver(dashboardMetrics.RecordPrediction)
	} else {
		logger.Warn("No prediction endpoint configured, predictions disabled")
	}

	session := dashboard.NewSession(dashboard.Options{
		Thresholds: alert.Thresholds{
			ActivityThreshold: cfg.Dashboard.AlertThreshold,
			NoiseCeiling:      cfg.Dashboard.NoiseCeiling,
			TrackNoise:        cfg.Dashboard.TrackNoise,
		},
		WindowSize:     cfg.Dashboard.WindowSize,
		PollInterval:   pollInterval,
		AutoPredict:    cfg.Dashboard.AutoPredict,
		AudioPermitted: cfg.Audio.Permission,
		Alarm:          audio.NewHandleFactory(&cfg.Audio, logger),
		Emitter:        dispatcher,
		Recorder:       dashboardMetrics,
	}, poller, predictor, logger)

	hub := dashboard.NewHub(session, logger)
	session.OnUpdate(hub.Broadcast)

	controller := dashboard.NewController(session, hub, logger)
	engine := dashboard.NewRouter(cfg, logger, controller, registry, httpMetrics)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		session.Run(ctx)
	}()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Dashboard.Host, cfg.Dashboard.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     engine,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		IdleTimeout: time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.Info("Starting dashboard", zap.String("address", serverAddr), zap.String("data_url", cfg.Dashboard.DataURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for cancellation signal
	<-ctx.Done()
	logger.Info("Shutting down dashboard")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}

	// The session and hub exit on the cancelled context
	wg.Wait()

	dispatcher.Stop()
	if mqttSink != nil {
		mqttSink.Close()
	}
	if producer != nil {
		producer.Close()
	}

	logger.Info("Dashboard shutdown complete")
}
