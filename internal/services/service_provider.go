package services

import (
	"context"
	"fmt"

	"github.com/beewatch/backend/internal/config"
	"github.com/beewatch/backend/internal/db"
	"github.com/beewatch/backend/internal/hiveapi"
	"github.com/beewatch/backend/internal/kafka"
	"github.com/beewatch/backend/internal/utils"
	"go.uber.org/zap"
)

// ServiceProvider manages all services for the API server
type ServiceProvider struct {
	logger   *utils.Logger
	config   *config.Config
	database *db.Database

	producer          *kafka.Producer
	readingService    *ReadingService
	predictionService *PredictionService
	alertService      *AlertService
	simulatorService  *SimulatorService
}

// NewServiceProvider creates a new service provider
func NewServiceProvider(
	logger *utils.Logger,
	config *config.Config,
	database *db.Database,
) *ServiceProvider {
	return &ServiceProvider{
		logger:   logger.Named("services"),
		config:   config,
		database: database,
	}
}

// Initialize initializes all services
func (sp *ServiceProvider) Initialize(ctx context.Context) error {
	var publisher ReadingPublisher
	if sp.config.Kafka.Enabled {
		producer, err := kafka.NewProducer(&sp.config.Kafka, "beewatch-api", sp.logger)
		if err != nil {
			return fmt.Errorf("failed to create Kafka producer: %w", err)
		}
		sp.producer = producer
		publisher = kafka.NewReadingPublisher(producer, sp.config.Kafka.ReadingsTopic)
		sp.logger.Info("Publishing readings to Kafka", zap.String("topic", sp.config.Kafka.ReadingsTopic))
	}

	sp.readingService = NewReadingService(sp.database, NewGenerator(0), publisher, sp.logger)
	sp.logger.Info("Reading service initialized")

	var predictor Predictor
	if sp.config.ML.URL != "" {
		client, err := hiveapi.NewClient(sp.config.ML.Timeout, sp.logger)
		if err != nil {
			return fmt.Errorf("failed to create model client: %w", err)
		}
		predictor = client
		sp.logger.Info("Prediction model configured", zap.String("url", sp.config.ML.URL))
	} else {
		sp.logger.Warn("No prediction model configured, prediction endpoints will return 503")
	}
	sp.predictionService = NewPredictionService(sp.database, predictor, sp.config.ML.URL, sp.logger)

	sp.alertService = NewAlertService(sp.database, sp.logger)
	sp.logger.Info("Alert service initialized")

	if sp.config.Simulator.Enabled {
		sp.simulatorService = NewSimulatorService(
			sp.readingService,
			sp.config.Simulator.Interval,
			sp.config.Simulator.DeviceID,
			sp.logger,
		)
		sp.simulatorService.Start(ctx)
	}

	sp.logger.Info("All services initialized successfully")
	return nil
}

// Shutdown performs a graceful shutdown of all services
func (sp *ServiceProvider) Shutdown() error {
	sp.logger.Info("Shutting down services")

	if sp.simulatorService != nil {
		sp.simulatorService.Stop()
	}

	if sp.producer != nil {
		sp.logger.Info("Closing Kafka producer")
		sp.producer.Close()
	}

	sp.logger.Info("Services shut down successfully")
	return nil
}

// GetReadingService returns the reading service
func (sp *ServiceProvider) GetReadingService() *ReadingService {
	return sp.readingService
}

// GetPredictionService returns the prediction service
func (sp *ServiceProvider) GetPredictionService() *PredictionService {
	return sp.predictionService
}

// GetAlertService returns the alert service
func (sp *ServiceProvider) GetAlertService() *AlertService {
	return sp.alertService
}

// GetSimulatorService returns the simulator, or nil when it is disabled
func (sp *ServiceProvider) GetSimulatorService() *SimulatorService {
	return sp.simulatorService
}
