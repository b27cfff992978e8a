package services

import (
	"context"
	"fmt"
	"time"

	"github.com/beewatch/backend/internal/db"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/db/repository"
	"github.com/beewatch/backend/internal/hiveapi"
	"github.com/beewatch/backend/internal/utils"
	"go.uber.org/zap"
)

// Predictor classifies hive features
type Predictor interface {
	Predict(ctx context.Context, url string, req hiveapi.PredictRequest) (*hiveapi.PredictResponse, error)
}

// PredictionService delegates classification to the external model service
// and records every result
type PredictionService struct {
	logger         *utils.Logger
	predictionRepo repository.PredictionRepository
	predictor      Predictor
	url            string
	now            func() time.Time
}

// NewPredictionService creates a new prediction service. An empty url
// disables predictions.
func NewPredictionService(db *db.Database, predictor Predictor, url string, logger *utils.Logger) *PredictionService {
	repoFactory := repository.NewRepositoryFactory(db.DB)
	return &PredictionService{
		logger:         logger.Named("prediction_service"),
		predictionRepo: repoFactory.Prediction(),
		predictor:      predictor,
		url:            url,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether a model service is configured
func (s *PredictionService) Enabled() bool {
	return s.predictor != nil && s.url != ""
}

// Predict classifies req and stores the outcome
func (s *PredictionService) Predict(ctx context.Context, req hiveapi.PredictRequest, source string) (*models.PredictionRecord, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("no prediction model configured: %w", utils.ErrServiceUnavailable)
	}

	resp, err := s.predictor.Predict(ctx, s.url, req)
	if err != nil {
		s.logger.Warn("Prediction request failed", zap.Error(err))
		return nil, fmt.Errorf("prediction model failed: %w", err)
	}

	if source == "" {
		source = models.PredictionSourceManual
	}

	record := &models.PredictionRecord{
		Time:           s.now(),
		Temperature:    req.Temperature,
		Humidity:       req.Humidity,
		Pollution:      req.Pollution,
		NoiseLevel:     req.Noise,
		PredictedLabel: resp.Label,
		PredictedClass: resp.Class,
		ProbaHigh:      resp.Proba,
		Source:         source,
	}

	// The classification is still returned when it cannot be recorded
	if err := s.predictionRepo.Insert(record); err != nil {
		s.logger.Error("Failed to record prediction", zap.Error(err))
	}

	return record, nil
}

// Latest returns the most recent recorded prediction
func (s *PredictionService) Latest() (*models.PredictionRecord, error) {
	return s.predictionRepo.Latest()
}

// List returns up to limit recorded predictions, newest first
func (s *PredictionService) List(limit int) ([]models.PredictionRecord, error) {
	return s.predictionRepo.List(limit)
}
