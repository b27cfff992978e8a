package services

import (
	"fmt"
	"time"

	"github.com/beewatch/backend/internal/db"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/db/repository"
	"github.com/beewatch/backend/internal/utils"
	"go.uber.org/zap"
)

// IngestRequest is the body accepted by the ingest endpoint
type IngestRequest struct {
	Timestamp     string   `json:"timestamp"`
	Temperature   float64  `json:"temperatura" binding:"gte=-50,lte=80"`
	Humidity      float64  `json:"umidade" binding:"gte=0,lte=100"`
	Pollution     float64  `json:"poluicao" binding:"gte=0"`
	ActiveCount   *int     `json:"abelhas_ativas" binding:"required,gte=0"`
	ActivityLabel string   `json:"atividade" binding:"omitempty,oneof=alta baixa"`
	NoiseLevel    *float64 `json:"ruido_db" binding:"omitempty,gte=0"`
	NoiseStatus   *string  `json:"status_ruido" binding:"omitempty,max=50"`
}

// ToReading converts the request into an unsaved reading
func (req *IngestRequest) ToReading() (*models.Reading, error) {
	if req.ActiveCount == nil {
		return nil, fmt.Errorf("abelhas_ativas is required: %w", utils.ErrValidation)
	}

	r := &models.Reading{
		Temperature:   req.Temperature,
		Humidity:      req.Humidity,
		Pollution:     req.Pollution,
		ActiveCount:   *req.ActiveCount,
		ActivityLabel: req.ActivityLabel,
		NoiseLevel:    req.NoiseLevel,
		NoiseStatus:   req.NoiseStatus,
	}

	if req.Timestamp != "" {
		ts, err := parseTimestamp(req.Timestamp)
		if err != nil {
			return nil, err
		}
		r.Timestamp = ts
	}

	r.Derive()
	return r, nil
}

func parseTimestamp(s string) (time.Time, error) {
	ts, err := models.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", err, utils.ErrBadRequest)
	}
	return ts, nil
}

// ReadingPublisher forwards stored readings downstream
type ReadingPublisher interface {
	PublishReading(r *models.Reading, deviceID string) error
}

// ReadingService handles hive reading storage and simulation
type ReadingService struct {
	logger      *utils.Logger
	readingRepo repository.ReadingRepository
	generator   *Generator
	publisher   ReadingPublisher
}

// NewReadingService creates a new reading service. publisher may be nil.
func NewReadingService(db *db.Database, generator *Generator, publisher ReadingPublisher, logger *utils.Logger) *ReadingService {
	repoFactory := repository.NewRepositoryFactory(db.DB)
	if generator == nil {
		generator = NewGenerator(0)
	}
	return &ReadingService{
		logger:      logger.Named("reading_service"),
		readingRepo: repoFactory.Reading(),
		generator:   generator,
		publisher:   publisher,
	}
}

// List returns up to limit readings, newest first
func (s *ReadingService) List(limit int) ([]models.Reading, error) {
	readings, err := s.readingRepo.Latest(limit)
	if err != nil {
		s.logger.Error("Failed to list readings", zap.Int("limit", limit), zap.Error(err))
		return nil, err
	}
	return readings, nil
}

// Stats summarises the activity labels of all stored readings
func (s *ReadingService) Stats() (*models.ReadingStats, error) {
	stats, err := s.readingRepo.Stats()
	if err != nil {
		s.logger.Error("Failed to compute reading stats", zap.Error(err))
		return nil, err
	}
	return stats, nil
}

// Ingest validates and stores a reading sent by a device
func (s *ReadingService) Ingest(req *IngestRequest, deviceID string) (*models.Reading, error) {
	r, err := req.ToReading()
	if err != nil {
		return nil, err
	}
	if err := s.store(r, deviceID); err != nil {
		return nil, err
	}
	return r, nil
}

// Generate stores a simulated reading
func (s *ReadingService) Generate(deviceID string) (*models.Reading, error) {
	r := s.generator.Reading()
	if err := s.store(&r, deviceID); err != nil {
		return nil, err
	}
	return &r, nil
}

// Noise returns a simulated hive noise sample
func (s *ReadingService) Noise() NoiseSample {
	return s.generator.Noise()
}

func (s *ReadingService) store(r *models.Reading, deviceID string) error {
	if err := s.readingRepo.Insert(r); err != nil {
		s.logger.Error("Failed to store reading", zap.String("device_id", deviceID), zap.Error(err))
		return err
	}

	s.logger.Debug("Reading stored",
		zap.Uint("id", r.ID),
		zap.String("device_id", deviceID),
		zap.Int("abelhas_ativas", r.ActiveCount),
		zap.String("atividade", r.ActivityLabel))

	if s.publisher != nil {
		if err := s.publisher.PublishReading(r, deviceID); err != nil {
			s.logger.Warn("Failed to publish reading", zap.Uint("id", r.ID), zap.Error(err))
		}
	}
	return nil
}
