package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/beewatch/backend/internal/db"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/db/repository"
	"github.com/beewatch/backend/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertService stores alert transitions reported by dashboards
type AlertService struct {
	logger    *utils.Logger
	alertRepo repository.AlertRepository
}

// NewAlertService creates a new alert service
func NewAlertService(db *db.Database, logger *utils.Logger) *AlertService {
	repoFactory := repository.NewRepositoryFactory(db.DB)
	return &AlertService{
		logger:    logger.Named("alert_service"),
		alertRepo: repoFactory.Alert(),
	}
}

// Record validates and stores an alert event. Acknowledgement fields sent by
// the client are ignored.
func (s *AlertService) Record(event *models.AlertEvent) error {
	if _, err := uuid.Parse(event.AlertID); err != nil {
		return fmt.Errorf("alert_id must be a UUID: %w", utils.ErrValidation)
	}

	switch event.Kind {
	case models.AlertRaised, models.AlertCleared:
	default:
		return fmt.Errorf("unknown alert kind %q: %w", event.Kind, utils.ErrValidation)
	}

	_, err := s.alertRepo.GetByAlertID(event.AlertID)
	if err == nil {
		return fmt.Errorf("alert %s: %w", event.AlertID, utils.ErrAlreadyExists)
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Error checking alert existence", zap.String("alert_id", event.AlertID), zap.Error(err))
		return err
	}

	event.ID = 0
	event.Acknowledged = false
	event.AckBy = ""
	event.AckTime = nil
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	if err := s.alertRepo.Insert(event); err != nil {
		s.logger.Error("Failed to store alert event", zap.String("alert_id", event.AlertID), zap.Error(err))
		return err
	}

	s.logger.Info("Alert event recorded",
		zap.String("alert_id", event.AlertID),
		zap.String("kind", string(event.Kind)),
		zap.String("source", event.Source))
	return nil
}

// List returns up to limit alert events, newest first
func (s *AlertService) List(limit int, unacknowledgedOnly bool) ([]models.AlertEvent, error) {
	return s.alertRepo.List(limit, unacknowledgedOnly)
}

// Acknowledge marks an alert event as handled by the given actor
func (s *AlertService) Acknowledge(alertID, by string) (*models.AlertEvent, error) {
	if by == "" {
		by = "anonymous"
	}
	event, err := s.alertRepo.Acknowledge(alertID, by)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("Failed to acknowledge alert", zap.String("alert_id", alertID), zap.Error(err))
		}
		return nil, err
	}
	return event, nil
}
