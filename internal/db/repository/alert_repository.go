package repository

import (
	"time"

	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/utils"
	"gorm.io/gorm"
)

// AlertRepository defines operations on recorded alert transitions
type AlertRepository interface {
	Repository
	Insert(event *models.AlertEvent) error
	List(limit int, unacknowledgedOnly bool) ([]models.AlertEvent, error)
	GetByAlertID(alertID string) (*models.AlertEvent, error)
	Acknowledge(alertID string, ackBy string) (*models.AlertEvent, error)
}

// alertRepository implements AlertRepository
type alertRepository struct {
	BaseRepository
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Insert stores an alert event
func (r *alertRepository) Insert(event *models.AlertEvent) error {
	if event == nil || event.AlertID == "" {
		return ErrInvalidInput
	}
	return r.handleError(r.GetDB().Create(event).Error)
}

// List returns the newest alert events first
func (r *alertRepository) List(limit int, unacknowledgedOnly bool) ([]models.AlertEvent, error) {
	var events []models.AlertEvent

	query := r.GetDB().Order("time desc").Order("id desc")
	if unacknowledgedOnly {
		query = query.Where("acknowledged = ?", false)
	}

	if err := utils.ApplyLimit(query, limit).Find(&events).Error; err != nil {
		return nil, r.handleError(err)
	}

	return events, nil
}

// GetByAlertID looks up a single event by its public id
func (r *alertRepository) GetByAlertID(alertID string) (*models.AlertEvent, error) {
	var event models.AlertEvent
	if err := r.GetDB().Where("alert_id = ?", alertID).First(&event).Error; err != nil {
		return nil, r.handleError(err)
	}
	return &event, nil
}

// Acknowledge marks an alert event as acknowledged
func (r *alertRepository) Acknowledge(alertID string, ackBy string) (*models.AlertEvent, error) {
	event, err := r.GetByAlertID(alertID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = r.GetDB().Model(event).Updates(map[string]interface{}{
		"acknowledged": true,
		"ack_by":       ackBy,
		"ack_time":     now,
	}).Error
	if err != nil {
		return nil, r.handleError(err)
	}

	event.Acknowledged = true
	event.AckBy = ackBy
	event.AckTime = &now
	return event, nil
}
