package repository

import (
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/utils"
	"gorm.io/gorm"
)

// PredictionRepository defines operations on recorded predictions
type PredictionRepository interface {
	Repository
	Insert(record *models.PredictionRecord) error
	Latest() (*models.PredictionRecord, error)
	List(limit int) ([]models.PredictionRecord, error)
}

// predictionRepository implements PredictionRepository
type predictionRepository struct {
	BaseRepository
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(db *gorm.DB) PredictionRepository {
	return &predictionRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Insert stores a prediction
func (r *predictionRepository) Insert(record *models.PredictionRecord) error {
	if record == nil {
		return ErrInvalidInput
	}
	return r.handleError(r.GetDB().Create(record).Error)
}

// Latest returns the most recent prediction
func (r *predictionRepository) Latest() (*models.PredictionRecord, error) {
	var record models.PredictionRecord
	err := r.GetDB().Order("time desc").Order("id desc").First(&record).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	return &record, nil
}

// List returns recent predictions, newest first
func (r *predictionRepository) List(limit int) ([]models.PredictionRecord, error) {
	var records []models.PredictionRecord
	query := utils.ApplyLimit(r.GetDB().Order("time desc").Order("id desc"), limit)
	if err := query.Find(&records).Error; err != nil {
		return nil, r.handleError(err)
	}
	return records, nil
}
