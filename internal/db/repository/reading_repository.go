package repository

import (
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/utils"
	"gorm.io/gorm"
)

// ReadingRepository defines operations on stored hive readings
type ReadingRepository interface {
	Repository
	Insert(reading *models.Reading) error
	// Latest returns up to limit readings, newest first
	Latest(limit int) ([]models.Reading, error)
	Stats() (*models.ReadingStats, error)
	Count() (int64, error)
}

// readingRepository implements ReadingRepository
type readingRepository struct {
	BaseRepository
}

// NewReadingRepository creates a new reading repository
func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Insert stores a single reading
func (r *readingRepository) Insert(reading *models.Reading) error {
	if reading == nil {
		return ErrInvalidInput
	}
	return r.handleError(r.GetDB().Create(reading).Error)
}

// Latest returns the most recent readings ordered newest first
func (r *readingRepository) Latest(limit int) ([]models.Reading, error) {
	var readings []models.Reading

	query := utils.ApplyLimit(r.GetDB().Order("timestamp desc").Order("id desc"), limit)
	if err := query.Find(&readings).Error; err != nil {
		return nil, r.handleError(err)
	}

	return readings, nil
}

// Stats counts all readings and the high activity ones
func (r *readingRepository) Stats() (*models.ReadingStats, error) {
	var stats models.ReadingStats

	if err := r.GetDB().Model(&models.Reading{}).Count(&stats.Total).Error; err != nil {
		return nil, r.handleError(err)
	}

	if err := r.GetDB().Model(&models.Reading{}).
		Where("atividade_alta = ?", 1).
		Count(&stats.High).Error; err != nil {
		return nil, r.handleError(err)
	}

	stats.Low = stats.Total - stats.High
	return &stats, nil
}

// Count returns the number of stored readings
func (r *readingRepository) Count() (int64, error) {
	var count int64
	err := r.GetDB().Model(&models.Reading{}).Count(&count).Error
	return count, r.handleError(err)
}
