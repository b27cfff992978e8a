package repository

import "gorm.io/gorm"

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db             *gorm.DB
	readingRepo    ReadingRepository
	alertRepo      AlertRepository
	predictionRepo PredictionRepository
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(db *gorm.DB) *RepositoryFactory {
	return &RepositoryFactory{
		db: db,
	}
}

// Reading returns the reading repository
func (f *RepositoryFactory) Reading() ReadingRepository {
	if f.readingRepo == nil {
		f.readingRepo = NewReadingRepository(f.db)
	}
	return f.readingRepo
}

// Alert returns the alert repository
func (f *RepositoryFactory) Alert() AlertRepository {
	if f.alertRepo == nil {
		f.alertRepo = NewAlertRepository(f.db)
	}
	return f.alertRepo
}

// Prediction returns the prediction repository
func (f *RepositoryFactory) Prediction() PredictionRepository {
	if f.predictionRepo == nil {
		f.predictionRepo = NewPredictionRepository(f.db)
	}
	return f.predictionRepo
}
