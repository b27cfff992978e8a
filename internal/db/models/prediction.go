package models

import (
	"time"
)

// Prediction sources
const (
	PredictionSourceLatest = "latest"
	PredictionSourceManual = "manual"
)

// PredictionRecord stores one classification returned by the model service
type PredictionRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Time           time.Time `gorm:"index;not null" json:"time"`
	Temperature    float64   `gorm:"column:temperatura" json:"temperatura"`
	Humidity       float64   `gorm:"column:umidade" json:"umidade"`
	Pollution      float64   `gorm:"column:poluicao" json:"poluicao"`
	NoiseLevel     *float64  `gorm:"column:ruido_db" json:"ruido_db,omitempty"`
	PredictedLabel string    `gorm:"type:varchar(10);not null" json:"predicted_label"`
	PredictedClass int       `json:"predicted_class"`
	ProbaHigh      float64   `gorm:"column:proba_alta" json:"proba_alta"`
	Source         string    `gorm:"type:varchar(20)" json:"source"`
}

// TableName overrides the table name for PredictionRecord
func (PredictionRecord) TableName() string {
	return "prediction_records"
}
