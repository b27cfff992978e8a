package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Activity labels as stored in the atividade column
const (
	ActivityHigh = "alta"
	ActivityLow  = "baixa"
)

// HighActivityCutoff is the active-bee count above which a reading is labelled high
const HighActivityCutoff = 500

// Noise status descriptors derived from the noise level in dB
const (
	NoiseStatusAlert    = "alerta: possível agitação!"
	NoiseStatusModerate = "moderado: atenção"
	NoiseStatusNormal   = "normal"
)

// Reading is one hive sensor sample
type Reading struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Timestamp     time.Time `gorm:"index;not null" json:"timestamp"`
	Temperature   float64   `gorm:"column:temperatura;not null" json:"temperatura"`
	Humidity      float64   `gorm:"column:umidade;not null" json:"umidade"`
	Pollution     float64   `gorm:"column:poluicao;not null" json:"poluicao"`
	ActiveCount   int       `gorm:"column:abelhas_ativas;not null" json:"abelhas_ativas"`
	HighActivity  int       `gorm:"column:atividade_alta;not null" json:"atividade_alta"` // 0/1
	ActivityLabel string    `gorm:"column:atividade;type:varchar(10);not null" json:"atividade"`
	NoiseLevel    *float64  `gorm:"column:ruido_db" json:"ruido_db"`
	NoiseStatus   *string   `gorm:"column:status_ruido;type:varchar(50)" json:"status_ruido"`
}

// timestampLayouts are accepted for reading timestamps. Sensors and the
// hive API often send local ISO times without a zone; those are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a reading timestamp in any accepted layout
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// UnmarshalJSON accepts zone-less timestamps as well as RFC 3339
func (r *Reading) UnmarshalJSON(data []byte) error {
	type plain Reading
	aux := struct {
		*plain
		Timestamp string `json:"timestamp"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp == "" {
		return nil
	}
	ts, err := ParseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	r.Timestamp = ts
	return nil
}

// TableName overrides the table name for Reading
func (Reading) TableName() string {
	return "abelhas_data"
}

// IsHigh reports whether the reading carries the high activity label
func (r Reading) IsHigh() bool {
	return r.ActivityLabel == ActivityHigh
}

// ClassifyActivity returns the label and flag for an active-bee count
func ClassifyActivity(activeCount int) (string, int) {
	if activeCount > HighActivityCutoff {
		return ActivityHigh, 1
	}
	return ActivityLow, 0
}

// ClassifyNoise returns the status descriptor for a noise level in dB
func ClassifyNoise(db float64) string {
	switch {
	case db > 80:
		return NoiseStatusAlert
	case db > 60:
		return NoiseStatusModerate
	default:
		return NoiseStatusNormal
	}
}

// Derive fills the activity label and noise status when they are missing
func (r *Reading) Derive() {
	if r.ActivityLabel == "" {
		r.ActivityLabel, r.HighActivity = ClassifyActivity(r.ActiveCount)
	} else if r.ActivityLabel == ActivityHigh {
		r.HighActivity = 1
	} else {
		r.HighActivity = 0
	}

	if r.NoiseLevel != nil && r.NoiseStatus == nil {
		status := ClassifyNoise(*r.NoiseLevel)
		r.NoiseStatus = &status
	}

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
}

// ReadingStats summarises the activity labels of all stored readings
type ReadingStats struct {
	Total int64 `json:"total"`
	High  int64 `json:"altas"`
	Low   int64 `json:"baixas"`
}
