package models

import (
	"time"
)

// AlertEventKind distinguishes the two edges of the combined alert
type AlertEventKind string

const (
	AlertRaised  AlertEventKind = "raised"
	AlertCleared AlertEventKind = "cleared"
)

// AlertEvent records a transition of the dashboard's combined alert
type AlertEvent struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AlertID       string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"alert_id"`
	Time          time.Time      `gorm:"index;not null" json:"time"`
	Kind          AlertEventKind `gorm:"type:varchar(10);not null" json:"kind"`
	ActivityAlert bool           `json:"activity_alert"`
	NoiseAlert    bool           `json:"noise_alert"`
	WindowMean    float64        `json:"window_mean"`
	LatestNoise   *float64       `json:"latest_noise,omitempty"`
	Threshold     float64        `json:"threshold"`
	NoiseCeiling  float64        `json:"noise_ceiling"`
	Source        string         `gorm:"type:varchar(100)" json:"source"`
	Acknowledged  bool           `gorm:"default:false" json:"acknowledged"`
	AckBy         string         `json:"ack_by,omitempty"`
	AckTime       *time.Time     `json:"ack_time,omitempty"`
}

// TableName overrides the table name for AlertEvent
func (AlertEvent) TableName() string {
	return "alert_events"
}
