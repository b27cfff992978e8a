package alert

import (
	"context"
	"time"

	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/metrics"
	"github.com/google/uuid"
)

// Event reports an edge of the combined alert
type Event struct {
	ID         string                `json:"alert_id"`
	Kind       models.AlertEventKind `json:"kind"`
	Time       time.Time             `json:"time"`
	State      State                 `json:"state"`
	WindowMean float64               `json:"window_mean"`
	Noise      *float64              `json:"latest_noise,omitempty"`
	Thresholds Thresholds            `json:"thresholds"`
}

// NewEvent builds an event for a transition observed at now
func NewEvent(kind models.AlertEventKind, st State, s metrics.Snapshot, th Thresholds, now time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Time:       now.UTC(),
		State:      st,
		WindowMean: s.WindowMean,
		Noise:      s.LatestNoise,
		Thresholds: th,
	}
}

// Title is a short human-readable summary used by push and log sinks
func (e Event) Title() string {
	if e.Kind == models.AlertCleared {
		return "Hive alert cleared"
	}
	switch {
	case e.State.ActivityAlert && e.State.NoiseAlert:
		return "Hive alert: high activity and noise"
	case e.State.NoiseAlert:
		return "Hive alert: noise above ceiling"
	default:
		return "Hive alert: high activity"
	}
}

// Record converts the event into its stored form
func (e Event) Record(source string) *models.AlertEvent {
	return &models.AlertEvent{
		AlertID:       e.ID,
		Time:          e.Time,
		Kind:          e.Kind,
		ActivityAlert: e.State.ActivityAlert,
		NoiseAlert:    e.State.NoiseAlert,
		WindowMean:    e.WindowMean,
		LatestNoise:   e.Noise,
		Threshold:     e.Thresholds.ActivityThreshold,
		NoiseCeiling:  e.Thresholds.NoiseCeiling,
		Source:        source,
	}
}

// Emitter accepts alert events without blocking the caller
type Emitter interface {
	Emit(e Event)
}

// Sink delivers alert events to one destination
type Sink interface {
	Name() string
	Publish(ctx context.Context, e Event) error
}
