// Package alert turns metric snapshots into alert conditions and drives the
// audible alarm.
package alert

import (
	"github.com/beewatch/backend/internal/metrics"
)

// Thresholds configures alert evaluation
type Thresholds struct {
	// ActivityThreshold triggers when the window mean reaches it (inclusive)
	ActivityThreshold float64 `json:"activity_threshold"`
	// NoiseCeiling triggers when the latest noise level exceeds it (strict)
	NoiseCeiling float64 `json:"noise_ceiling"`
	// TrackNoise folds the noise alert into the combined alert
	TrackNoise bool `json:"track_noise"`
}

// State is the alert condition derived from one snapshot
type State struct {
	ActivityAlert  bool `json:"activity_alert"`
	NoiseAlert     bool `json:"noise_alert"`
	Combined       bool `json:"combined_alert"`
	Visual         bool `json:"visual_alert"`
	AudioPermitted bool `json:"audio_permitted"`
}

// Evaluate derives the alert state for a snapshot
func Evaluate(s metrics.Snapshot, th Thresholds, audioPermitted bool) State {
	st := State{AudioPermitted: audioPermitted}

	st.ActivityAlert = s.WindowMean >= th.ActivityThreshold
	if s.LatestNoise != nil {
		st.NoiseAlert = *s.LatestNoise > th.NoiseCeiling
	}

	st.Combined = st.ActivityAlert
	if th.TrackNoise {
		st.Combined = st.Combined || st.NoiseAlert
	}

	// The visual indicator has no timer of its own
	st.Visual = st.Combined
	return st
}
