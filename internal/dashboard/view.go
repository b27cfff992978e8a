// Package dashboard runs the monitoring session and serves its state over
// HTTP and websockets.
package dashboard

import (
	"time"

	"github.com/beewatch/backend/internal/alert"
	"github.com/beewatch/backend/internal/metrics"
	"github.com/beewatch/backend/internal/prediction"
)

// LoadError is shown while the most recent data fetch has failed
const LoadError = "failed to load data"

// Settings echoes the configuration the session evaluates with
type Settings struct {
	Thresholds     alert.Thresholds `json:"thresholds"`
	WindowSize     int              `json:"window_size"`
	PollIntervalMs int64            `json:"poll_interval_ms"`
	AutoPredict    bool             `json:"auto_predict"`
}

// View is an immutable rendering of the session state. A new View is
// published after every change; callers must not modify one they receive.
type View struct {
	Loading      bool                   `json:"loading"`
	Error        string                 `json:"error,omitempty"`
	Metrics      metrics.Snapshot       `json:"metrics"`
	Alert        alert.State            `json:"alert"`
	Playback     alert.Playback         `json:"playback"`
	Prediction   *prediction.Prediction `json:"prediction,omitempty"`
	Series       []metrics.Point        `json:"series"`
	Distribution []metrics.Bucket       `json:"distribution"`
	Settings     Settings               `json:"settings"`
	UpdatedAt    time.Time              `json:"updated_at"`
}
