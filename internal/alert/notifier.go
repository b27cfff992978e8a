package alert

import (
	"time"

	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/metrics"
	"github.com/beewatch/backend/internal/utils"
	"go.uber.org/zap"
)

// Notifier evaluates snapshots and keeps the alarm in step with the
// combined alert. It is owned by a single session goroutine and is not safe
// for concurrent use.
type Notifier struct {
	logger     *utils.Logger
	thresholds Thresholds
	factory    HandleFactory
	emitter    Emitter
	now        func() time.Time

	handle        Handle
	factoryFailed bool
	permitted     bool

	last  metrics.Snapshot
	state State
}

// NewNotifier creates a notifier. factory and emitter may be nil, in which
// case no alarm is created or no events are emitted.
func NewNotifier(th Thresholds, factory HandleFactory, emitter Emitter, logger *utils.Logger) *Notifier {
	return &Notifier{
		logger:     logger.Named("alert_notifier"),
		thresholds: th,
		factory:    factory,
		emitter:    emitter,
		now:        time.Now,
		last:       metrics.Snapshot{LatestNoiseStatus: metrics.NoData},
	}
}

// Update evaluates a new snapshot and applies the alarm side effects
func (n *Notifier) Update(s metrics.Snapshot) State {
	n.last = s
	return n.apply()
}

// SetAudioPermission records the user's consent and re-evaluates the last
// snapshot so the alarm starts or stops immediately.
func (n *Notifier) SetAudioPermission(allowed bool) State {
	if allowed && !n.permitted {
		n.factoryFailed = false
	}
	n.permitted = allowed
	return n.apply()
}

// AudioPermitted reports the current consent
func (n *Notifier) AudioPermitted() bool {
	return n.permitted
}

// State returns the most recent alert state
func (n *Notifier) State() State {
	return n.state
}

// Thresholds returns the thresholds in use
func (n *Notifier) Thresholds() Thresholds {
	return n.thresholds
}

// Playback reports whether the alarm exists and is playing
func (n *Notifier) Playback() Playback {
	switch {
	case n.handle == nil:
		return Idle
	case n.handle.Playing():
		return Sounding
	default:
		return Silent
	}
}

// Close releases the alarm handle
func (n *Notifier) Close() error {
	if n.handle == nil {
		return nil
	}
	err := n.handle.Close()
	n.handle = nil
	return err
}

func (n *Notifier) apply() State {
	prev := n.state
	st := Evaluate(n.last, n.thresholds, n.permitted)
	n.state = st

	n.driveAlarm(st)

	if st.Combined != prev.Combined {
		kind := models.AlertCleared
		if st.Combined {
			kind = models.AlertRaised
		}
		n.logger.Info("Alert state changed",
			zap.String("kind", string(kind)),
			zap.Bool("activity_alert", st.ActivityAlert),
			zap.Bool("noise_alert", st.NoiseAlert),
			zap.Float64("window_mean", n.last.WindowMean),
		)
		if n.emitter != nil {
			n.emitter.Emit(NewEvent(kind, st, n.last, n.thresholds, n.now()))
		}
	}

	return st
}

// driveAlarm plays the alarm while the combined alert holds and consent is
// given, and otherwise pauses it at its start. Failures are logged only.
func (n *Notifier) driveAlarm(st State) {
	if st.Combined && st.AudioPermitted {
		if n.handle == nil {
			if n.factory == nil || n.factoryFailed {
				return
			}
			h, err := n.factory()
			if err != nil {
				n.factoryFailed = true
				n.logger.Warn("Failed to create alarm", zap.Error(err))
				return
			}
			h.SetLoop(true)
			n.handle = h
		}
		if !n.handle.Playing() {
			if err := n.handle.Play(); err != nil {
				n.logger.Warn("Failed to play alarm", zap.Error(err))
			}
		}
		return
	}

	if n.handle != nil && n.handle.Playing() {
		n.handle.Pause()
		n.handle.Rewind()
	}
}
