package push

import (
	"testing"
	"time"

	"github.com/beewatch/backend/internal/alert"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/metrics"
	"github.com/beewatch/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSink_Validation(t *testing.T) {
	_, err := NewSink(nil, time.Second, utils.NewNopLogger())
	assert.Error(t, err)

	_, err = NewSink([]string{"notaservice://token@host"}, time.Second, utils.NewNopLogger())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "token")
	assert.ErrorIs(t, err, utils.ErrBadRequest)
}

func TestMessage(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	noise := 84.5
	snap := metrics.Snapshot{WindowMean: 590, LatestNoise: &noise}
	th := alert.Thresholds{ActivityThreshold: 580, NoiseCeiling: 80, TrackNoise: true}
	st := alert.Evaluate(snap, th, false)

	raised := alert.NewEvent(models.AlertRaised, st, snap, th, at)
	assert.Equal(t,
		"Alert raised at 2026-05-01T12:00:00Z. Active bees (window mean): 590.0, threshold 580. Noise: 84.5 dB, ceiling 80 dB.",
		Message(raised))
	assert.Equal(t, "Hive alert: high activity and noise", raised.Title())

	cleared := alert.NewEvent(models.AlertCleared, alert.State{}, metrics.Snapshot{WindowMean: 120}, th, at)
	assert.Equal(t,
		"Hive back to normal at 2026-05-01T12:00:00Z. Active bees (window mean): 120.0, threshold 580.",
		Message(cleared))
}
