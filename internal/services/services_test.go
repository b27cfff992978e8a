package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/hiveapi"
	"github.com/beewatch/backend/internal/services"
	"github.com/beewatch/backend/internal/testutil"
	"github.com/beewatch/backend/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	devices []string
	fail    bool
}

func (p *recordingPublisher) PublishReading(_ *models.Reading, deviceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.devices = append(p.devices, deviceID)
	if p.fail {
		return errors.New("broker down")
	}
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.devices)
}

type stubPredictor struct {
	resp *hiveapi.PredictResponse
	err  error
	url  string
}

func (s *stubPredictor) Predict(_ context.Context, url string, _ hiveapi.PredictRequest) (*hiveapi.PredictResponse, error) {
	s.url = url
	return s.resp, s.err
}

func intPtr(v int) *int { return &v }

func TestGenerator_Ranges(t *testing.T) {
	g := services.NewGenerator(42)

	for i := 0; i < 500; i++ {
		r := g.Reading()
		assert.GreaterOrEqual(t, r.Temperature, 15.0)
		assert.LessOrEqual(t, r.Temperature, 40.0)
		assert.GreaterOrEqual(t, r.Humidity, 30.0)
		assert.LessOrEqual(t, r.Humidity, 90.0)
		assert.GreaterOrEqual(t, r.Pollution, 10.0)
		assert.LessOrEqual(t, r.Pollution, 80.0)
		assert.GreaterOrEqual(t, r.ActiveCount, 100)
		assert.LessOrEqual(t, r.ActiveCount, 1000)
		require.NotNil(t, r.NoiseLevel)
		require.NotNil(t, r.NoiseStatus)
		assert.Equal(t, models.ClassifyNoise(*r.NoiseLevel), *r.NoiseStatus)

		label, flag := models.ClassifyActivity(r.ActiveCount)
		assert.Equal(t, label, r.ActivityLabel)
		assert.Equal(t, flag, r.HighActivity)

		n := g.Noise()
		assert.GreaterOrEqual(t, n.NoiseDB, 20)
		assert.LessOrEqual(t, n.NoiseDB, 120)
		assert.Equal(t, models.ClassifyNoise(float64(n.NoiseDB)), n.Status)
	}
}

func TestGenerator_Seeded(t *testing.T) {
	a := services.NewGenerator(7).Reading()
	b := services.NewGenerator(7).Reading()

	assert.Equal(t, a.ActiveCount, b.ActiveCount)
	assert.Equal(t, a.Temperature, b.Temperature)
}

func TestIngestRequest_ToReading(t *testing.T) {
	t.Run("Should derive labels when absent", func(t *testing.T) {
		noise := 85.0
		req := &services.IngestRequest{
			Temperature: 30,
			Humidity:    50,
			Pollution:   20,
			ActiveCount: intPtr(501),
			NoiseLevel:  &noise,
		}

		r, err := req.ToReading()
		require.NoError(t, err)
		assert.Equal(t, models.ActivityHigh, r.ActivityLabel)
		assert.Equal(t, 1, r.HighActivity)
		require.NotNil(t, r.NoiseStatus)
		assert.Equal(t, models.NoiseStatusAlert, *r.NoiseStatus)
		assert.False(t, r.Timestamp.IsZero())
	})

	t.Run("Should keep an explicit label", func(t *testing.T) {
		req := &services.IngestRequest{ActiveCount: intPtr(900), ActivityLabel: models.ActivityLow}

		r, err := req.ToReading()
		require.NoError(t, err)
		assert.Equal(t, models.ActivityLow, r.ActivityLabel)
		assert.Equal(t, 0, r.HighActivity)
	})

	t.Run("Should accept zoneless ISO timestamps", func(t *testing.T) {
		req := &services.IngestRequest{ActiveCount: intPtr(10), Timestamp: "2025-05-01T10:00:00.123456"}

		r, err := req.ToReading()
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 5, 1, 10, 0, 0, 123456000, time.UTC), r.Timestamp)
	})

	t.Run("Should accept RFC3339 timestamps", func(t *testing.T) {
		req := &services.IngestRequest{ActiveCount: intPtr(10), Timestamp: "2025-05-01T12:00:00+02:00"}

		r, err := req.ToReading()
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC), r.Timestamp)
	})

	t.Run("Should reject unparseable timestamps", func(t *testing.T) {
		req := &services.IngestRequest{ActiveCount: intPtr(10), Timestamp: "yesterday"}

		_, err := req.ToReading()
		assert.ErrorIs(t, err, utils.ErrBadRequest)
	})

	t.Run("Should require an active count", func(t *testing.T) {
		_, err := (&services.IngestRequest{}).ToReading()
		assert.ErrorIs(t, err, utils.ErrValidation)
	})
}

func TestReadingService(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	publisher := &recordingPublisher{}
	svc := services.NewReadingService(ts.DB, services.NewGenerator(1), publisher, ts.Logger)

	t.Run("Should return an empty list and zero stats without data", func(t *testing.T) {
		readings, err := svc.List(10)
		require.NoError(t, err)
		assert.Empty(t, readings)

		stats, err := svc.Stats()
		require.NoError(t, err)
		assert.Equal(t, models.ReadingStats{}, *stats)
	})

	t.Run("Should store and publish ingested readings", func(t *testing.T) {
		r, err := svc.Ingest(&services.IngestRequest{
			Temperature: 25,
			Humidity:    60,
			Pollution:   30,
			ActiveCount: intPtr(700),
		}, "hive-1")
		require.NoError(t, err)
		assert.NotZero(t, r.ID)
		assert.Equal(t, []string{"hive-1"}, publisher.devices)
	})

	t.Run("Should store generated readings", func(t *testing.T) {
		r, err := svc.Generate("simulator")
		require.NoError(t, err)
		assert.NotZero(t, r.ID)
		assert.Equal(t, 2, publisher.count())
	})

	t.Run("Should list newest first and count labels", func(t *testing.T) {
		readings, err := svc.List(10)
		require.NoError(t, err)
		require.Len(t, readings, 2)
		assert.Equal(t, 700, readings[1].ActiveCount)

		stats, err := svc.Stats()
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.Total)
		assert.Equal(t, stats.Total, stats.High+stats.Low)
	})

	t.Run("Should store readings even when publishing fails", func(t *testing.T) {
		publisher.fail = true
		defer func() { publisher.fail = false }()

		_, err := svc.Ingest(&services.IngestRequest{ActiveCount: intPtr(100)}, "hive-2")
		assert.NoError(t, err)
	})
}

func TestPredictionService(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	req := hiveapi.PredictRequest{Temperature: 30, Humidity: 55, Pollution: 20}

	t.Run("Should be unavailable without a model", func(t *testing.T) {
		svc := services.NewPredictionService(ts.DB, nil, "", ts.Logger)
		assert.False(t, svc.Enabled())

		_, err := svc.Predict(context.Background(), req, "")
		assert.ErrorIs(t, err, utils.ErrServiceUnavailable)
	})

	t.Run("Should record successful predictions", func(t *testing.T) {
		stub := &stubPredictor{resp: &hiveapi.PredictResponse{Label: "alta", Class: 1, Proba: 0.82}}
		svc := services.NewPredictionService(ts.DB, stub, "http://model/predict", ts.Logger)

		record, err := svc.Predict(context.Background(), req, "")
		require.NoError(t, err)
		assert.Equal(t, "http://model/predict", stub.url)
		assert.Equal(t, "alta", record.PredictedLabel)
		assert.Equal(t, 0.82, record.ProbaHigh)
		assert.Equal(t, models.PredictionSourceManual, record.Source)
		assert.NotZero(t, record.ID)

		latest, err := svc.Latest()
		require.NoError(t, err)
		assert.Equal(t, record.ID, latest.ID)
		assert.Equal(t, 30.0, latest.Temperature)
	})

	t.Run("Should surface model failures without recording", func(t *testing.T) {
		stub := &stubPredictor{err: &hiveapi.APIError{StatusCode: 500, Message: "boom"}}
		svc := services.NewPredictionService(ts.DB, stub, "http://model/predict", ts.Logger)

		before, err := svc.List(0)
		require.NoError(t, err)

		_, err = svc.Predict(context.Background(), req, models.PredictionSourceLatest)
		require.Error(t, err)
		var apiErr *hiveapi.APIError
		assert.ErrorAs(t, err, &apiErr)

		after, err := svc.List(0)
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})
}

func TestAlertService(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	svc := services.NewAlertService(ts.DB, ts.Logger)

	newEvent := func(kind models.AlertEventKind) *models.AlertEvent {
		return &models.AlertEvent{
			AlertID:       uuid.NewString(),
			Kind:          kind,
			ActivityAlert: true,
			WindowMean:    600,
			Threshold:     580,
			NoiseCeiling:  80,
			Source:        "dashboard-test",
		}
	}

	t.Run("Should record and list events", func(t *testing.T) {
		event := newEvent(models.AlertRaised)
		event.Acknowledged = true

		require.NoError(t, svc.Record(event))
		assert.False(t, event.Acknowledged)
		assert.False(t, event.Time.IsZero())

		events, err := svc.List(10, true)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, event.AlertID, events[0].AlertID)
	})

	t.Run("Should reject duplicates", func(t *testing.T) {
		event := newEvent(models.AlertRaised)
		require.NoError(t, svc.Record(event))

		dup := *event
		dup.ID = 0
		assert.ErrorIs(t, svc.Record(&dup), utils.ErrAlreadyExists)
	})

	t.Run("Should validate id and kind", func(t *testing.T) {
		bad := newEvent(models.AlertRaised)
		bad.AlertID = "not-a-uuid"
		assert.ErrorIs(t, svc.Record(bad), utils.ErrValidation)

		bad = newEvent("exploded")
		assert.ErrorIs(t, svc.Record(bad), utils.ErrValidation)
	})

	t.Run("Should acknowledge events", func(t *testing.T) {
		event := newEvent(models.AlertCleared)
		require.NoError(t, svc.Record(event))

		acked, err := svc.Acknowledge(event.AlertID, "")
		require.NoError(t, err)
		assert.True(t, acked.Acknowledged)
		assert.Equal(t, "anonymous", acked.AckBy)
		assert.NotNil(t, acked.AckTime)

		events, err := svc.List(0, true)
		require.NoError(t, err)
		for _, e := range events {
			assert.NotEqual(t, event.AlertID, e.AlertID)
		}
	})

	t.Run("Should report unknown alerts", func(t *testing.T) {
		_, err := svc.Acknowledge(uuid.NewString(), "keeper")
		assert.ErrorIs(t, err, utils.ErrNotFound)
	})
}

func TestSimulatorService(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	publisher := &recordingPublisher{}
	readings := services.NewReadingService(ts.DB, nil, publisher, ts.Logger)

	sim := services.NewSimulatorService(readings, 10*time.Millisecond, "", ts.Logger)
	sim.Start(context.Background())

	assert.Eventually(t, func() bool { return publisher.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	sim.Stop()

	var count int64
	require.NoError(t, ts.DB.Model(&models.Reading{}).Count(&count).Error)
	assert.Equal(t, int64(publisher.count()), count)

	publisher.mu.Lock()
	assert.Equal(t, "simulator", publisher.devices[0])
	publisher.mu.Unlock()
}
