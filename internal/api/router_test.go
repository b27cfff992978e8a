package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beewatch/backend/internal/api"
	"github.com/beewatch/backend/internal/api/controllers"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/services"
	"github.com/beewatch/backend/internal/testutil"
	"github.com/beewatch/backend/internal/utils"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupAPI wires the full router over a fresh database. modelURL may be empty.
func setupAPI(t *testing.T, modelURL string) *testutil.TestSetup {
	t.Helper()

	ts := testutil.NewTestSetup(t)
	ts.Config.ML.URL = modelURL

	sp := services.NewServiceProvider(ts.Logger, ts.Config, ts.DB)
	require.NoError(t, sp.Initialize(context.Background()))
	t.Cleanup(func() { _ = sp.Shutdown() })

	router, err := api.NewRouter(ts.Config, ts.Logger, sp, prometheus.NewRegistry())
	require.NoError(t, err)
	router.SetupRoutes()

	ts.Router = router.GetEngine()
	return ts
}

func newModelServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRootAndHealth(t *testing.T) {
	ts := setupAPI(t, "")

	resp := ts.ExecuteRequest(http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]interface{}
	ts.ParseResponse(resp, &body)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, api.ServiceName, body["service"])

	resp = ts.ExecuteRequest(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.ExecuteRequest(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "beewatch_http_requests_total")
}

func TestData_ListAndStats(t *testing.T) {
	ts := setupAPI(t, "")
	ts.SeedReadings(100, 600, 700, 200, 900)

	t.Run("Should list newest first", func(t *testing.T) {
		resp := ts.ExecuteRequest(http.MethodGet, "/api/data/dados", nil, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var readings []models.Reading
		ts.ParseResponse(resp, &readings)
		require.Len(t, readings, 5)
		assert.Equal(t, 900, readings[0].ActiveCount)
		assert.Equal(t, 100, readings[4].ActiveCount)
	})

	t.Run("Should honour the limit", func(t *testing.T) {
		resp := ts.ExecuteRequest(http.MethodGet, "/api/data/dados?limit=2", nil, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var readings []models.Reading
		ts.ParseResponse(resp, &readings)
		assert.Len(t, readings, 2)
	})

	t.Run("Should count activity labels", func(t *testing.T) {
		resp := ts.ExecuteRequest(http.MethodGet, "/api/data/stats", nil, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var stats map[string]int
		ts.ParseResponse(resp, &stats)
		assert.Equal(t, map[string]int{"total": 5, "altas": 3, "baixas": 2}, stats)
	})
}

func TestData_Noise(t *testing.T) {
	ts := setupAPI(t, "")

	resp := ts.ExecuteRequest(http.MethodGet, "/api/data/noise", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var sample services.NoiseSample
	ts.ParseResponse(resp, &sample)
	assert.GreaterOrEqual(t, sample.NoiseDB, 20)
	assert.LessOrEqual(t, sample.NoiseDB, 120)
	assert.Equal(t, models.ClassifyNoise(float64(sample.NoiseDB)), sample.Status)
}

func TestData_Ingest(t *testing.T) {
	ts := setupAPI(t, "")

	t.Run("Should generate a reading for an empty body", func(t *testing.T) {
		resp := ts.ExecuteRequest(http.MethodPost, "/api/data/ingest", nil, nil)
		require.Equal(t, http.StatusCreated, resp.Code)

		var body controllers.IngestResponse
		ts.ParseResponse(resp, &body)
		assert.True(t, body.OK)
		require.NotNil(t, body.Data)
		assert.NotZero(t, body.Data.ID)
		assert.NotEmpty(t, body.Data.ActivityLabel)
	})

	t.Run("Should store a posted reading", func(t *testing.T) {
		token := ts.CreateDeviceToken("hive-3")
		resp := ts.ExecuteRequest(http.MethodPost, "/api/data/ingest", map[string]interface{}{
			"timestamp":      "2025-05-01T10:00:00",
			"temperatura":    31.5,
			"umidade":        48,
			"poluicao":       12,
			"abelhas_ativas": 640,
			"ruido_db":       65,
		}, map[string]string{"Authorization": "Bearer " + token})
		require.Equal(t, http.StatusCreated, resp.Code)

		var body controllers.IngestResponse
		ts.ParseResponse(resp, &body)
		require.NotNil(t, body.Data)
		assert.Equal(t, models.ActivityHigh, body.Data.ActivityLabel)
		require.NotNil(t, body.Data.NoiseStatus)
		assert.Equal(t, models.NoiseStatusModerate, *body.Data.NoiseStatus)
	})

	t.Run("Should reject invalid readings", func(t *testing.T) {
		resp := ts.ExecuteRequest(http.MethodPost, "/api/data/ingest", map[string]interface{}{
			"temperatura":    20,
			"umidade":        140,
			"abelhas_ativas": 10,
		}, nil)
		require.Equal(t, http.StatusBadRequest, resp.Code)

		var body utils.ValidationErrorResponse
		ts.ParseResponse(resp, &body)
		assert.Equal(t, "validation_error", body.Error)
		require.Len(t, body.Errors, 1)
		assert.Equal(t, "humidity", body.Errors[0].Field)
	})

	t.Run("Should reject a missing active count", func(t *testing.T) {
		resp := ts.ExecuteRequest(http.MethodPost, "/api/data/ingest", map[string]interface{}{
			"temperatura": 20,
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("Should reject invalid tokens", func(t *testing.T) {
		resp := ts.ExecuteRequest(http.MethodPost, "/api/data/ingest", nil,
			map[string]string{"Authorization": "Bearer garbage"})
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

func TestData_IngestRateLimited(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	ts.Config.RateLimit.Enabled = true
	ts.Config.RateLimit.RPS = 0.001
	ts.Config.RateLimit.Burst = 1

	sp := services.NewServiceProvider(ts.Logger, ts.Config, ts.DB)
	require.NoError(t, sp.Initialize(context.Background()))
	defer sp.Shutdown()

	router, err := api.NewRouter(ts.Config, ts.Logger, sp, nil)
	require.NoError(t, err)
	router.SetupRoutes()
	ts.Router = router.GetEngine()

	resp := ts.ExecuteRequest(http.MethodPost, "/api/data/ingest", nil, nil)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = ts.ExecuteRequest(http.MethodPost, "/api/data/ingest", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)

	// Reads are not limited
	resp = ts.ExecuteRequest(http.MethodGet, "/api/data/dados", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestPredict_NoModel(t *testing.T) {
	ts := setupAPI(t, "")

	for _, path := range []string{"/api/predicao", "/api/data/predicao"} {
		resp := ts.ExecuteRequest(http.MethodPost, path, map[string]float64{
			"temperatura": 30, "umidade": 50, "poluicao": 10,
		}, nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.Code, path)
	}

	resp := ts.ExecuteRequest(http.MethodGet, "/api/predicoes/latest", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestPredict_WithModel(t *testing.T) {
	model := newModelServer(t, http.StatusOK, `{"predicted_label":"alta","predicted_class":1,"proba_alta":0.82}`)
	ts := setupAPI(t, model.URL)

	t.Run("Should validate features", func(t *testing.T) {
		resp := ts.ExecuteRequest(http.MethodPost, "/api/predicao", map[string]float64{
			"temperatura": 120, "umidade": 50, "poluicao": 10,
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("Should classify and record", func(t *testing.T) {
		resp := ts.ExecuteRequest(http.MethodPost, "/api/predicao", map[string]float64{
			"temperatura": 30, "umidade": 50, "poluicao": 10,
		}, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var record models.PredictionRecord
		ts.ParseResponse(resp, &record)
		assert.Equal(t, "alta", record.PredictedLabel)
		assert.Equal(t, 1, record.PredictedClass)
		assert.Equal(t, 0.82, record.ProbaHigh)

		resp = ts.ExecuteRequest(http.MethodGet, "/api/predicoes/latest", nil, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var latest models.PredictionRecord
		ts.ParseResponse(resp, &latest)
		assert.Equal(t, record.ID, latest.ID)

		resp = ts.ExecuteRequest(http.MethodGet, "/api/predicoes?limit=5", nil, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var records []models.PredictionRecord
		ts.ParseResponse(resp, &records)
		assert.Len(t, records, 1)
	})
}

func TestPredict_ModelFailure(t *testing.T) {
	model := newModelServer(t, http.StatusInternalServerError, `{"detail":"model not loaded"}`)
	ts := setupAPI(t, model.URL)

	resp := ts.ExecuteRequest(http.MethodPost, "/api/data/predicao", map[string]float64{
		"temperatura": 30, "umidade": 50, "poluicao": 10,
	}, nil)
	require.Equal(t, http.StatusBadGateway, resp.Code)

	var body utils.ErrorResponse
	ts.ParseResponse(resp, &body)
	assert.Equal(t, "prediction_failed", body.Error)
	assert.Equal(t, "model not loaded", body.Message)
}

func TestAlerts(t *testing.T) {
	ts := setupAPI(t, "")
	token := ts.CreateDeviceToken("dashboard-1")
	auth := map[string]string{"Authorization": "Bearer " + token}

	alertID := uuid.NewString()
	event := map[string]interface{}{
		"alert_id":       alertID,
		"kind":           "raised",
		"time":           "2025-05-01T10:00:00Z",
		"activity_alert": true,
		"window_mean":    612.5,
		"threshold":      580,
		"noise_ceiling":  80,
	}

	resp := ts.ExecuteRequest(http.MethodPost, "/api/alerts", event, auth)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created models.AlertEvent
	ts.ParseResponse(resp, &created)
	assert.Equal(t, "dashboard-1", created.Source)

	resp = ts.ExecuteRequest(http.MethodPost, "/api/alerts", event, auth)
	assert.Equal(t, http.StatusConflict, resp.Code)

	event["alert_id"] = "nope"
	resp = ts.ExecuteRequest(http.MethodPost, "/api/alerts", event, auth)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.ExecuteRequest(http.MethodGet, "/api/alerts?unacknowledged=true", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var events []models.AlertEvent
	ts.ParseResponse(resp, &events)
	require.Len(t, events, 1)

	resp = ts.ExecuteRequest(http.MethodPost, "/api/alerts/"+alertID+"/acknowledge",
		map[string]string{"ack_by": "keeper"}, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var acked models.AlertEvent
	ts.ParseResponse(resp, &acked)
	assert.True(t, acked.Acknowledged)
	assert.Equal(t, "keeper", acked.AckBy)

	resp = ts.ExecuteRequest(http.MethodPost, "/api/alerts/"+uuid.NewString()+"/acknowledge", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.ExecuteRequest(http.MethodGet, "/api/alerts?unacknowledged=true", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var remaining []json.RawMessage
	ts.ParseResponse(resp, &remaining)
	assert.Empty(t, remaining)
}
