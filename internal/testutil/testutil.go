// Package testutil holds shared helpers for package tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/beewatch/backend/internal/config"
	"github.com/beewatch/backend/internal/db"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestSetup contains utilities for testing
type TestSetup struct {
	Router   *gin.Engine
	DB       *db.Database
	Logger   *utils.Logger
	Config   *config.Config
	Requires *require.Assertions
}

// TB is the subset of testing.TB the helpers need
type TB interface {
	require.TestingT
	Helper()
	Cleanup(func())
}

// NewTestSetup creates a test setup backed by a private in-memory SQLite database
func NewTestSetup(t TB) *TestSetup {
	t.Helper()

	gin.SetMode(gin.TestMode)

	log := NewLogger(t)

	cfg := NewConfig()

	// Each setup gets its own named in-memory database
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err, "Failed to create in-memory database")

	database := db.Wrap(gormDB, &cfg.Database, utils.NewNopLogger())
	require.NoError(t, database.AutoMigrate(), "Failed to migrate database")

	router := gin.New()
	router.Use(gin.Recovery())

	t.Cleanup(func() {
		_ = database.Close()
	})

	return &TestSetup{
		Router:   router,
		DB:       database,
		Logger:   log,
		Config:   cfg,
		Requires: require.New(t),
	}
}

// NewLogger returns a development logger for tests
func NewLogger(t require.TestingT) *utils.Logger {
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.OutputPaths = []string{"stdout"}
	zapLogger, err := zapConfig.Build()
	require.NoError(t, err, "Failed to create zap logger")

	return &utils.Logger{Logger: zapLogger}
}

// NewConfig returns a configuration populated with the runtime defaults
func NewConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Environment: "test"},
		Database: config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
		Data:     config.DataConfig{DefaultLimit: 300, MaxLimit: 1000},
		JWT: config.JWTConfig{
			Secret:          "test-secret-key-for-testing-only",
			ExpirationHours: 1,
		},
		Dashboard: config.DashboardConfig{
			PollIntervalMs: 3000,
			RequestTimeout: 2 * time.Second,
			AlertThreshold: 580,
			WindowSize:     10,
			NoiseCeiling:   80,
			TrackNoise:     true,
			PredictionTTL:  30 * time.Second,
		},
		Kafka: config.KafkaConfig{ReadingsTopic: "hive-readings", AlertsTopic: "hive-alerts"},
		Log:   config.LogConfig{Level: "debug", Format: "console"},
	}
}

// ExecuteRequest executes a test request and returns the response
func (ts *TestSetup) ExecuteRequest(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody []byte
	var err error

	if body != nil {
		reqBody, err = json.Marshal(body)
		ts.Requires.NoError(err, "Failed to marshal request body")
	}

	req, err := http.NewRequest(method, path, bytes.NewBuffer(reqBody))
	ts.Requires.NoError(err, "Failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp := httptest.NewRecorder()
	ts.Router.ServeHTTP(resp, req)

	return resp
}

// ParseResponse parses the JSON response into the provided value
func (ts *TestSetup) ParseResponse(response *httptest.ResponseRecorder, target interface{}) {
	err := json.Unmarshal(response.Body.Bytes(), target)
	ts.Requires.NoError(err, "Failed to parse response body: %s", response.Body.String())
}

// CreateDeviceToken signs a device token with the test secret
func (ts *TestSetup) CreateDeviceToken(deviceID string) string {
	token, err := models.GenerateDeviceToken(deviceID, ts.Config.JWT.Secret, time.Hour)
	ts.Requires.NoError(err, "Failed to sign device token")
	return token
}

// SeedReadings stores readings with the given active counts, one second apart
// and oldest first, and returns them in insertion order.
func (ts *TestSetup) SeedReadings(counts ...int) []models.Reading {
	base := time.Now().UTC().Add(-time.Duration(len(counts)) * time.Second)
	readings := make([]models.Reading, 0, len(counts))
	for i, c := range counts {
		r := models.Reading{
			Timestamp:   base.Add(time.Duration(i) * time.Second),
			Temperature: 25,
			Humidity:    60,
			Pollution:   30,
			ActiveCount: c,
		}
		r.Derive()
		ts.Requires.NoError(ts.DB.Create(&r).Error, "Failed to seed reading")
		readings = append(readings, r)
	}
	return readings
}

// Reading builds an unsaved reading with the given count and optional noise level
func Reading(activeCount int, noise ...float64) models.Reading {
	r := models.Reading{
		Timestamp:   time.Now().UTC(),
		Temperature: 25,
		Humidity:    60,
		Pollution:   30,
		ActiveCount: activeCount,
	}
	if len(noise) > 0 {
		n := noise[0]
		r.NoiseLevel = &n
	}
	r.Derive()
	return r
}
