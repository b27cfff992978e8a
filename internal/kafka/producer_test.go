package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/beewatch/backend/internal/alert"
	"github.com/beewatch/backend/internal/config"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/metrics"
	"github.com/beewatch/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMap(t *testing.T) {
	cfg := &config.KafkaConfig{Brokers: "broker:9092"}
	m, err := ConfigMap(cfg, "beewatch-api")
	require.NoError(t, err)

	v, err := m.Get("bootstrap.servers", nil)
	require.NoError(t, err)
	assert.Equal(t, "broker:9092", v)

	v, err = m.Get("security.protocol", "none")
	require.NoError(t, err)
	assert.Equal(t, "none", v)

	cfg.SecurityEnable = true
	cfg.SecurityUser = "bee"
	cfg.SecurityPass = "hive"
	m, err = ConfigMap(cfg, "beewatch-api")
	require.NoError(t, err)

	v, err = m.Get("sasl.username", nil)
	require.NoError(t, err)
	assert.Equal(t, "bee", v)
}

func TestBuildMessage_Reading(t *testing.T) {
	r := testutil.Reading(620)
	r.ID = 42

	km, err := BuildMessage("hive-readings", ReadingMessage(&r, "hive-01"))
	require.NoError(t, err)

	assert.Equal(t, "hive-readings", *km.TopicPartition.Topic)
	assert.Equal(t, "42", string(km.Key))
	assert.Len(t, km.Headers, 2)

	var decoded models.Reading
	require.NoError(t, json.Unmarshal(km.Value, &decoded))
	assert.Equal(t, 620, decoded.ActiveCount)
	assert.Equal(t, models.ActivityHigh, decoded.ActivityLabel)
}

func TestBuildMessage_Alert(t *testing.T) {
	snap := metrics.Snapshot{WindowMean: 600, LatestNoiseStatus: metrics.NoData}
	th := alert.Thresholds{ActivityThreshold: 580, NoiseCeiling: 80}
	e := alert.NewEvent(models.AlertRaised, alert.Evaluate(snap, th, false), snap, th, time.Now())

	km, err := BuildMessage("hive-alerts", AlertMessage(e))
	require.NoError(t, err)

	assert.Equal(t, e.ID, string(km.Key))

	headers := map[string]string{}
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "raised", headers["kind"])

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(km.Value, &decoded))
	assert.Equal(t, 600.0, decoded["window_mean"])
}
