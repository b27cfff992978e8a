package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beewatch/backend/internal/alert"
	"github.com/beewatch/backend/internal/hiveapi"
	"github.com/beewatch/backend/internal/prediction"
	"github.com/beewatch/backend/internal/source"
	"github.com/beewatch/backend/internal/testutil"
	"github.com/beewatch/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	view       View
	audio      []bool
	predictErr error
	features   []prediction.Features
}

func (b *fakeBackend) View() View { return b.view }

func (b *fakeBackend) SetAudioPermission(_ context.Context, enabled bool) (View, error) {
	b.audio = append(b.audio, enabled)
	v := b.view
	v.Alert.AudioPermitted = enabled
	return v, nil
}

func (b *fakeBackend) Predict(_ context.Context, f prediction.Features) (prediction.Prediction, error) {
	b.features = append(b.features, f)
	if b.predictErr != nil {
		return prediction.Prediction{}, b.predictErr
	}
	return prediction.Prediction{Label: "alta", Proba: 0.82, Display: prediction.FormatProbability(0.82)}, nil
}

func setupController(t *testing.T, backend *fakeBackend) *testutil.TestSetup {
	t.Helper()
	ts := testutil.NewTestSetup(t)
	hub := NewHub(backend, utils.NewNopLogger())
	ts.Router = NewRouter(ts.Config, utils.NewNopLogger(), NewController(backend, hub, utils.NewNopLogger()), prometheus.NewRegistry(), nil)
	return ts
}

func TestController_GetView(t *testing.T) {
	backend := &fakeBackend{view: View{Loading: true, Playback: alert.Idle}}
	ts := setupController(t, backend)

	resp := ts.ExecuteRequest(http.MethodGet, "/api/dashboard", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]interface{}
	ts.ParseResponse(resp, &body)
	assert.Equal(t, true, body["loading"])
	assert.Equal(t, "idle", body["playback"])
	assert.NotContains(t, body, "error")
}

func TestController_SetAudio(t *testing.T) {
	backend := &fakeBackend{}
	ts := setupController(t, backend)

	resp := ts.ExecuteRequest(http.MethodPut, "/api/dashboard/audio", map[string]interface{}{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "validation_error")

	resp = ts.ExecuteRequest(http.MethodPut, "/api/dashboard/audio", map[string]bool{"enabled": false}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.ExecuteRequest(http.MethodPut, "/api/dashboard/audio", map[string]bool{"enabled": true}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var v View
	ts.ParseResponse(resp, &v)
	assert.True(t, v.Alert.AudioPermitted)
	assert.Equal(t, []bool{false, true}, backend.audio)
}

func TestController_Predict(t *testing.T) {
	backend := &fakeBackend{}
	ts := setupController(t, backend)

	resp := ts.ExecuteRequest(http.MethodPost, "/api/dashboard/predict",
		map[string]float64{"temperatura": 31.5, "umidade": 55, "poluicao": 12, "ruido_db": 64}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var p prediction.Prediction
	ts.ParseResponse(resp, &p)
	assert.Equal(t, "82.0%", p.Display)
	require.Len(t, backend.features, 1)
	require.NotNil(t, backend.features[0].Noise)
	assert.Equal(t, 64.0, *backend.features[0].Noise)

	resp = ts.ExecuteRequest(http.MethodPost, "/api/dashboard/predict",
		map[string]float64{"temperatura": 30, "umidade": 150, "poluicao": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Len(t, backend.features, 1)
}

func TestController_PredictFailures(t *testing.T) {
	backend := &fakeBackend{predictErr: utils.ErrServiceUnavailable}
	ts := setupController(t, backend)

	resp := ts.ExecuteRequest(http.MethodPost, "/api/dashboard/predict", map[string]float64{"temperatura": 20}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	backend.predictErr = &hiveapi.APIError{StatusCode: http.StatusInternalServerError, Message: "model crashed"}
	resp = ts.ExecuteRequest(http.MethodPost, "/api/dashboard/predict", map[string]float64{"temperatura": 20}, nil)
	require.Equal(t, http.StatusBadGateway, resp.Code)

	var body utils.ErrorResponse
	ts.ParseResponse(resp, &body)
	assert.Equal(t, "prediction_failed", body.Error)
	assert.Equal(t, "model crashed", body.Message)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	ts := setupController(t, &fakeBackend{})

	resp := ts.ExecuteRequest(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.ExecuteRequest(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

type wsEnvelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readUntil reads messages until match accepts one
func readUntil(t *testing.T, conn *websocket.Conn, match func(wsEnvelope) bool) wsEnvelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg wsEnvelope
		require.NoError(t, json.Unmarshal(data, &msg))
		if match(msg) {
			return msg
		}
	}
}

func viewOf(t *testing.T, msg wsEnvelope) View {
	t.Helper()
	var v View
	require.NoError(t, json.Unmarshal(msg.Payload, &v))
	return v
}

func TestHub_PushesViewsAndAcceptsCommands(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := utils.NewNopLogger()

	opts := defaultOptions()
	opts.PollInterval = 20 * time.Millisecond
	opts.Alarm = (&alarmFactory{}).create

	poller := source.NewPoller(&scriptedFetcher{readings: newestFirst(600, 640)}, opts.PollInterval, time.Second, logger)
	session := NewSession(opts, poller, nil, logger)
	hub := NewHub(session, logger)
	session.OnUpdate(hub.Broadcast)

	ctx, cancel := context.WithCancel(context.Background())
	sessionDone := make(chan struct{})
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()
	go func() {
		session.Run(ctx)
		close(sessionDone)
	}()

	server := httptest.NewServer(NewRouter(testutil.NewConfig(), logger, NewController(session, hub, logger), nil, nil))
	defer func() {
		server.Close()
		cancel()
		<-sessionDone
		<-hubDone
	}()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readUntil(t, conn, func(wsEnvelope) bool { return true })
	assert.Equal(t, MessageTypeView, first.Type)

	readUntil(t, conn, func(m wsEnvelope) bool {
		return m.Type == MessageTypeView && viewOf(t, m).Alert.Combined
	})

	enabled := true
	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "audio", Enabled: &enabled}))

	msg := readUntil(t, conn, func(m wsEnvelope) bool {
		return m.Type == MessageTypeView && viewOf(t, m).Alert.AudioPermitted
	})
	assert.Equal(t, alert.Sounding, viewOf(t, msg).Playback)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "dance"}))
	errMsg := readUntil(t, conn, func(m wsEnvelope) bool { return m.Type == MessageTypeError })

	var body utils.ErrorResponse
	require.NoError(t, json.Unmarshal(errMsg.Payload, &body))
	assert.Equal(t, "bad_request", body.Error)

	assert.Equal(t, 1, hub.ClientCount())
}
