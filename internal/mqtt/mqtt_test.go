package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/beewatch/backend/internal/alert"
	"github.com/beewatch/backend/internal/config"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/metrics"
	"github.com/beewatch/backend/internal/utils"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	connected    bool
	err          error
	messages     []published
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.messages = append(c.messages, published{topic, qos, retained, payload.([]byte)})
	return &fakeToken{err: c.err}
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Disconnect(uint) {
	c.connected = false
	c.disconnected = true
}

func newSink(client *fakeClient, prefix string) *Sink {
	return &Sink{
		logger: utils.NewNopLogger(),
		cfg:    config.MQTTConfig{TopicPrefix: prefix, QoS: 1, Timeout: time.Second},
		client: client,
	}
}

func raisedEvent() alert.Event {
	snap := metrics.Snapshot{WindowMean: 612, LatestNoiseStatus: metrics.NoData}
	th := alert.Thresholds{ActivityThreshold: 580, NoiseCeiling: 80, TrackNoise: true}
	return alert.NewEvent(models.AlertRaised, alert.Evaluate(snap, th, false), snap, th, time.Now())
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "beewatch/alerts", newSink(nil, "beewatch/").EventsTopic())
	assert.Equal(t, "beewatch/alert/state", newSink(nil, "beewatch").StateTopic())
	assert.Equal(t, "alerts", newSink(nil, "").EventsTopic())
}

func TestPublish(t *testing.T) {
	client := &fakeClient{connected: true}
	s := newSink(client, "beewatch")

	require.NoError(t, s.Publish(context.Background(), raisedEvent()))
	require.Len(t, client.messages, 2)

	assert.Equal(t, "beewatch/alerts", client.messages[0].topic)
	assert.False(t, client.messages[0].retained)
	assert.Equal(t, byte(1), client.messages[0].qos)

	state := client.messages[1]
	assert.Equal(t, "beewatch/alert/state", state.topic)
	assert.True(t, state.retained)

	var payload statePayload
	require.NoError(t, json.Unmarshal(state.payload, &payload))
	assert.True(t, payload.Active)
	assert.True(t, payload.Activity)
	assert.Equal(t, 612.0, payload.WindowMean)
}

func TestPublish_NotConnected(t *testing.T) {
	s := newSink(&fakeClient{}, "beewatch")
	assert.Error(t, s.Publish(context.Background(), raisedEvent()))
}

func TestPublish_BrokerError(t *testing.T) {
	client := &fakeClient{connected: true, err: errors.New("not authorized")}
	s := newSink(client, "beewatch")

	err := s.Publish(context.Background(), raisedEvent())
	assert.ErrorContains(t, err, "not authorized")
	assert.Len(t, client.messages, 1)
}

func TestClose(t *testing.T) {
	client := &fakeClient{connected: true}
	s := newSink(client, "beewatch")
	s.Close()
	assert.True(t, client.disconnected)
	assert.Error(t, s.Publish(context.Background(), raisedEvent()))
}
