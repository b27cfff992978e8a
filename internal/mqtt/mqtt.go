// Package mqtt publishes alert transitions to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/beewatch/backend/internal/alert"
	"github.com/beewatch/backend/internal/config"
	"github.com/beewatch/backend/internal/utils"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// publisher is the part of the paho client the sink uses
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// statePayload is the retained current-state message
type statePayload struct {
	Active     bool      `json:"active"`
	Activity   bool      `json:"activity_alert"`
	Noise      bool      `json:"noise_alert"`
	WindowMean float64   `json:"window_mean"`
	Time       time.Time `json:"time"`
}

// Sink publishes every alert event and keeps a retained state topic current
type Sink struct {
	logger *utils.Logger
	cfg    config.MQTTConfig
	mu     sync.RWMutex
	client publisher
}

// Connect creates the paho client and connects in the background. A failed
// first attempt is logged and retried by auto-reconnect.
func Connect(cfg config.MQTTConfig, logger *utils.Logger) *Sink {
	s := &Sink{logger: logger.Named("mqtt"), cfg: cfg}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()

	switch {
	case !token.WaitTimeout(cfg.Timeout):
		s.logger.Warn("MQTT connection timed out; will reconnect in background")
	case token.Error() != nil:
		s.logger.Warn("MQTT connection failed; will reconnect in background", zap.Error(token.Error()))
	default:
		s.logger.Info("MQTT connected to broker", zap.String("broker", cfg.Broker))
	}

	s.client = client
	return s
}

// Name implements alert.Sink
func (s *Sink) Name() string { return "mqtt" }

// EventsTopic is where every transition is published
func (s *Sink) EventsTopic() string {
	return s.topic("alerts")
}

// StateTopic holds the retained current alert state
func (s *Sink) StateTopic() string {
	return s.topic("alert", "state")
}

func (s *Sink) topic(parts ...string) string {
	prefix := strings.TrimSuffix(s.cfg.TopicPrefix, "/")
	if prefix == "" {
		return strings.Join(parts, "/")
	}
	return prefix + "/" + strings.Join(parts, "/")
}

// Publish implements alert.Sink
func (s *Sink) Publish(ctx context.Context, e alert.Event) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	if client == nil || !client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	event, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}
	state, err := json.Marshal(statePayload{
		Active:     e.State.Combined,
		Activity:   e.State.ActivityAlert,
		Noise:      e.State.NoiseAlert,
		WindowMean: e.WindowMean,
		Time:       e.Time,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert state: %w", err)
	}

	if err := s.publish(ctx, client, s.EventsTopic(), s.cfg.Retain, event); err != nil {
		return err
	}
	return s.publish(ctx, client, s.StateTopic(), true, state)
}

func (s *Sink) publish(ctx context.Context, client publisher, topic string, retain bool, payload []byte) error {
	timeout := s.cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}

	token := client.Publish(topic, s.cfg.QoS, retain, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}

	s.logger.Debug("Published alert", zap.String("topic", topic))
	return nil
}

// Close disconnects from the broker
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
		s.logger.Info("MQTT disconnected")
	}
	s.client = nil
}
