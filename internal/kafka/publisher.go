package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/beewatch/backend/internal/alert"
	"github.com/beewatch/backend/internal/db/models"
)

// ReadingMessage wraps an ingested reading for the readings topic
func ReadingMessage(r *models.Reading, deviceID string) *Message {
	headers := map[string]string{"type": "reading"}
	if deviceID != "" {
		headers["device_id"] = deviceID
	}
	return &Message{
		Key:       fmt.Sprintf("%d", r.ID),
		Value:     r,
		Timestamp: r.Timestamp,
		Headers:   headers,
	}
}

// AlertMessage wraps an alert transition for the alerts topic
func AlertMessage(e alert.Event) *Message {
	return &Message{
		Key:       e.ID,
		Value:     e,
		Timestamp: e.Time,
		Headers: map[string]string{
			"type": "alert",
			"kind": string(e.Kind),
		},
	}
}

// ReadingPublisher publishes ingested readings
type ReadingPublisher struct {
	producer *Producer
	topic    string
}

// NewReadingPublisher creates a publisher for the readings topic
func NewReadingPublisher(p *Producer, topic string) *ReadingPublisher {
	return &ReadingPublisher{producer: p, topic: topic}
}

// PublishReading sends r without waiting for delivery
func (rp *ReadingPublisher) PublishReading(r *models.Reading, deviceID string) error {
	return rp.producer.Produce(rp.topic, ReadingMessage(r, deviceID))
}

// AlertSink publishes alert transitions to the alerts topic
type AlertSink struct {
	producer *Producer
	topic    string
}

// NewAlertSink creates an alert sink
func NewAlertSink(p *Producer, topic string) *AlertSink {
	return &AlertSink{producer: p, topic: topic}
}

// Name implements alert.Sink
func (s *AlertSink) Name() string { return "kafka" }

// Publish implements alert.Sink
func (s *AlertSink) Publish(ctx context.Context, e alert.Event) error {
	timeout := 10 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	return s.producer.ProduceSync(s.topic, AlertMessage(e), timeout)
}
