// Package kafka publishes hive readings and alert transitions to Kafka.
package kafka

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/beewatch/backend/internal/config"
	"github.com/beewatch/backend/internal/utils"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// Message represents a message to be sent to Kafka
type Message struct {
	Key       string
	Value     interface{}
	Timestamp time.Time
	Headers   map[string]string
}

// Producer provides functionality to produce messages to Kafka topics
type Producer struct {
	producer *kafka.Producer
	logger   *utils.Logger
	config   *config.KafkaConfig
	wg       sync.WaitGroup
}

// ConfigMap builds the librdkafka configuration for cfg
func ConfigMap(cfg *config.KafkaConfig, clientID string) (*kafka.ConfigMap, error) {
	kafkaConfig := &kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"client.id":         clientID,
		"acks":              "all",
	}

	if cfg.SecurityEnable {
		settings := []struct{ key, value string }{
			{"security.protocol", "SASL_SSL"},
			{"sasl.mechanisms", "PLAIN"},
			{"sasl.username", cfg.SecurityUser},
			{"sasl.password", cfg.SecurityPass},
		}
		for _, s := range settings {
			if err := kafkaConfig.SetKey(s.key, s.value); err != nil {
				return nil, fmt.Errorf("failed to set %s: %w", s.key, err)
			}
		}
	}

	return kafkaConfig, nil
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg *config.KafkaConfig, clientID string, logger *utils.Logger) (*Producer, error) {
	kafkaLogger := logger.Named("kafka_producer")

	kafkaConfig, err := ConfigMap(cfg, clientID)
	if err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		logger:   kafkaLogger,
		config:   cfg,
	}

	// Delivery reports for fire-and-forget messages
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for e := range producer.Events() {
			ev, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			if ev.TopicPartition.Error != nil {
				kafkaLogger.Error("Failed to deliver message",
					zap.String("topic", *ev.TopicPartition.Topic),
					zap.Error(ev.TopicPartition.Error),
				)
				continue
			}
			kafkaLogger.Debug("Message delivered",
				zap.String("topic", *ev.TopicPartition.Topic),
				zap.Int32("partition", ev.TopicPartition.Partition),
				zap.Int64("offset", int64(ev.TopicPartition.Offset)),
			)
		}
	}()

	kafkaLogger.Info("Kafka producer created", zap.String("brokers", cfg.Brokers))
	return p, nil
}

// BuildMessage converts a Message into a Kafka message for topic
func BuildMessage(topic string, message *Message) (*kafka.Message, error) {
	valueBytes, err := json.Marshal(message.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message value: %w", err)
	}

	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          valueBytes,
		Timestamp:      message.Timestamp,
	}

	if message.Key != "" {
		km.Key = []byte(message.Key)
	}

	if len(message.Headers) > 0 {
		km.Headers = make([]kafka.Header, 0, len(message.Headers))
		for k, v := range message.Headers {
			km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
	}

	return km, nil
}

// Produce sends a message without waiting for the delivery report
func (p *Producer) Produce(topic string, message *Message) error {
	km, err := BuildMessage(topic, message)
	if err != nil {
		return err
	}

	p.logger.Debug("Producing message",
		zap.String("topic", topic),
		zap.String("key", message.Key),
	)

	if err := p.producer.Produce(km, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// ProduceSync sends a message and waits for the delivery report or timeout
func (p *Producer) ProduceSync(topic string, message *Message, timeout time.Duration) error {
	km, err := BuildMessage(topic, message)
	if err != nil {
		return err
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := p.producer.Produce(km, deliveryChan); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("failed to deliver message: %w", m.TopicPartition.Error)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("delivery to %s timed out after %s", topic, timeout)
	}
}

// Close flushes outstanding messages and closes the producer
func (p *Producer) Close() {
	p.logger.Info("Flushing producer before closing")
	if remaining := p.producer.Flush(5000); remaining > 0 {
		p.logger.Warn("Failed to deliver all messages during flush", zap.Int("remaining", remaining))
	}

	p.producer.Close()
	p.wg.Wait()
	p.logger.Info("Kafka producer closed")
}
