package hiveapi

import (
	"context"

	"github.com/beewatch/backend/internal/alert"
)

// AlertSink records alert transitions on the hive API server
type AlertSink struct {
	client *Client
	url    string
	source string
}

// NewAlertSink creates a sink posting to the alerts endpoint
func NewAlertSink(client *Client, url, source string) *AlertSink {
	return &AlertSink{client: client, url: url, source: source}
}

// Name implements alert.Sink
func (s *AlertSink) Name() string { return "hive_api" }

// Publish implements alert.Sink
func (s *AlertSink) Publish(ctx context.Context, e alert.Event) error {
	return s.client.RecordAlert(ctx, s.url, e.Record(s.source))
}
