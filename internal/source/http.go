package source

import (
	"context"

	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/hiveapi"
	"github.com/beewatch/backend/internal/utils"
	"go.uber.org/zap"
)

// HTTPFetcher reads from the hive API data endpoint
type HTTPFetcher struct {
	client *hiveapi.Client
	url    string
	logger *utils.Logger
}

// NewHTTPFetcher creates a fetcher for the given data URL
func NewHTTPFetcher(client *hiveapi.Client, url string, logger *utils.Logger) *HTTPFetcher {
	return &HTTPFetcher{client: client, url: url, logger: logger.Named("http_fetcher")}
}

// FetchReadings implements Fetcher
func (f *HTTPFetcher) FetchReadings(ctx context.Context) ([]models.Reading, error) {
	readings, skipped, err := f.client.FetchReadings(ctx, f.url)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		f.logger.Warn("Skipped malformed readings", zap.Int("skipped", skipped), zap.Int("kept", len(readings)))
	}
	return readings, nil
}
