package hiveapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/utils"
	"go.uber.org/zap"
)

const readingSchemaName = "reading"

// newReadingValidator compiles the schema every fetched row must satisfy
func newReadingValidator() (*utils.JSONSchemaValidator, error) {
	schema, err := utils.NewJSONSchemaBuilder().
		SetTitle("hive reading").
		AddStringProperty("timestamp", true).
		AddNumberProperty("temperatura", true).
		AddNumberProperty("umidade", true).
		AddNumberProperty("poluicao", true).
		AddIntegerProperty("abelhas_ativas", true).
		Minimum("abelhas_ativas", 0).
		AddStringProperty("atividade", true).
		Enum("atividade", models.ActivityHigh, models.ActivityLow).
		AddProperty("ruido_db", false, "number", "null").
		AddProperty("status_ruido", false, "string", "null").
		Build()
	if err != nil {
		return nil, err
	}

	v := utils.NewJSONSchemaValidator()
	if err := v.LoadSchema(readingSchemaName, schema); err != nil {
		return nil, err
	}
	return v, nil
}

// FetchReadings retrieves readings from the data endpoint in the order the
// server returns them (newest first). Rows that fail schema validation are
// dropped and counted in the returned skipped value.
func (c *Client) FetchReadings(ctx context.Context, url string) (readings []models.Reading, skipped int, err error) {
	body, err := c.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, 0, fmt.Errorf("failed to decode readings: %w", err)
	}

	readings = make([]models.Reading, 0, len(rows))
	for i, row := range rows {
		if err := c.schema.ValidateBytes(readingSchemaName, row); err != nil {
			skipped++
			c.logger.Warn("Dropping malformed reading", zap.Int("index", i), zap.Error(err))
			continue
		}

		var r models.Reading
		if err := json.Unmarshal(row, &r); err != nil {
			skipped++
			c.logger.Warn("Dropping undecodable reading", zap.Int("index", i), zap.Error(err))
			continue
		}
		readings = append(readings, r)
	}

	return readings, skipped, nil
}

// PostReading submits a reading to the ingest endpoint
func (c *Client) PostReading(ctx context.Context, url string, r *models.Reading) (*models.Reading, error) {
	body, err := c.doRequest(ctx, http.MethodPost, url, r)
	if err != nil {
		return nil, err
	}

	var resp struct {
		OK   bool           `json:"ok"`
		Data models.Reading `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode ingest response: %w", err)
	}
	return &resp.Data, nil
}
