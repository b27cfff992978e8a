package hiveapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/beewatch/backend/internal/db/models"
)

// PredictRequest carries the features sent for classification
type PredictRequest struct {
	Temperature float64  `json:"temperatura" binding:"gte=-50,lte=80"`
	Humidity    float64  `json:"umidade" binding:"gte=0,lte=100"`
	Pollution   float64  `json:"poluicao" binding:"gte=0"`
	Noise       *float64 `json:"ruido_db,omitempty" binding:"omitempty,gte=0"`
}

// PredictResponse is the classification returned by the prediction endpoint
type PredictResponse struct {
	Label string  `json:"predicted_label"`
	Class int     `json:"predicted_class"`
	Proba float64 `json:"proba_alta"`
}

// Predict submits features to the prediction endpoint
func (c *Client) Predict(ctx context.Context, url string, req PredictRequest) (*PredictResponse, error) {
	body, err := c.doRequest(ctx, http.MethodPost, url, req)
	if err != nil {
		return nil, err
	}

	var resp PredictResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode prediction: %w", err)
	}
	if resp.Label == "" {
		return nil, fmt.Errorf("prediction response has no label")
	}
	if resp.Proba < 0 || resp.Proba > 1 {
		return nil, fmt.Errorf("prediction probability %v out of range", resp.Proba)
	}
	return &resp, nil
}

// RecordAlert stores an alert transition on the server
func (c *Client) RecordAlert(ctx context.Context, url string, event *models.AlertEvent) error {
	_, err := c.doRequest(ctx, http.MethodPost, url, event)
	return err
}
