// Package hiveapi is the HTTP client for the hive data API.
package hiveapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beewatch/backend/internal/utils"
	"go.uber.org/zap"
)

// Client talks to the hive data and prediction endpoints
type Client struct {
	httpClient *http.Client
	logger     *utils.Logger
	token      string
	schema     *utils.JSONSchemaValidator
}

// Option customises a Client
type Option func(*Client)

// WithToken sends a bearer token with every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new API client with the given request timeout
func NewClient(timeout time.Duration, logger *utils.Logger, opts ...Option) (*Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	schema, err := newReadingValidator()
	if err != nil {
		return nil, err
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		logger: logger.Named("hive_api"),
		schema: schema,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// HTTPClient returns the underlying HTTP client
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// APIError represents a non-2xx response from the API
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("hive API error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("hive API error (%d): %s - %s", e.StatusCode, e.Message, e.Details)
}

// doRequest performs an HTTP request and returns the response body
func (c *Client) doRequest(ctx context.Context, method, url string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("Sending request to hive API",
		zap.String("method", method),
		zap.String("url", url),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			Detail  string `json:"detail"`
		}
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error == "" && errResp.Detail == "" {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    http.StatusText(resp.StatusCode),
				Details:    string(respBody),
			}
		}
		message := errResp.Error
		if message == "" {
			message = errResp.Detail
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Details:    errResp.Message,
		}
	}

	return respBody, nil
}
