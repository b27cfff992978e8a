// Package prediction submits reading features to the classification endpoint
// and keeps the last good result.
package prediction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/hiveapi"
	"github.com/beewatch/backend/internal/utils"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Features is the subset of a reading the model consumes
type Features struct {
	Temperature float64  `json:"temperatura" binding:"gte=-50,lte=80"`
	Humidity    float64  `json:"umidade" binding:"gte=0,lte=100"`
	Pollution   float64  `json:"poluicao" binding:"gte=0"`
	Noise       *float64 `json:"ruido_db,omitempty" binding:"omitempty,gte=0"`
}

// FromReading extracts the model features of r
func FromReading(r models.Reading) Features {
	f := Features{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Pollution:   r.Pollution,
	}
	if r.NoiseLevel != nil {
		n := *r.NoiseLevel
		f.Noise = &n
	}
	return f
}

func (f Features) key() string {
	if f.Noise == nil {
		return fmt.Sprintf("%g|%g|%g|-", f.Temperature, f.Humidity, f.Pollution)
	}
	return fmt.Sprintf("%g|%g|%g|%g", f.Temperature, f.Humidity, f.Pollution, *f.Noise)
}

func (f Features) request() hiveapi.PredictRequest {
	return hiveapi.PredictRequest{
		Temperature: f.Temperature,
		Humidity:    f.Humidity,
		Pollution:   f.Pollution,
		Noise:       f.Noise,
	}
}

// Prediction is a classification returned by the model
type Prediction struct {
	Label    string    `json:"label"`
	Class    int       `json:"class"`
	Proba    float64   `json:"proba_alta"`
	Display  string    `json:"display"`
	Source   string    `json:"source"`
	Features Features  `json:"features"`
	Time     time.Time `json:"time"`
}

// FormatProbability renders p in [0,1] as a percentage with one decimal
func FormatProbability(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// Predictor is the transport used to reach the prediction endpoint
type Predictor interface {
	Predict(ctx context.Context, url string, req hiveapi.PredictRequest) (*hiveapi.PredictResponse, error)
}

// Client submits features and retains the most recent successful prediction.
// It is safe for concurrent use.
type Client struct {
	api    Predictor
	url    string
	logger *utils.Logger
	recent *cache.Cache
	now    func() time.Time
	// observe is told the outcome of every request sent to the endpoint
	observe func(source string, ok bool)

	mu      sync.RWMutex
	seq     uint64
	applied uint64
	latest  *Prediction
}

// NewClient creates a prediction client. Identical features submitted from
// the latest reading within ttl reuse the cached result; ttl <= 0 disables
// the cache.
func NewClient(api Predictor, url string, ttl time.Duration, logger *utils.Logger) *Client {
	c := &Client{
		api:    api,
		url:    url,
		logger: logger.Named("prediction"),
		now:    time.Now,
	}
	if ttl > 0 {
		c.recent = cache.New(ttl, 2*ttl)
	}
	return c
}

// SetObserver registers a callback for request outcomes. Call before use.
func (c *Client) SetObserver(f func(source string, ok bool)) {
	c.observe = f
}

// Latest returns the last successful prediction
func (c *Client) Latest() (Prediction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return Prediction{}, false
	}
	return *c.latest, true
}

// Submit classifies the features of the latest reading. Failures are logged
// and leave the previous prediction in place.
func (c *Client) Submit(ctx context.Context, f Features) (Prediction, bool) {
	if c.recent != nil {
		if cached, ok := c.recent.Get(f.key()); ok {
			c.logger.Debug("Reusing cached prediction")
			c.apply(c.next(), cached.(Prediction))
			return c.Latest()
		}
	}

	p, err := c.submit(ctx, f, models.PredictionSourceLatest)
	if err != nil {
		c.logger.Warn("Prediction request failed, keeping previous result", zap.Error(err))
		return c.Latest()
	}

	if c.recent != nil {
		c.recent.SetDefault(f.key(), p)
	}
	return c.Latest()
}

// SubmitManual classifies user supplied features. The error is returned to
// the caller; the previous prediction is still retained on failure.
func (c *Client) SubmitManual(ctx context.Context, f Features) (Prediction, error) {
	p, err := c.submit(ctx, f, models.PredictionSourceManual)
	if err != nil {
		c.logger.Warn("Manual prediction failed", zap.Error(err))
		return Prediction{}, err
	}
	return p, nil
}

func (c *Client) next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

func (c *Client) submit(ctx context.Context, f Features, source string) (Prediction, error) {
	seq := c.next()

	resp, err := c.api.Predict(ctx, c.url, f.request())
	if c.observe != nil {
		c.observe(source, err == nil)
	}
	if err != nil {
		return Prediction{}, err
	}

	p := Prediction{
		Label:    resp.Label,
		Class:    resp.Class,
		Proba:    resp.Proba,
		Display:  FormatProbability(resp.Proba),
		Source:   source,
		Features: f,
		Time:     c.now().UTC(),
	}
	c.apply(seq, p)

	c.logger.Debug("Prediction received",
		zap.String("label", p.Label),
		zap.Float64("proba_alta", p.Proba),
		zap.String("source", source))
	return p, nil
}

// apply stores p unless a later request has already been applied
func (c *Client) apply(seq uint64, p Prediction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.applied {
		return
	}
	c.applied = seq
	c.latest = &p
}
