// Package source polls the hive data endpoint on a fixed interval.
package source

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/utils"
	"go.uber.org/zap"
)

// Fetcher retrieves readings newest first, as the data endpoint returns them
type Fetcher interface {
	FetchReadings(ctx context.Context) ([]models.Reading, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context) ([]models.Reading, error)

// FetchReadings implements Fetcher
func (f FetcherFunc) FetchReadings(ctx context.Context) ([]models.Reading, error) {
	return f(ctx)
}

// Result is one completed poll. Readings are ordered oldest first.
type Result struct {
	Seq      uint64
	Readings []models.Reading
	Err      error
	Fetched  time.Time
	Duration time.Duration
}

// Poller issues a fetch immediately and then on every tick. Fetches are not
// cancelled when a newer one starts; a result is delivered only if no later
// request has already been delivered.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	timeout  time.Duration
	logger   *utils.Logger

	results chan Result

	seq       atomic.Uint64
	mu        sync.Mutex
	delivered uint64
	dropped   atomic.Uint64

	wg sync.WaitGroup
}

// NewPoller creates a poller. timeout bounds each fetch; zero means the
// poll interval.
func NewPoller(fetcher Fetcher, interval, timeout time.Duration, logger *utils.Logger) *Poller {
	if timeout <= 0 {
		timeout = interval
	}
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		timeout:  timeout,
		logger:   logger.Named("poller"),
		results:  make(chan Result, 1),
	}
}

// Results delivers completed polls in request order. It is closed after Run
// returns and all in-flight fetches have finished.
func (p *Poller) Results() <-chan Result {
	return p.results
}

// Dropped returns the number of stale results discarded so far
func (p *Poller) Dropped() uint64 {
	return p.dropped.Load()
}

// Run polls until ctx is cancelled
func (p *Poller) Run(ctx context.Context) {
	defer func() {
		p.wg.Wait()
		close(p.results)
	}()

	p.logger.Info("Starting poller", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.issue(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return
		case <-ticker.C:
			p.issue(ctx)
		}
	}
}

// issue starts a fetch without waiting for it
func (p *Poller) issue(ctx context.Context) {
	seq := p.seq.Add(1)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		start := time.Now()
		readings, err := p.fetcher.FetchReadings(fetchCtx)
		res := Result{
			Seq:      seq,
			Err:      err,
			Fetched:  time.Now(),
			Duration: time.Since(start),
		}
		if err == nil {
			res.Readings = prepare(readings)
		}

		p.deliver(ctx, res)
	}()
}

// deliver forwards res unless a newer result was already delivered
func (p *Poller) deliver(ctx context.Context, res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if res.Seq <= p.delivered {
		p.dropped.Add(1)
		p.logger.Debug("Dropping stale poll result", zap.Uint64("seq", res.Seq), zap.Uint64("delivered", p.delivered))
		return
	}

	select {
	case p.results <- res:
		p.delivered = res.Seq
	case <-ctx.Done():
	}
}

// prepare reverses newest-first readings into oldest-first order and drops
// readings with a negative active count
func prepare(newestFirst []models.Reading) []models.Reading {
	out := make([]models.Reading, 0, len(newestFirst))
	for _, r := range newestFirst {
		if r.ActiveCount < 0 {
			continue
		}
		out = append(out, r)
	}
	slices.Reverse(out)
	return out
}
