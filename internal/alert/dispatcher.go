package alert

import (
	"context"
	"sync"
	"time"

	"github.com/beewatch/backend/internal/utils"
	"go.uber.org/zap"
)

// DeliveryObserver is told about each sink delivery attempt
type DeliveryObserver interface {
	ObserveDelivery(sink string, err error, d time.Duration)
}

// Dispatcher fans alert events out to sinks on its own goroutine so the
// evaluation path never waits on a network call.
type Dispatcher struct {
	logger   *utils.Logger
	sinks    []Sink
	events   chan Event
	timeout  time.Duration
	observer DeliveryObserver

	// mu guards stopped and the close of events
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher with a bounded queue
func NewDispatcher(logger *utils.Logger, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		logger:  logger.Named("alert_dispatcher"),
		sinks:   sinks,
		events:  make(chan Event, 64),
		timeout: timeout,
	}
}

// SetObserver registers a delivery observer. Call before Start.
func (d *Dispatcher) SetObserver(o DeliveryObserver) {
	d.observer = o
}

// Sinks returns the names of the configured sinks
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Start runs the delivery loop until ctx is cancelled or Stop is called
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-d.events:
				if !ok {
					return
				}
				d.deliver(ctx, e)
			}
		}
	}()
}

// Emit queues an event. When the queue is full the event is dropped.
// Emit after Stop is a no-op.
func (d *Dispatcher) Emit(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		d.logger.Debug("Dispatcher stopped, dropping event", zap.String("alert_id", e.ID))
		return
	}

	select {
	case d.events <- e:
	default:
		d.logger.Warn("Alert queue full, dropping event",
			zap.String("alert_id", e.ID),
			zap.String("kind", string(e.Kind)))
	}
}

// Stop drains queued events and waits for the loop to exit
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.events)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) deliver(parent context.Context, e Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(parent, d.timeout)
		start := time.Now()
		err := sink.Publish(ctx, e)
		cancel()

		if d.observer != nil {
			d.observer.ObserveDelivery(sink.Name(), err, time.Since(start))
		}

		if err != nil {
			d.logger.Error("Failed to deliver alert event",
				zap.String("sink", sink.Name()),
				zap.String("alert_id", e.ID),
				zap.Error(err))
			continue
		}

		d.logger.Debug("Alert event delivered",
			zap.String("sink", sink.Name()),
			zap.String("alert_id", e.ID))
	}
}

// LogSink writes alert events to the log
type LogSink struct {
	logger *utils.Logger
}

// NewLogSink creates a sink that only logs
func NewLogSink(logger *utils.Logger) *LogSink {
	return &LogSink{logger: logger.Named("alert_log")}
}

// Name implements Sink
func (s *LogSink) Name() string { return "log" }

// Publish implements Sink
func (s *LogSink) Publish(_ context.Context, e Event) error {
	s.logger.Info(e.Title(),
		zap.String("alert_id", e.ID),
		zap.String("kind", string(e.Kind)),
		zap.Float64("window_mean", e.WindowMean),
		zap.Bool("activity_alert", e.State.ActivityAlert),
		zap.Bool("noise_alert", e.State.NoiseAlert),
	)
	return nil
}
