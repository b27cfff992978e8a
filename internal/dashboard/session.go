package dashboard

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beewatch/backend/internal/alert"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/metrics"
	"github.com/beewatch/backend/internal/prediction"
	"github.com/beewatch/backend/internal/source"
	"github.com/beewatch/backend/internal/utils"
	"go.uber.org/zap"
)

// Recorder receives session measurements
type Recorder interface {
	RecordPoll(err error, d time.Duration)
	RecordStaleDropped(n uint64)
	RecordSnapshot(s metrics.Snapshot, st alert.State)
	RecordTransition(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordPoll(error, time.Duration) {}
func (nopRecorder) RecordStaleDropped(uint64) {}
func (nopRecorder) RecordSnapshot(metrics.Snapshot, alert.State) {}
func (nopRecorder) RecordTransition(string) {}

// transitionEmitter counts alert edges before handing them on
type transitionEmitter struct {
	next     alert.Emitter
	recorder Recorder
}

func (e transitionEmitter) Emit(ev alert.Event) {
	e.recorder.RecordTransition(string(ev.Kind))
	if e.next != nil {
		e.next.Emit(ev)
	}
}

// Options configures a Session
type Options struct {
	Thresholds   alert.Thresholds
	WindowSize   int
	PollInterval time.Duration
	AutoPredict  bool

	// AudioPermitted is the consent in effect at start
	AudioPermitted bool
	Alarm          alert.HandleFactory
	Emitter        alert.Emitter
	Recorder       Recorder
}

type audioCommand struct {
	enabled bool
	reply   chan View
}

// Session owns the dashboard state. Poll results, audio toggles and
// prediction completions are all applied on the goroutine running Run.
type Session struct {
	logger    *utils.Logger
	opts      Options
	poller    *source.Poller
	predictor *prediction.Client
	notifier  *alert.Notifier
	recorder  Recorder
	onUpdate  func(View)

	commands chan audioCommand
	refresh  chan struct{}
	done     chan struct{}

	mu   sync.RWMutex
	view View

	// Owned by the Run goroutine
	readings    []models.Reading
	snapshot    metrics.Snapshot
	state       alert.State
	loaded      bool
	fetchErr    error
	lastDropped uint64
	predicting  atomic.Bool
	wg          sync.WaitGroup
}

// NewSession creates a session. predictor may be nil to disable predictions.
func NewSession(opts Options, poller *source.Poller, predictor *prediction.Client, logger *utils.Logger) *Session {
	if opts.WindowSize < 1 {
		opts.WindowSize = 1
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	s := &Session{
		logger:    logger.Named("dashboard_session"),
		opts:      opts,
		poller:    poller,
		predictor: predictor,
		recorder:  recorder,
		commands:  make(chan audioCommand),
		refresh:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		snapshot:  metrics.Compute(nil, opts.WindowSize),
	}

	s.notifier = alert.NewNotifier(opts.Thresholds, opts.Alarm, transitionEmitter{next: opts.Emitter, recorder: recorder}, logger)
	if opts.AudioPermitted {
		s.state = s.notifier.SetAudioPermission(true)
	} else {
		s.state = s.notifier.State()
	}

	s.view = s.render()
	return s
}

// OnUpdate registers a callback invoked with every published view. It runs
// on the session goroutine and must not block. Call before Run.
func (s *Session) OnUpdate(fn func(View)) {
	s.onUpdate = fn
}

// View returns the latest published view
func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Run drives the session until ctx is cancelled. It starts the poller and
// returns after the poller, prediction requests and the alarm have stopped.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	go s.poller.Run(ctx)
	results := s.poller.Results()

	s.logger.Info("Dashboard session started",
		zap.Float64("alert_threshold", s.opts.Thresholds.ActivityThreshold),
		zap.Int("window_size", s.opts.WindowSize),
		zap.Float64("noise_ceiling", s.opts.Thresholds.NoiseCeiling))

	for {
		select {
		case <-ctx.Done():
			s.shutdown(results)
			return

		case res, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			s.applyPoll(ctx, res)

		case cmd := <-s.commands:
			s.state = s.notifier.SetAudioPermission(cmd.enabled)
			s.recorder.RecordSnapshot(s.snapshot, s.state)
			s.logger.Info("Audio permission changed",
				zap.Bool("enabled", cmd.enabled),
				zap.Stringer("playback", s.notifier.Playback()))
			cmd.reply <- s.publish()

		case <-s.refresh:
			s.publish()
		}
	}
}

func (s *Session) shutdown(results <-chan source.Result) {
	if results != nil {
		for range results {
		}
	}
	s.wg.Wait()

	if err := s.notifier.Close(); err != nil {
		s.logger.Warn("Failed to release alarm", zap.Error(err))
	}
	s.logger.Info("Dashboard session stopped")
}

// SetAudioPermission records the user's consent to sound the alarm and
// returns the resulting view
func (s *Session) SetAudioPermission(ctx context.Context, enabled bool) (View, error) {
	cmd := audioCommand{enabled: enabled, reply: make(chan View, 1)}

	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.done:
		return View{}, fmt.Errorf("dashboard session stopped: %w", utils.ErrServiceUnavailable)
	}

	select {
	case v := <-cmd.reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Predict submits user entered features. A failure is returned to the
// caller and the previously displayed prediction stays in place.
func (s *Session) Predict(ctx context.Context, f prediction.Features) (prediction.Prediction, error) {
	if s.predictor == nil {
		return prediction.Prediction{}, fmt.Errorf("prediction endpoint not configured: %w", utils.ErrServiceUnavailable)
	}

	p, err := s.predictor.SubmitManual(ctx, f)
	if err != nil {
		return prediction.Prediction{}, err
	}
	s.requestRefresh()
	return p, nil
}

func (s *Session) requestRefresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

func (s *Session) applyPoll(ctx context.Context, res source.Result) {
	s.recorder.RecordPoll(res.Err, res.Duration)
	if dropped := s.poller.Dropped(); dropped > s.lastDropped {
		s.recorder.RecordStaleDropped(dropped - s.lastDropped)
		s.lastDropped = dropped
	}

	s.loaded = true

	if res.Err != nil {
		// Keep the last good readings; the error banner stays up until a
		// later poll succeeds
		if s.fetchErr == nil {
			s.logger.Warn("Failed to load readings", zap.Error(res.Err), zap.Uint64("seq", res.Seq))
		}
		s.fetchErr = res.Err
		s.publish()
		return
	}

	if s.fetchErr != nil {
		s.logger.Info("Readings loaded again", zap.Uint64("seq", res.Seq))
	}
	s.fetchErr = nil
	s.readings = res.Readings
	s.snapshot = metrics.Compute(res.Readings, s.opts.WindowSize)
	s.state = s.notifier.Update(s.snapshot)
	s.recorder.RecordSnapshot(s.snapshot, s.state)

	if s.opts.AutoPredict && len(res.Readings) > 0 {
		s.predictLatest(ctx, res.Readings[len(res.Readings)-1])
	}

	s.publish()
}

// predictLatest classifies the newest reading in the background. At most
// one automatic request is in flight.
func (s *Session) predictLatest(ctx context.Context, latest models.Reading) {
	if s.predictor == nil || !s.predicting.CompareAndSwap(false, true) {
		return
	}

	features := prediction.FromReading(latest)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.predicting.Store(false)

		if _, ok := s.predictor.Submit(ctx, features); ok {
			s.requestRefresh()
		}
	}()
}

func (s *Session) publish() View {
	v := s.render()

	s.mu.Lock()
	s.view = v
	s.mu.Unlock()

	if s.onUpdate != nil {
		s.onUpdate(v)
	}
	return v
}

func (s *Session) render() View {
	v := View{
		Loading:      !s.loaded,
		Metrics:      s.snapshot,
		Alert:        s.state,
		Playback:     s.notifier.Playback(),
		Series:       metrics.Series(s.readings),
		Distribution: metrics.Distribution(s.snapshot),
		Settings: Settings{
			Thresholds:     s.opts.Thresholds,
			WindowSize:     s.opts.WindowSize,
			PollIntervalMs: s.opts.PollInterval.Milliseconds(),
			AutoPredict:    s.opts.AutoPredict,
		},
		UpdatedAt: time.Now().UTC(),
	}
	if s.fetchErr != nil {
		v.Error = LoadError
	}
	if s.predictor != nil {
		if p, ok := s.predictor.Latest(); ok {
			v.Prediction = &p
		}
	}
	return v
}
