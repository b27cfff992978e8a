package services

import (
	"context"
	"sync"
	"time"

	"github.com/beewatch/backend/internal/utils"
	"go.uber.org/zap"
)

// SimulatorService stores a generated reading on every tick so a server
// without sensors still has live data
type SimulatorService struct {
	logger   *utils.Logger
	readings *ReadingService
	interval time.Duration
	deviceID string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSimulatorService creates a simulator writing through readings
func NewSimulatorService(readings *ReadingService, interval time.Duration, deviceID string, logger *utils.Logger) *SimulatorService {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if deviceID == "" {
		deviceID = "simulator"
	}
	return &SimulatorService{
		logger:   logger.Named("simulator"),
		readings: readings,
		interval: interval,
		deviceID: deviceID,
	}
}

// Start runs the simulator until ctx is cancelled or Stop is called
func (s *SimulatorService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.logger.Info("Starting simulator", zap.Duration("interval", s.interval), zap.String("device_id", s.deviceID))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r, err := s.readings.Generate(s.deviceID)
				if err != nil {
					s.logger.Warn("Failed to store simulated reading", zap.Error(err))
					continue
				}
				s.logger.Debug("Simulated reading stored",
					zap.Uint("id", r.ID),
					zap.Int("abelhas_ativas", r.ActiveCount))
			}
		}
	}()
}

// Stop halts the simulator and waits for it to exit
func (s *SimulatorService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Simulator stopped")
}
