package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/beewatch/backend/internal/config"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/hiveapi"
	"github.com/beewatch/backend/internal/services"
	"github.com/beewatch/backend/internal/utils"
	"go.uber.org/zap"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to the configuration directory")
	targetURL := flag.String("url", "", "Ingest endpoint (overrides simulator.target_url)")
	deviceID := flag.String("device", "", "Device id (overrides simulator.device_id)")
	interval := flag.Duration("interval", 0, "Interval between readings (overrides simulator.interval)")
	count := flag.Int("count", 0, "Number of readings to send, 0 runs until interrupted")
	seed := flag.Uint64("seed", 0, "Random seed, 0 picks one")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set up logging
	logger, err := utils.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *targetURL != "" {
		cfg.Simulator.TargetURL = *targetURL
	}
	if *deviceID != "" {
		cfg.Simulator.DeviceID = *deviceID
	}
	if *interval > 0 {
		cfg.Simulator.Interval = *interval
	}
	if cfg.Simulator.TargetURL == "" {
		logger.Fatal("No ingest endpoint configured, set simulator.target_url or -url")
	}

	var opts []hiveapi.Option
	if cfg.JWT.Secret != "" {
		ttl := time.Duration(cfg.JWT.ExpirationHours) * time.Hour
		token, err := models.GenerateDeviceToken(cfg.Simulator.DeviceID, cfg.JWT.Secret, ttl)
		if err != nil {
			logger.Fatal("Failed to sign device token", zap.Error(err))
		}
		opts = append(opts, hiveapi.WithToken(token))
	}

	client, err := hiveapi.NewClient(10*time.Second, logger, opts...)
	if err != nil {
		logger.Fatal("Failed to create API client", zap.Error(err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sendReadings(ctx, client, services.NewGenerator(*seed), cfg.Simulator, *count, logger)
	}()

	// Wait for context cancellation or completion
	select {
	case <-ctx.Done():
		logger.Info("Context canceled, shutting down")
	case <-waitForCompletion(&wg):
		logger.Info("Simulation completed")
	}
}

// sendReadings posts generated readings on every tick. count <= 0 sends until
// ctx is cancelled.
func sendReadings(ctx context.Context, client *hiveapi.Client, gen *services.Generator, cfg config.SimulatorConfig, count int, logger *utils.Logger) {
	logger.Info("Starting simulation",
		zap.String("target", cfg.TargetURL),
		zap.String("device_id", cfg.DeviceID),
		zap.Duration("interval", cfg.Interval),
		zap.Int("count", count))

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for sent := 0; count <= 0 || sent < count; sent++ {
		reading := gen.Reading()
		stored, err := client.PostReading(ctx, cfg.TargetURL, &reading)
		if err != nil {
			logger.Error("Failed to send reading", zap.Int("seq", sent), zap.Error(err))
		} else {
			logger.Info("Reading sent",
				zap.Uint("id", stored.ID),
				zap.Int("abelhas_ativas", stored.ActiveCount),
				zap.String("atividade", stored.ActivityLabel))
		}

		if count > 0 && sent == count-1 {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// waitForCompletion returns a channel that is closed when the wait group is done
func waitForCompletion(wg *sync.WaitGroup) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	return ch
}
