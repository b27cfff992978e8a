package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/beewatch/backend/internal/utils"
	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// Player plays a clip on the default output device through miniaudio
type Player struct {
	logger *utils.Logger

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	cur    cursor

	playing atomic.Bool
}

// NewPlayer opens the default playback device for the clip
func NewPlayer(clip *Clip, logger *utils.Logger) (*Player, error) {
	if clip == nil {
		return nil, errors.New("nil clip")
	}

	p := &Player{
		logger: logger.Named("audio_player"),
		cur:    cursor{clip: clip},
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		p.logger.Debug("miniaudio", zap.String("message", message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(clip.Channels)
	deviceConfig.SampleRate = uint32(clip.SampleRate)

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: p.onSamples,
	})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to initialise playback device: %w", err)
	}

	p.ctx = ctx
	p.device = device
	return p, nil
}

// onSamples runs on the audio thread
func (p *Player) onSamples(out, _ []byte, _ uint32) {
	p.mu.Lock()
	more := p.cur.fill(out)
	p.mu.Unlock()

	if !more {
		p.playing.Store(false)
	}
}

// SetLoop implements alert.Handle
func (p *Player) SetLoop(loop bool) {
	p.mu.Lock()
	p.cur.loop = loop
	p.mu.Unlock()
}

// Play implements alert.Handle
func (p *Player) Play() error {
	if p.playing.Load() {
		return nil
	}
	if p.device == nil {
		return errors.New("player closed")
	}

	p.mu.Lock()
	p.cur.restartIfDone()
	p.mu.Unlock()

	// A non-looping clip leaves the device running after it ends
	if !p.device.IsStarted() {
		if err := p.device.Start(); err != nil {
			return fmt.Errorf("failed to start playback: %w", err)
		}
	}
	p.playing.Store(true)
	return nil
}

// Pause implements alert.Handle
func (p *Player) Pause() {
	if p.device == nil || !p.playing.Load() {
		return
	}
	if err := p.device.Stop(); err != nil {
		p.logger.Warn("Failed to stop playback", zap.Error(err))
	}
	p.playing.Store(false)
}

// Rewind implements alert.Handle
func (p *Player) Rewind() {
	p.mu.Lock()
	p.cur.pos = 0
	p.mu.Unlock()
}

// Playing implements alert.Handle
func (p *Player) Playing() bool {
	return p.playing.Load()
}

// Close implements alert.Handle
func (p *Player) Close() error {
	if p.device == nil {
		return nil
	}
	p.Pause()
	p.device.Uninit()
	p.device = nil

	err := p.ctx.Uninit()
	p.ctx.Free()
	p.ctx = nil
	return err
}
