package audio

import (
	"github.com/beewatch/backend/internal/alert"
	"github.com/beewatch/backend/internal/config"
	"github.com/beewatch/backend/internal/utils"
	"go.uber.org/zap"
)

// NewHandleFactory returns the alarm factory for the configuration. With
// audio disabled, or when the device cannot be opened, the alarm falls back
// to a VirtualHandle so the playback state is still reported.
func NewHandleFactory(cfg *config.AudioConfig, logger *utils.Logger) alert.HandleFactory {
	log := logger.Named("audio")

	return func() (alert.Handle, error) {
		if !cfg.Enabled {
			return NewVirtualHandle(), nil
		}

		clip, err := LoadClip(cfg.AlarmFile)
		if err != nil {
			return nil, err
		}

		player, err := NewPlayer(clip, log)
		if err != nil {
			log.Warn("Playback device unavailable, using virtual alarm", zap.Error(err))
			return NewVirtualHandle(), nil
		}

		log.Info("Alarm loaded",
			zap.String("file", cfg.AlarmFile),
			zap.Int("sample_rate", clip.SampleRate),
			zap.Int("channels", clip.Channels))
		return player, nil
	}
}
