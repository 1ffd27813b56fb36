// Package transcoder selects the transcoding backend.
package transcoder

import (
	"context"
	"fmt"

	"waveconv/config"
	"waveconv/entity"
	"waveconv/internal/controller/rmq"
	"waveconv/pkg/audio_converter"
	"waveconv/pkg/logger"
)

// CloseFunc releases the backend's resources.
type CloseFunc func() error

// New returns the transcoder named by cfg.Transcoder.Backend.
func New(ctx context.Context, cfg *config.Config, l logger.Interface) (entity.Transcoder, CloseFunc, error) {
	switch cfg.Transcoder.Backend {
	case "ffmpeg":
		ac := NewFFmpeg(cfg)
		if err := ac.Probe(ctx); err != nil {
			l.Warn("transcoder - New - ffmpeg is not available, conversions will fail: %v", err)
		}
		return ac, func() error { return nil }, nil
	case "amqp":
		c, err := rmq.NewAMQPTranscoder(cfg.RMQ, l)
		if err != nil {
			return nil, nil, fmt.Errorf("transcoder - New - rmq.NewAMQPTranscoder: %w", err)
		}
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("transcoder - New - unknown backend %q", cfg.Transcoder.Backend)
	}
}

// NewFFmpeg returns the in-process ffmpeg transcoder.
func NewFFmpeg(cfg *config.Config) *audio_converter.AudioConverter {
	return audio_converter.NewAudioConverter(
		audio_converter.Binary(cfg.Transcoder.FFmpegPath),
		audio_converter.Timeout(cfg.Transcoder.Timeout),
	)
}
