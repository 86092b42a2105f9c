// Package delivery turns reply text into audio in the caller's ear. It owns
// the synthesize-play-resume sequence and the emergency clip played when
// every synthesizer is down, so a call is never left silent.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TemdigitalAi/voice-dialog-service/internal/audio"
	"github.com/TemdigitalAi/voice-dialog-service/internal/metrics"
	"github.com/TemdigitalAi/voice-dialog-service/internal/provider"
)

// Gateway is the call-control surface the controller needs.
type Gateway interface {
	PlayAudio(ctx context.Context, sessionID string, audio []byte) error
	StopAudio(ctx context.Context, sessionID string) error
	ResumeStreaming(ctx context.Context, sessionID string) error
}

// Config contains delivery controller configuration
type Config struct {
	SynthesisTimeout time.Duration
	SampleRate       int
}

// Validate checks delivery configuration
func (c *Config) Validate() error {
	if c.SynthesisTimeout <= 0 {
		return fmt.Errorf("synthesis timeout must be positive")
	}
	if c.SampleRate != 8000 && c.SampleRate != 16000 {
		return fmt.Errorf("sample rate must be 8000 or 16000, got %d", c.SampleRate)
	}
	return nil
}

// Controller implements turn.Deliverer over a synthesizer and the telephony
// gateway. The fallback clip is generated once at construction so playback
// needs no synthesis when providers are down.
type Controller struct {
	cfg          Config
	synth        provider.Synthesizer
	gateway      Gateway
	fallbackClip []byte
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewController creates a delivery controller
func NewController(cfg Config, synth provider.Synthesizer, gateway Gateway, m *metrics.Metrics, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid delivery config: %w", err)
	}

	clip, err := audio.FallbackClip(cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to build fallback clip: %w", err)
	}

	return &Controller{
		cfg:          cfg,
		synth:        synth,
		gateway:      gateway,
		fallbackClip: clip,
		metrics:      m,
		logger:       logger,
	}, nil
}

// Deliver synthesizes text and plays it into the call, then resumes inbound
// streaming. When synthesis fails entirely the precomputed clip is played
// instead; delivery only errors when the gateway itself rejects playback.
func (c *Controller) Deliver(ctx context.Context, sessionID, text string) error {
	clip := c.synthesize(ctx, sessionID, text)

	if err := c.gateway.PlayAudio(ctx, sessionID, clip); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}

	if err := c.gateway.ResumeStreaming(ctx, sessionID); err != nil {
		// Playback already happened; log and move on rather than failing
		// the turn.
		c.logger.Warn("Failed to resume inbound streaming",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Interrupt cuts current playback. Called when the caller barges in; a
// failure is reported but tolerated by callers, since playback ends on its
// own anyway.
func (c *Controller) Interrupt(ctx context.Context, sessionID string) error {
	if err := c.gateway.StopAudio(ctx, sessionID); err != nil {
		return fmt.Errorf("stop playback failed: %w", err)
	}
	return nil
}

func (c *Controller) synthesize(ctx context.Context, sessionID, text string) []byte {
	synthCtx, cancel := context.WithTimeout(ctx, c.cfg.SynthesisTimeout)
	defer cancel()

	clip, err := c.synth.Synthesize(synthCtx, text)
	if err != nil {
		c.metrics.RecordSynthesisFailure()
		c.logger.Error("Synthesis failed, playing fallback clip",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return c.fallbackClip
	}
	return clip
}
