package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/TemdigitalAi/voice-dialog-service/internal/provider"
)

// Chain tries a sequence of synthesizers in order, returning the first
// successful result. A secondary voice provider configured behind the primary
// keeps synthesis alive through a single provider outage; only when every
// synthesizer fails does the caller fall back to the precomputed clip.
type Chain struct {
	synths []provider.Synthesizer
	logger *slog.Logger
}

// NewChain creates a synthesis chain. At least one synthesizer is required.
func NewChain(logger *slog.Logger, synths ...provider.Synthesizer) (*Chain, error) {
	if len(synths) == 0 {
		return nil, fmt.Errorf("at least one synthesizer is required")
	}
	return &Chain{synths: synths, logger: logger}, nil
}

// Synthesize implements provider.Synthesizer.
func (c *Chain) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var errs []error
	for i, s := range c.synths {
		audio, err := s.Synthesize(ctx, text)
		if err == nil {
			return audio, nil
		}
		errs = append(errs, err)

		if ctx.Err() != nil {
			break
		}
		if i < len(c.synths)-1 {
			c.logger.Warn("Synthesizer failed, trying next",
				slog.Int("position", i),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil, fmt.Errorf("all synthesizers failed: %w", errors.Join(errs...))
}
