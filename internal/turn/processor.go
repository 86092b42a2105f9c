package turn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TemdigitalAi/voice-dialog-service/internal/memory"
	"github.com/TemdigitalAi/voice-dialog-service/internal/provider"
)

// Deliverer hands a finished reply to the response delivery controller.
type Deliverer interface {
	Deliver(ctx context.Context, sessionID, text string) error
}

// Config holds turn processing parameters.
type Config struct {
	// ReplyTimeout bounds the reply-generation call.
	ReplyTimeout time.Duration

	// FallbackReply is spoken when reply generation fails or times out, so
	// the call never goes silent.
	FallbackReply string
}

// Validate checks the turn configuration.
func (c Config) Validate() error {
	if c.ReplyTimeout <= 0 {
		return fmt.Errorf("reply_timeout must be positive, got %v", c.ReplyTimeout)
	}
	if c.FallbackReply == "" {
		return fmt.Errorf("fallback_reply cannot be empty")
	}
	return nil
}

// Result describes how one turn concluded, for logging and metrics.
type Result struct {
	// Started is false when the single-flight gate rejected the turn; nothing
	// else in the result is meaningful then.
	Started bool

	// UsedFallback is true when the spoken text was the configured fallback
	// rather than a generated reply.
	UsedFallback bool

	// DeliveryErr is the delivery failure, if any, after the delivery
	// controller's own fallbacks were exhausted.
	DeliveryErr error

	// GenDuration is the reply-generation latency.
	GenDuration time.Duration
}

// Processor executes turns for one session. It owns the session's turn gate
// and is the only writer of the session's memory store.
type Processor struct {
	cfg     Config
	gen     provider.ReplyGenerator
	mem     *memory.Store
	deliver Deliverer
	gate    Gate
	logger  *slog.Logger
}

// NewProcessor creates a turn processor for one session.
func NewProcessor(cfg Config, gen provider.ReplyGenerator, mem *memory.Store, deliver Deliverer, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:     cfg,
		gen:     gen,
		mem:     mem,
		deliver: deliver,
		logger:  logger,
	}
}

// State returns the current turn state.
func (p *Processor) State() State {
	return p.gate.State()
}

// Process runs one caller turn: gate, generate, update memory, deliver.
//
// If a turn is already in flight the call is a silent no-op (Started=false):
// the in-flight turn owns the floor, and duplicate finalization triggers are
// expected. On acceptance exactly one reply is delivered, substituting the
// configured fallback when generation fails, and the gate always returns to
// idle afterwards.
func (p *Processor) Process(ctx context.Context, sessionID, text string) Result {
	if !p.gate.TryBegin() {
		p.logger.Debug("Turn rejected by single-flight gate",
			slog.String("session_id", sessionID),
			slog.String("state", p.gate.State().String()),
		)
		return Result{Started: false}
	}
	defer p.gate.Finish()

	p.mem.AppendHistory(memory.RoleCaller, text)

	res := Result{Started: true}

	genCtx, cancel := context.WithTimeout(ctx, p.cfg.ReplyTimeout)
	start := time.Now()
	reply, err := p.gen.GenerateReply(genCtx, p.mem.Messages(), p.mem.Facts())
	cancel()
	res.GenDuration = time.Since(start)

	spoken := reply.Text
	if err != nil {
		p.logger.Warn("Reply generation failed, using fallback",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
			slog.Duration("duration", res.GenDuration),
		)
		spoken = p.cfg.FallbackReply
		res.UsedFallback = true
	} else {
		// Structured fact updates first, inline annotations as the fallback
		// adapter; both are merged before the text is spoken.
		cleaned, inline := ExtractInlineFacts(spoken)
		spoken = cleaned
		for k, v := range reply.Facts {
			p.mem.Upsert(k, v)
		}
		for k, v := range inline {
			p.mem.Upsert(k, v)
		}
		if spoken == "" {
			spoken = p.cfg.FallbackReply
			res.UsedFallback = true
		}
	}

	p.mem.AppendHistory(memory.RoleReply, spoken)

	if err := p.markDeliveringAndSend(ctx, sessionID, spoken); err != nil {
		res.DeliveryErr = err
	}

	return res
}

// ProcessSystem delivers a system-initiated line (greeting, silence check-in)
// through the same single-flight gate, without invoking reply generation.
func (p *Processor) ProcessSystem(ctx context.Context, sessionID, text string) Result {
	if !p.gate.TryBegin() {
		return Result{Started: false}
	}
	defer p.gate.Finish()

	p.mem.AppendHistory(memory.RoleReply, text)

	res := Result{Started: true}
	if err := p.markDeliveringAndSend(ctx, sessionID, text); err != nil {
		res.DeliveryErr = err
	}
	return res
}

func (p *Processor) markDeliveringAndSend(ctx context.Context, sessionID, text string) error {
	if err := p.gate.MarkDelivering(); err != nil {
		return err
	}

	if err := p.deliver.Deliver(ctx, sessionID, text); err != nil {
		p.logger.Error("Reply delivery failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}
