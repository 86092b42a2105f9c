package boundary

import (
	"fmt"
	"time"

	"github.com/TemdigitalAi/voice-dialog-service/internal/provider"
	"github.com/TemdigitalAi/voice-dialog-service/internal/transcript"
)

// Config holds boundary detection parameters.
type Config struct {
	// SafetyTimeout is the silence window after the last final fragment that
	// forces finalization when the provider never signals end of speech. It
	// trades responsiveness against cutting the caller off; typical values
	// are a few hundred milliseconds up to ~1.5s.
	SafetyTimeout time.Duration

	// MinUtteranceChars is the minimum accumulated length an utterance needs
	// before it is forwarded. Shorter accumulations are discarded.
	MinUtteranceChars int
}

// Validate checks the detector configuration.
func (c Config) Validate() error {
	if c.SafetyTimeout <= 0 {
		return fmt.Errorf("safety_timeout must be positive, got %v", c.SafetyTimeout)
	}
	if c.MinUtteranceChars < 1 {
		return fmt.Errorf("min_utterance_chars must be at least 1, got %d", c.MinUtteranceChars)
	}
	return nil
}

// Decision tells the owning session loop what to do after an event. The loop
// applies the timer actions atomically with the event that produced them, so
// a stale timer fire can never race a fresh one.
type Decision struct {
	// Finalize means the accumulated utterance should be taken and forwarded
	// as a finished turn.
	Finalize bool

	// ArmTimer means the safety timer must be (re)armed for SafetyTimeout.
	ArmTimer bool

	// StopTimer means any pending safety timer must be cancelled.
	StopTimer bool
}

// Detector is the per-session utterance boundary detector. It is a pure state
// machine: it owns the transcript buffer but no goroutines or timers, so its
// behavior is fully determined by the order of calls from the session loop.
type Detector struct {
	cfg Config
	buf *transcript.Buffer
}

// NewDetector creates a detector over an empty transcript buffer.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg, buf: transcript.NewBuffer()}
}

// OnSpeechEvent processes one recognition event and returns the resulting
// decision.
//
// The provider's end-of-speech signal is the primary, lowest-latency path: it
// finalizes immediately and always wins over the safety timer. Final fragments
// accumulate and re-arm the timer; interim fragments are ignored here (they
// are hypotheses, not committed text).
func (d *Detector) OnSpeechEvent(ev provider.SpeechEvent, now time.Time) Decision {
	if ev.IsFinal && ev.Text != "" {
		d.buf.Append(ev.Text, now)
	}

	if ev.EndOfSpeech {
		if d.buf.Empty() {
			// Boundary with nothing accumulated: cancel the timer, nothing
			// to finalize.
			return Decision{StopTimer: true}
		}
		return Decision{Finalize: true, StopTimer: true}
	}

	if ev.IsFinal && ev.Text != "" {
		// The fallback path: every appended final fragment restarts the
		// silence countdown, so the timer can never fire before the provider
		// signal would.
		return Decision{ArmTimer: true}
	}

	return Decision{}
}

// OnTimerFire processes a safety timer expiry. A fire that finds nothing
// accumulated (the utterance was already finalized, or discarded) is a no-op.
func (d *Detector) OnTimerFire() Decision {
	if d.buf.Empty() {
		return Decision{}
	}
	return Decision{Finalize: true}
}

// TakeUtterance atomically captures and clears the accumulated utterance,
// applying the minimum-length policy. ok is false when the accumulation was
// empty, all whitespace, or under the threshold.
func (d *Detector) TakeUtterance() (transcript.Utterance, bool) {
	return d.buf.Take(d.cfg.MinUtteranceChars)
}

// Pending returns the accumulated text without consuming it. Used for
// monitoring and logging.
func (d *Detector) Pending() string {
	return d.buf.Text()
}

// Reset discards any accumulated speech, for a new turn or teardown.
func (d *Detector) Reset() {
	d.buf.Reset()
}

// SafetyTimeout exposes the configured silence window to the session loop,
// which owns the actual timer.
func (d *Detector) SafetyTimeout() time.Duration {
	return d.cfg.SafetyTimeout
}
