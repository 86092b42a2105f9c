package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TemdigitalAi/voice-dialog-service/internal/audio"
	"github.com/TemdigitalAi/voice-dialog-service/internal/boundary"
	"github.com/TemdigitalAi/voice-dialog-service/internal/memory"
	"github.com/TemdigitalAi/voice-dialog-service/internal/metrics"
	"github.com/TemdigitalAi/voice-dialog-service/internal/provider"
	"github.com/TemdigitalAi/voice-dialog-service/internal/turn"
)

// Status is where a session is in its lifecycle. It is stored atomically so
// the monitoring API can read it without touching the loop.
type Status int32

const (
	StatusCreated Status = iota
	StatusListening
	StatusResponding
	StatusClosing
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusListening:
		return "listening"
	case StatusResponding:
		return "responding"
	case StatusClosing:
		return "closing"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TurnRunner is the turn processing surface a session drives.
type TurnRunner interface {
	Process(ctx context.Context, sessionID, text string) turn.Result
	ProcessSystem(ctx context.Context, sessionID, text string) turn.Result
	State() turn.State
}

// Interrupter cuts in-progress reply playback on barge-in.
type Interrupter interface {
	Interrupt(ctx context.Context, sessionID string) error
}

// Config contains per-session behavior settings
type Config struct {
	Greeting        string
	CheckinText     string
	CheckinInterval time.Duration
	MaxCheckins     int // unanswered check-ins before hangup, 0 = unlimited
	SampleRate      int
	FrameBatchMs    int
	EventQueueSize  int
}

// Validate checks session configuration
func (c *Config) Validate() error {
	if c.SampleRate != 8000 && c.SampleRate != 16000 {
		return fmt.Errorf("sample rate must be 8000 or 16000, got %d", c.SampleRate)
	}
	if c.FrameBatchMs <= 0 {
		return fmt.Errorf("frame batch duration must be positive")
	}
	if c.EventQueueSize <= 0 {
		return fmt.Errorf("event queue size must be positive")
	}
	if c.CheckinInterval < 0 {
		return fmt.Errorf("check-in interval cannot be negative")
	}
	if c.MaxCheckins < 0 {
		return fmt.Errorf("max check-ins cannot be negative")
	}
	return nil
}

// Session owns one live call: its transcript state, memory, turn gate and
// the transcription stream. All state mutation happens on the loop goroutine
// fed by the event queue; external callers only enqueue.
type Session struct {
	ID        string
	CallID    string
	CallerID  string
	CalledID  string
	StartTime time.Time

	cfg         Config
	detector    *boundary.Detector
	mem         *memory.Store
	turns       TurnRunner
	interrupter Interrupter
	stream      provider.SpeechStream
	batcher     *audio.FrameBatcher
	metrics     *metrics.Metrics
	logger      *slog.Logger

	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	status       atomic.Int32
	lastActivity atomic.Int64 // unix nano

	// Loop-owned state below; never touched off the loop goroutine.
	safetyGen          uint64
	checkinGen         uint64
	safetyTimer        *time.Timer
	checkinTimer       *time.Timer
	pendingUtterance   string
	hasPending         bool
	checkinsUnanswered int

	closeOnce sync.Once
}

// StartInfo is the call metadata carried by the media stream's start event.
type StartInfo struct {
	CallID   string
	CallerID string
	CalledID string
}

func newSession(id string, info StartInfo, cfg Config, detector *boundary.Detector,
	mem *memory.Store, turns TurnRunner, interrupter Interrupter,
	stream provider.SpeechStream, m *metrics.Metrics, logger *slog.Logger) (*Session, error) {

	batcher, err := audio.NewFrameBatcher(cfg.SampleRate, cfg.FrameBatchMs)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:          id,
		CallID:      info.CallID,
		CallerID:    info.CallerID,
		CalledID:    info.CalledID,
		StartTime:   time.Now(),
		cfg:         cfg,
		detector:    detector,
		mem:         mem,
		turns:       turns,
		interrupter: interrupter,
		stream:      stream,
		batcher:     batcher,
		metrics:     m,
		logger: logger.With(
			slog.String("session_id", id),
			slog.String("call_id", info.CallID),
			slog.String("caller_id", info.CallerID),
		),
		events: make(chan event, cfg.EventQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	s.status.Store(int32(StatusCreated))
	s.touch()
	return s, nil
}

// start launches the loop and the stream reader, and speaks the greeting.
func (s *Session) start() {
	s.wg.Add(2)
	go s.run()
	go s.readStream()

	if s.cfg.Greeting != "" {
		s.startSystemTurn(s.cfg.Greeting)
	} else {
		s.setStatus(StatusListening)
	}
}

// Status returns the session's lifecycle state.
func (s *Session) Status() Status {
	return Status(s.status.Load())
}

// TurnState returns the turn gate's current state.
func (s *Session) TurnState() turn.State {
	return s.turns.State()
}

// LastActivity returns the time of the last inbound frame or speech event.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Facts returns a copy of the session's remembered facts.
func (s *Session) Facts() map[string]string {
	return s.mem.Facts()
}

// OnMediaFrame enqueues one inbound audio frame. Frames are dropped with a
// warning when the queue is saturated; stalling the media transport would be
// worse than losing audio.
func (s *Session) OnMediaFrame(audioBytes []byte) {
	if s.ctx.Err() != nil {
		return
	}

	frame := make([]byte, len(audioBytes))
	copy(frame, audioBytes)

	select {
	case s.events <- mediaFrameEvent{audio: frame}:
	default:
		s.logger.Warn("Event queue saturated, dropping media frame")
		s.metrics.RecordFrameError()
	}
}

// OnCallEnd enqueues the end-of-call signal from the media transport.
func (s *Session) OnCallEnd() {
	select {
	case s.events <- callEndEvent{}:
	case <-s.ctx.Done():
	}
}

// Close tears the session down and waits for its goroutines. Idempotent.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Session) setStatus(st Status) {
	s.status.Store(int32(st))
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// enqueue delivers loop-internal events, giving up when the session is done.
func (s *Session) enqueue(ev event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// run is the session event loop. It is the only goroutine that mutates
// session state.
func (s *Session) run() {
	defer s.wg.Done()
	defer s.shutdown()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			switch e := ev.(type) {
			case mediaFrameEvent:
				s.handleMediaFrame(e.audio)
			case speechEvent:
				s.handleSpeechEvent(e.ev)
			case safetyTimerEvent:
				s.handleSafetyTimer(e.gen)
			case checkinTimerEvent:
				s.handleCheckinTimer(e.gen)
			case turnDoneEvent:
				s.handleTurnDone(e)
			case streamErrorEvent:
				s.logger.Error("Transcription stream failed, closing session",
					slog.String("error", e.err.Error()),
				)
				s.cancel()
				return
			case callEndEvent:
				s.logger.Info("Call ended by media transport")
				s.cancel()
				return
			}
		}
	}
}

// readStream forwards transcription events onto the queue.
func (s *Session) readStream() {
	defer s.wg.Done()

	for ev := range s.stream.Events() {
		s.enqueue(speechEvent{ev: ev})
	}
	if err := s.stream.Err(); err != nil {
		s.enqueue(streamErrorEvent{err: err})
	}
}

func (s *Session) handleMediaFrame(frame []byte) {
	s.metrics.RecordFrameReceived()
	s.touch()

	chunk := s.batcher.Add(frame)
	if chunk == nil {
		return
	}
	if err := s.stream.SendAudio(chunk); err != nil {
		s.logger.Warn("Failed to forward audio to transcription",
			slog.String("error", err.Error()),
		)
		return
	}
	s.metrics.RecordAudioSent()
}

func (s *Session) handleSpeechEvent(ev provider.SpeechEvent) {
	s.metrics.RecordTranscriptionEvent()
	s.touch()
	if ev.Text != "" {
		s.checkinsUnanswered = 0
	}

	decision := s.detector.OnSpeechEvent(ev, time.Now())
	if decision.StopTimer {
		s.stopSafetyTimer()
	}
	if decision.ArmTimer {
		s.armSafetyTimer()
	}
	if decision.Finalize {
		s.finalizeUtterance(false)
	}
}

func (s *Session) handleSafetyTimer(gen uint64) {
	if gen != s.safetyGen {
		// A newer timer superseded this fire.
		return
	}
	decision := s.detector.OnTimerFire()
	if decision.Finalize {
		s.finalizeUtterance(true)
	}
}

func (s *Session) handleCheckinTimer(gen uint64) {
	if gen != s.checkinGen {
		return
	}
	if s.Status() != StatusListening || s.turns.State().Busy() {
		return
	}
	if s.detector.Pending() != "" {
		// The caller is mid-utterance; not silent, just slow.
		s.armCheckinTimer()
		return
	}
	if s.cfg.MaxCheckins > 0 && s.checkinsUnanswered >= s.cfg.MaxCheckins {
		s.logger.Info("Caller unresponsive, ending call",
			slog.Int("checkins_sent", s.checkinsUnanswered))
		s.cancel()
		return
	}
	s.checkinsUnanswered++
	s.logger.Info("Caller silent, sending check-in",
		slog.Int("checkins_unanswered", s.checkinsUnanswered))
	s.startSystemTurn(s.cfg.CheckinText)
}

// finalizeUtterance takes the buffered transcript and either starts a turn
// or, when a reply is already being delivered, stashes it and interrupts
// playback.
func (s *Session) finalizeUtterance(byTimer bool) {
	s.stopSafetyTimer()

	utt, ok := s.detector.TakeUtterance()
	if !ok {
		s.metrics.RecordUtteranceDiscarded()
		return
	}
	s.metrics.RecordUtteranceFinalized(byTimer)

	if s.turns.State().Busy() {
		// Barge-in: the caller spoke over the reply. Hold the utterance for
		// when the gate frees up and cut playback.
		if s.hasPending {
			s.pendingUtterance = s.pendingUtterance + " " + utt.Text
		} else {
			s.pendingUtterance = utt.Text
			s.hasPending = true
		}
		s.metrics.RecordBargeIn()
		s.logger.Info("Caller barged in, interrupting playback")
		if err := s.interrupter.Interrupt(s.ctx, s.ID); err != nil {
			s.logger.Warn("Playback interrupt failed",
				slog.String("error", err.Error()),
			)
		}
		return
	}

	s.startTurn(utt.Text)
}

func (s *Session) startTurn(text string) {
	s.setStatus(StatusResponding)
	s.stopCheckinTimer()
	s.metrics.RecordTurnStarted()

	startedAt := time.Now()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result := s.turns.Process(s.ctx, s.ID, text)
		s.enqueue(turnDoneEvent{result: result, startedAt: startedAt})
	}()
}

func (s *Session) startSystemTurn(text string) {
	s.setStatus(StatusResponding)
	s.stopCheckinTimer()

	startedAt := time.Now()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result := s.turns.ProcessSystem(s.ctx, s.ID, text)
		s.enqueue(turnDoneEvent{result: result, startedAt: startedAt, system: true})
	}()
}

func (s *Session) handleTurnDone(e turnDoneEvent) {
	s.setStatus(StatusListening)

	if !e.system {
		if e.result.Started {
			s.metrics.RecordTurnCompleted(
				e.result.UsedFallback,
				e.result.GenDuration.Seconds(),
				time.Since(e.startedAt).Seconds(),
			)
			if e.result.UsedFallback {
				s.metrics.RecordGenerationFailure()
			}
		} else {
			s.metrics.RecordTurnRejected()
		}
	}

	if s.hasPending {
		text := s.pendingUtterance
		s.pendingUtterance = ""
		s.hasPending = false
		s.startTurn(text)
		return
	}

	s.armCheckinTimer()
}

func (s *Session) armSafetyTimer() {
	s.stopSafetyTimer()
	s.safetyGen++
	gen := s.safetyGen
	s.safetyTimer = time.AfterFunc(s.detector.SafetyTimeout(), func() {
		s.enqueue(safetyTimerEvent{gen: gen})
	})
}

func (s *Session) stopSafetyTimer() {
	s.safetyGen++
	if s.safetyTimer != nil {
		s.safetyTimer.Stop()
		s.safetyTimer = nil
	}
}

func (s *Session) armCheckinTimer() {
	if s.cfg.CheckinInterval <= 0 || s.cfg.CheckinText == "" {
		return
	}
	s.stopCheckinTimer()
	s.checkinGen++
	gen := s.checkinGen
	s.checkinTimer = time.AfterFunc(s.cfg.CheckinInterval, func() {
		s.enqueue(checkinTimerEvent{gen: gen})
	})
}

func (s *Session) stopCheckinTimer() {
	s.checkinGen++
	if s.checkinTimer != nil {
		s.checkinTimer.Stop()
		s.checkinTimer = nil
	}
}

// shutdown flushes trailing audio, closes the stream and stops the timers.
// Runs on the loop goroutine as it exits, so the read goroutine can drain
// and terminate. Runs once.
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		s.setStatus(StatusClosing)
		s.cancel()

		if chunk := s.batcher.Flush(); chunk != nil {
			if err := s.stream.SendAudio(chunk); err == nil {
				s.metrics.RecordAudioSent()
			}
		}
		if err := s.stream.Close(); err != nil {
			s.logger.Debug("Stream close error",
				slog.String("error", err.Error()),
			)
		}

		s.stopSafetyTimer()
		s.stopCheckinTimer()

		s.setStatus(StatusClosed)
		s.logger.Info("Session closed",
			slog.Duration("duration", time.Since(s.StartTime)),
		)
	})
}
