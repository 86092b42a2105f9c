package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TemdigitalAi/voice-dialog-service/internal/boundary"
	"github.com/TemdigitalAi/voice-dialog-service/internal/memory"
	"github.com/TemdigitalAi/voice-dialog-service/internal/metrics"
	"github.com/TemdigitalAi/voice-dialog-service/internal/provider"
	"github.com/TemdigitalAi/voice-dialog-service/internal/turn"
)

// ManagerConfig bundles the per-session configuration the manager stamps
// onto every new call.
type ManagerConfig struct {
	Session      Config
	Boundary     boundary.Config
	Turn         turn.Config
	SystemPrompt string
	MaxExchanges int
	IdleTimeout  time.Duration
}

// Validate checks manager configuration
func (c *ManagerConfig) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Boundary.Validate(); err != nil {
		return fmt.Errorf("boundary: %w", err)
	}
	if err := c.Turn.Validate(); err != nil {
		return fmt.Errorf("turn: %w", err)
	}
	if c.MaxExchanges < 1 {
		return fmt.Errorf("max exchanges must be at least 1, got %d", c.MaxExchanges)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	return nil
}

// Deps are the shared provider clients every session uses.
type Deps struct {
	Streamer    provider.SpeechStreamer
	Generator   provider.ReplyGenerator
	Deliverer   turn.Deliverer
	Interrupter Interrupter
}

// Manager owns all active call sessions. Sessions are created when a media
// stream starts and removed on call end or idle expiry.
type Manager struct {
	config  ManagerConfig
	deps    Deps
	metrics *metrics.Metrics
	logger  *slog.Logger

	sessions map[string]*Session
	mu       sync.RWMutex

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup sync.WaitGroup
}

// NewManager creates a session manager and starts its idle cleanup routine.
func NewManager(config ManagerConfig, deps Deps, m *metrics.Metrics, logger *slog.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manager config: %w", err)
	}
	if deps.Streamer == nil || deps.Generator == nil || deps.Deliverer == nil || deps.Interrupter == nil {
		return nil, fmt.Errorf("all provider dependencies are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	mgr := &Manager{
		config:   config,
		deps:     deps,
		metrics:  m,
		logger:   logger,
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}

	mgr.cleanup.Add(1)
	go mgr.cleanupRoutine()

	return mgr, nil
}

// CreateSession builds and starts a session for a newly arrived call.
func (m *Manager) CreateSession(ctx context.Context, info StartInfo) (*Session, error) {
	id := uuid.NewString()

	stream, err := m.deps.Streamer.Start(ctx, id, m.config.Session.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcription stream: %w", err)
	}

	mem, err := memory.NewStore(m.config.SystemPrompt, m.config.MaxExchanges)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to create memory store: %w", err)
	}

	detector := boundary.NewDetector(m.config.Boundary)
	processor := turn.NewProcessor(m.config.Turn, m.deps.Generator, mem, m.deps.Deliverer, m.logger)

	sess, err := newSession(id, info, m.config.Session, detector, mem,
		processor, m.deps.Interrupter, stream, m.metrics, m.logger)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.mu.Lock()
	m.sessions[id] = sess
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.RecordSessionCreated()
	m.metrics.SetActiveSessions(count)

	m.logger.Info("Session created",
		slog.String("session_id", id),
		slog.String("call_id", info.CallID),
		slog.String("caller_id", info.CallerID),
		slog.Int("active_sessions", count),
	)

	sess.start()
	return sess, nil
}

// GetSession returns a session by ID.
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// GetActiveSessionCount returns the number of live sessions.
func (m *Manager) GetActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetAllSessions returns a snapshot of all live sessions.
func (m *Manager) GetAllSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	return out
}

// RemoveSession closes and forgets a session. Returns false when the ID is
// unknown; calling it twice for the same ID is safe.
func (m *Manager) RemoveSession(id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return false
	}

	sess.Close()
	m.metrics.RecordSessionClosed(time.Since(sess.StartTime).Seconds())
	m.metrics.SetActiveSessions(count)

	m.logger.Info("Session removed",
		slog.String("session_id", id),
		slog.Int("active_sessions", count),
	)
	return true
}

// Stop closes all sessions and halts the cleanup routine.
func (m *Manager) Stop() {
	m.cancel()
	m.cleanup.Wait()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
		m.metrics.RecordSessionClosed(time.Since(sess.StartTime).Seconds())
	}
	m.metrics.SetActiveSessions(0)

	m.logger.Info("Session manager stopped",
		slog.Int("closed_sessions", len(sessions)),
	)
}

// cleanupRoutine periodically removes sessions whose media went quiet past
// the idle timeout, catching calls whose transport died without a stop.
func (m *Manager) cleanupRoutine() {
	defer m.cleanup.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpiredSessions()
		}
	}
}

func (m *Manager) cleanupExpiredSessions() {
	now := time.Now()

	m.mu.RLock()
	var expired []string
	for id, sess := range m.sessions {
		if sess.Status() == StatusClosed || now.Sub(sess.LastActivity()) > m.config.IdleTimeout {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.logger.Warn("Removing finished or idle session",
			slog.String("session_id", id),
			slog.Duration("idle_timeout", m.config.IdleTimeout),
		)
		m.RemoveSession(id)
	}
}
