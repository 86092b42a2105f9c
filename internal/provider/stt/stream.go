package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TemdigitalAi/voice-dialog-service/internal/metrics"
	"github.com/TemdigitalAi/voice-dialog-service/internal/provider"
)

// Streamer opens websocket transcription streams, one per call. Audio goes
// up as binary messages; transcript events come back as JSON text messages.
type Streamer struct {
	config  Config
	dialer  *websocket.Dialer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Config contains transcription stream configuration
type Config struct {
	URL              string
	APIKey           string
	Language         string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	EventBuffer      int
}

// startMessage is sent once after connecting, before any audio.
type startMessage struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language,omitempty"`
}

// wireEvent is one JSON message from the transcription provider.
type wireEvent struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`
}

// Provider event types.
const (
	eventTranscript  = "transcript"
	eventSpeechFinal = "speech_final"
	eventError       = "error"
)

// NewStreamer creates a transcription streamer
func NewStreamer(config Config, m *metrics.Metrics, logger *slog.Logger) (*Streamer, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 5 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}

	return &Streamer{
		config: config,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.HandshakeTimeout,
		},
		metrics: m,
		logger:  logger,
	}, nil
}

// Start implements provider.SpeechStreamer. The returned stream owns the
// connection; its read loop runs until the connection closes or fails.
func (s *Streamer) Start(ctx context.Context, sessionID string, sampleRate int) (provider.SpeechStream, error) {
	header := http.Header{}
	if s.config.APIKey != "" {
		header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	conn, _, err := s.dialer.DialContext(ctx, s.config.URL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to transcription provider: %w", err)
	}

	start := startMessage{
		Type:       "start",
		SessionID:  sessionID,
		SampleRate: sampleRate,
		Language:   s.config.Language,
	}
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteJSON(start); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send start message: %w", err)
	}

	st := &stream{
		conn:         conn,
		events:       make(chan provider.SpeechEvent, s.config.EventBuffer),
		writeTimeout: s.config.WriteTimeout,
		metrics:      s.metrics,
		logger:       s.logger.With(slog.String("session_id", sessionID)),
	}
	go st.readLoop()
	return st, nil
}

// stream is one live transcription connection.
type stream struct {
	conn         *websocket.Conn
	events       chan provider.SpeechEvent
	writeTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger

	writeMu sync.Mutex

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

// SendAudio forwards one chunk of PCM audio as a binary message.
func (st *stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	st.writeMu.Lock()
	defer st.writeMu.Unlock()

	st.conn.SetWriteDeadline(time.Now().Add(st.writeTimeout))
	if err := st.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

// Events returns the transcript event channel. It is closed when the stream
// ends; check Err afterwards to distinguish clean shutdown from failure.
func (st *stream) Events() <-chan provider.SpeechEvent {
	return st.events
}

// Err reports the terminal stream error, nil on clean shutdown.
func (st *stream) Err() error {
	st.errMu.Lock()
	defer st.errMu.Unlock()
	return st.err
}

// Close shuts down the connection. Safe to call more than once.
func (st *stream) Close() error {
	var err error
	st.closeOnce.Do(func() {
		st.writeMu.Lock()
		st.conn.SetWriteDeadline(time.Now().Add(st.writeTimeout))
		st.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		st.writeMu.Unlock()

		err = st.conn.Close()
	})
	return err
}

// readLoop parses provider messages into speech events. Malformed messages
// are logged and dropped, never fatal.
func (st *stream) readLoop() {
	defer close(st.events)

	for {
		msgType, data, err := st.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				st.setErr(err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var ev wireEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			st.recordDrop(fmt.Errorf("%w: %v", provider.ErrMalformedEvent, err))
			continue
		}

		switch ev.Type {
		case eventTranscript:
			st.events <- provider.SpeechEvent{
				Text:     ev.Text,
				IsFinal:  ev.IsFinal,
				Received: time.Now(),
			}
		case eventSpeechFinal:
			st.events <- provider.SpeechEvent{
				EndOfSpeech: true,
				Received:    time.Now(),
			}
		case eventError:
			st.logger.Warn("Transcription provider reported error",
				slog.String("detail", ev.Text),
			)
		default:
			st.recordDrop(fmt.Errorf("%w: unknown type %q", provider.ErrMalformedEvent, ev.Type))
		}
	}
}

// recordDrop counts and logs a provider message that could not be used.
func (st *stream) recordDrop(err error) {
	st.metrics.RecordTranscriptionDropped()
	st.logger.Warn("Dropping unusable transcription event",
		slog.String("error", err.Error()),
	)
}

func (st *stream) setErr(err error) {
	st.errMu.Lock()
	defer st.errMu.Unlock()
	if st.err == nil {
		st.err = err
	}
}
