package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice dialog service
type Metrics struct {
	// Session metrics
	ActiveSessions   prometheus.Gauge
	SessionsCreated  prometheus.Counter
	SessionsClosed   prometheus.Counter
	SessionDuration  prometheus.Histogram

	// Media metrics
	FramesReceived prometheus.Counter
	FrameErrors    prometheus.Counter
	AudioSent      prometheus.Counter

	// Boundary metrics
	UtterancesFinalized prometheus.Counter
	TimerFinalizations  prometheus.Counter
	UtterancesDiscarded prometheus.Counter

	// Turn metrics
	TurnsStarted        prometheus.Counter
	TurnsRejected       prometheus.Counter
	FallbackReplies     prometheus.Counter
	BargeIns            prometheus.Counter
	ReplyGenDuration    prometheus.Histogram
	TurnTotalDuration   prometheus.Histogram

	// Provider metrics
	TranscriptionEvents  prometheus.Counter
	TranscriptionDropped prometheus.Counter
	SynthesisFailures    prometheus.Counter
	GenerationFailures   prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// New creates all metrics registered against the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Session metrics
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dialog_active_sessions",
			Help: "Current number of active call sessions",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_sessions_created_total",
			Help: "Total number of call sessions created",
		}),
		SessionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_sessions_closed_total",
			Help: "Total number of call sessions closed",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dialog_session_duration_seconds",
			Help:    "Duration of call sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),

		// Media metrics
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_media_frames_received_total",
			Help: "Total number of inbound media frames received",
		}),
		FrameErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_media_frame_errors_total",
			Help: "Total number of malformed media envelopes",
		}),
		AudioSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_audio_chunks_sent_total",
			Help: "Total number of audio chunks forwarded to transcription",
		}),

		// Boundary metrics
		UtterancesFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_utterances_finalized_total",
			Help: "Total number of utterances finalized",
		}),
		TimerFinalizations: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_timer_finalizations_total",
			Help: "Total number of utterances finalized by the safety timer",
		}),
		UtterancesDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_utterances_discarded_total",
			Help: "Total number of utterances discarded as too short",
		}),

		// Turn metrics
		TurnsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_turns_started_total",
			Help: "Total number of conversation turns started",
		}),
		TurnsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_turns_rejected_total",
			Help: "Total number of finalization triggers rejected by the single-flight gate",
		}),
		FallbackReplies: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_fallback_replies_total",
			Help: "Total number of turns answered with the fallback reply",
		}),
		BargeIns: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_barge_ins_total",
			Help: "Total number of caller barge-ins during reply delivery",
		}),
		ReplyGenDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dialog_reply_generation_duration_seconds",
			Help:    "Duration of reply generation requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		TurnTotalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dialog_turn_duration_seconds",
			Help:    "Total duration of turns from finalization to delivery",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~1 minute
		}),

		// Provider metrics
		TranscriptionEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_transcription_events_total",
			Help: "Total number of transcription events received",
		}),
		TranscriptionDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_transcription_events_dropped_total",
			Help: "Total number of malformed transcription events dropped",
		}),
		SynthesisFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_synthesis_failures_total",
			Help: "Total number of synthesis failures across all providers",
		}),
		GenerationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialog_generation_failures_total",
			Help: "Total number of reply generation failures",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dialog_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dialog_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dialog_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordSessionCreated increments session creation metrics
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionClosed records a closed session and its duration
func (m *Metrics) RecordSessionClosed(durationSeconds float64) {
	m.SessionsClosed.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// SetActiveSessions updates the active session gauge
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordFrameReceived increments the inbound frame counter
func (m *Metrics) RecordFrameReceived() {
	m.FramesReceived.Inc()
}

// RecordFrameError increments the malformed envelope counter
func (m *Metrics) RecordFrameError() {
	m.FrameErrors.Inc()
}

// RecordAudioSent increments the forwarded chunk counter
func (m *Metrics) RecordAudioSent() {
	m.AudioSent.Inc()
}

// RecordUtteranceFinalized records one finalized utterance; byTimer marks
// safety timer finalizations.
func (m *Metrics) RecordUtteranceFinalized(byTimer bool) {
	m.UtterancesFinalized.Inc()
	if byTimer {
		m.TimerFinalizations.Inc()
	}
}

// RecordUtteranceDiscarded increments the discarded utterance counter
func (m *Metrics) RecordUtteranceDiscarded() {
	m.UtterancesDiscarded.Inc()
}

// RecordTurnStarted increments the started turn counter
func (m *Metrics) RecordTurnStarted() {
	m.TurnsStarted.Inc()
}

// RecordTurnRejected increments the gate rejection counter
func (m *Metrics) RecordTurnRejected() {
	m.TurnsRejected.Inc()
}

// RecordTurnCompleted records one finished turn
func (m *Metrics) RecordTurnCompleted(usedFallback bool, genSeconds, totalSeconds float64) {
	if usedFallback {
		m.FallbackReplies.Inc()
	}
	m.ReplyGenDuration.Observe(genSeconds)
	m.TurnTotalDuration.Observe(totalSeconds)
}

// RecordBargeIn increments the barge-in counter
func (m *Metrics) RecordBargeIn() {
	m.BargeIns.Inc()
}

// RecordTranscriptionEvent increments the transcription event counter
func (m *Metrics) RecordTranscriptionEvent() {
	m.TranscriptionEvents.Inc()
}

// RecordTranscriptionDropped increments the dropped event counter
func (m *Metrics) RecordTranscriptionDropped() {
	m.TranscriptionDropped.Inc()
}

// RecordSynthesisFailure increments the synthesis failure counter
func (m *Metrics) RecordSynthesisFailure() {
	m.SynthesisFailures.Inc()
}

// RecordGenerationFailure increments the generation failure counter
func (m *Metrics) RecordGenerationFailure() {
	m.GenerationFailures.Inc()
}

// RecordHTTPRequest records an HTTP request with its duration
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error by type
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
