package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TemdigitalAi/voice-dialog-service/internal/config"
	"github.com/TemdigitalAi/voice-dialog-service/internal/metrics"
	"github.com/TemdigitalAi/voice-dialog-service/internal/provider/llm"
	"github.com/TemdigitalAi/voice-dialog-service/internal/session"
)

// HTTPServer serves the media WebSocket ingress and the monitoring API on
// one listener.
type HTTPServer struct {
	server     *http.Server
	logger     *slog.Logger
	config     *config.Config
	sessionMgr *session.Manager
	media      *MediaHandler
	llmClient  *llm.Client
	metrics    *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates the HTTP server with all routes mounted
func NewHTTPServer(cfg config.ServerConfig, logger *slog.Logger, appConfig *config.Config,
	sessionMgr *session.Manager, media *MediaHandler, llmClient *llm.Client, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:     logger,
		config:     appConfig,
		sessionMgr: sessionMgr,
		media:      media,
		llmClient:  llmClient,
		metrics:    m,
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Media ingress; long-lived websocket, no timing middleware.
	mux.HandleFunc("/media", h.media.ServeHTTP)

	mux.HandleFunc("/healthz", h.withMetrics("/healthz", h.handleHealth))
	mux.HandleFunc("/sessions", h.withMetrics("/sessions", h.handleSessions))
	mux.HandleFunc("/sessions/", h.withMetrics("/sessions/{id}", h.handleSessionDetail))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode), duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")
	return h.server.Shutdown(ctx)
}

// handleHealth implements the /healthz endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	llmStats := h.llmClient.GetStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "voice-dialog-service",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"session_manager": map[string]interface{}{
				"status":          "running",
				"active_sessions": h.sessionMgr.GetActiveSessionCount(),
			},
			"reply_generation": map[string]interface{}{
				"status":          "running",
				"total_requests":  llmStats.TotalRequests,
				"success_rate":    llmStats.SuccessRate,
				"active_requests": llmStats.ActiveRequests,
			},
		},
	}

	writeJSON(w, health)
}

// sessionSummary is one session in the /sessions listing.
type sessionSummary struct {
	ID            string    `json:"id"`
	CallID        string    `json:"call_id,omitempty"`
	CallerID      string    `json:"caller_id,omitempty"`
	CalledID      string    `json:"called_id,omitempty"`
	Status        string    `json:"status"`
	TurnState     string    `json:"turn_state"`
	StartTime     time.Time `json:"start_time"`
	LastActivity  time.Time `json:"last_activity"`
	DurationHuman string    `json:"duration"`
}

func summarize(s *session.Session) sessionSummary {
	return sessionSummary{
		ID:            s.ID,
		CallID:        s.CallID,
		CallerID:      s.CallerID,
		CalledID:      s.CalledID,
		Status:        s.Status().String(),
		TurnState:     s.TurnState().String(),
		StartTime:     s.StartTime,
		LastActivity:  s.LastActivity(),
		DurationHuman: time.Since(s.StartTime).Truncate(time.Second).String(),
	}
}

// handleSessions implements the /sessions endpoint
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := h.sessionMgr.GetAllSessions()
	summaries := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, summarize(s))
	}

	writeJSON(w, map[string]interface{}{
		"count":    len(summaries),
		"sessions": summaries,
	})
}

// handleSessionDetail implements the /sessions/{id} endpoint
func (h *HTTPServer) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if id == "" {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]interface{}{
		"session": summarize(sess),
		"facts":   sess.Facts(),
	})
}

// handleConfig implements the /config endpoint with secrets redacted
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := h.config
	writeJSON(w, map[string]interface{}{
		"server": map[string]interface{}{
			"address": cfg.Server.Address,
			"port":    cfg.Server.Port,
		},
		"media": map[string]interface{}{
			"sample_rate":    cfg.Media.SampleRate,
			"frame_batch_ms": cfg.Media.FrameBatchMs,
			"idle_timeout":   cfg.Media.IdleTimeout,
		},
		"boundary": map[string]interface{}{
			"safety_timeout_ms":   cfg.Boundary.SafetyTimeoutMs,
			"min_utterance_chars": cfg.Boundary.MinUtteranceChars,
		},
		"turn": map[string]interface{}{
			"reply_timeout": cfg.Turn.ReplyTimeout,
		},
		"memory": map[string]interface{}{
			"max_exchanges": cfg.Memory.MaxExchanges,
		},
		"llm": map[string]interface{}{
			"endpoint": cfg.LLM.Endpoint,
			"model":    cfg.LLM.Model,
			"api_key":  redact(cfg.LLM.APIKey),
		},
		"stt": map[string]interface{}{
			"url":     cfg.STT.URL,
			"api_key": redact(cfg.STT.APIKey),
		},
	})
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]interface{}{
		"timestamp":       time.Now().UTC(),
		"uptime":          time.Since(h.startTime).String(),
		"active_sessions": h.sessionMgr.GetActiveSessionCount(),
		"reply_generation": h.llmClient.GetStats(),
	})
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]interface{}{
		"service": "voice-dialog-service",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"/media":          "WebSocket media stream ingress",
			"/healthz":        "Health check with component status",
			"/sessions":       "List active call sessions",
			"/sessions/{id}":  "Session detail with remembered facts",
			"/config":         "Active configuration (secrets redacted)",
			"/stats":          "Service statistics",
			"/metrics":        "Prometheus metrics",
		},
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
