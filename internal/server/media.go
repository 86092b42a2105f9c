package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TemdigitalAi/voice-dialog-service/internal/metrics"
	"github.com/TemdigitalAi/voice-dialog-service/internal/protocol"
	"github.com/TemdigitalAi/voice-dialog-service/internal/session"
)

// MediaHandler accepts media WebSocket connections from the telephony
// gateway. Each connection carries one call: a start envelope, a stream of
// audio frames, and a stop envelope. The handler translates envelopes into
// session events; all dialog logic lives behind the session.
type MediaHandler struct {
	sessionMgr *session.Manager
	upgrader   websocket.Upgrader
	metrics    *metrics.Metrics
	logger     *slog.Logger

	readLimit   int64
	readTimeout time.Duration
}

// NewMediaHandler creates the media ingress handler
func NewMediaHandler(sessionMgr *session.Manager, m *metrics.Metrics, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			// The gateway connects from inside the deployment; origin
			// checks are left to the fronting proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		metrics:     m,
		logger:      logger,
		readLimit:   1 << 20,
		readTimeout: 2 * time.Minute,
	}
}

// ServeHTTP upgrades the connection and runs the per-call envelope loop.
func (h *MediaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Media upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(h.readLimit)

	var sess *session.Session
	defer func() {
		// Disconnect without a stop envelope still ends the call.
		if sess != nil {
			h.sessionMgr.RemoveSession(sess.ID)
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Info("Media connection closed",
					slog.String("remote", r.RemoteAddr),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			h.metrics.RecordFrameError()
			h.logger.Warn("Dropping malformed media envelope",
				slog.String("remote", r.RemoteAddr),
				slog.String("error", err.Error()),
			)
			continue
		}

		switch env.Event {
		case protocol.EventStart:
			if sess != nil {
				h.logger.Warn("Duplicate start envelope, ignoring",
					slog.String("session_id", sess.ID),
				)
				continue
			}
			sess, err = h.sessionMgr.CreateSession(r.Context(), session.StartInfo{
				CallID:   env.Start.CallID,
				CallerID: env.Start.CallerID,
				CalledID: env.Start.CalledID,
			})
			if err != nil {
				h.logger.Error("Failed to create session",
					slog.String("call_id", env.Start.CallID),
					slog.String("error", err.Error()),
				)
				return
			}

		case protocol.EventFrame:
			if sess == nil {
				h.metrics.RecordFrameError()
				h.logger.Warn("Frame before start envelope, dropping")
				continue
			}
			sess.OnMediaFrame(env.Frame.Audio)

		case protocol.EventStop:
			if sess == nil {
				return
			}
			h.logger.Info("Stop envelope received",
				slog.String("session_id", sess.ID),
				slog.String("reason", env.Stop.Reason),
			)
			sess.OnCallEnd()
			h.sessionMgr.RemoveSession(sess.ID)
			sess = nil
			return
		}
	}
}
