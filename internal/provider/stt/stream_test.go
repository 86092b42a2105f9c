package stt

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/TemdigitalAi/voice-dialog-service/internal/metrics"
)

var upgrader = websocket.Upgrader{}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

// fakeProvider runs a websocket server that validates the start message,
// echoes canned events, then waits for audio.
func fakeProvider(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNewStreamerValidation(t *testing.T) {
	if _, err := NewStreamer(Config{}, testMetrics(), testLogger()); err == nil {
		t.Error("Expected error for missing URL")
	}
}

func TestStartSendsStartMessage(t *testing.T) {
	got := make(chan startMessage, 1)
	srv := fakeProvider(t, func(conn *websocket.Conn) {
		var msg startMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Errorf("Failed to read start message: %v", err)
			return
		}
		got <- msg
		// Keep the connection open until the client closes.
		conn.ReadMessage()
	})
	defer srv.Close()

	s, err := NewStreamer(Config{URL: wsURL(srv), Language: "en"}, testMetrics(), testLogger())
	if err != nil {
		t.Fatalf("Failed to create streamer: %v", err)
	}

	st, err := s.Start(context.Background(), "sess-1", 8000)
	if err != nil {
		t.Fatalf("Failed to start stream: %v", err)
	}
	defer st.Close()

	select {
	case msg := <-got:
		if msg.Type != "start" {
			t.Errorf("Expected type start, got %q", msg.Type)
		}
		if msg.SessionID != "sess-1" {
			t.Errorf("Expected session sess-1, got %q", msg.SessionID)
		}
		if msg.SampleRate != 8000 {
			t.Errorf("Expected sample rate 8000, got %d", msg.SampleRate)
		}
		if msg.Language != "en" {
			t.Errorf("Expected language en, got %q", msg.Language)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for start message")
	}
}

func TestTranscriptEvents(t *testing.T) {
	srv := fakeProvider(t, func(conn *websocket.Conn) {
		var msg startMessage
		conn.ReadJSON(&msg)

		events := []wireEvent{
			{Type: "transcript", Text: "hello", IsFinal: false},
			{Type: "transcript", Text: "hello there", IsFinal: true},
			{Type: "speech_final"},
		}
		for _, ev := range events {
			data, _ := json.Marshal(ev)
			conn.WriteMessage(websocket.TextMessage, data)
		}
		conn.ReadMessage()
	})
	defer srv.Close()

	s, _ := NewStreamer(Config{URL: wsURL(srv)}, testMetrics(), testLogger())
	st, err := s.Start(context.Background(), "sess-1", 8000)
	if err != nil {
		t.Fatalf("Failed to start stream: %v", err)
	}
	defer st.Close()

	read := func() (ev struct {
		Text        string
		IsFinal     bool
		EndOfSpeech bool
	}) {
		select {
		case e, ok := <-st.Events():
			if !ok {
				t.Fatal("Event channel closed early")
			}
			ev.Text, ev.IsFinal, ev.EndOfSpeech = e.Text, e.IsFinal, e.EndOfSpeech
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for event")
			return
		}
	}

	first := read()
	if first.Text != "hello" || first.IsFinal {
		t.Errorf("Unexpected first event: %+v", first)
	}
	second := read()
	if second.Text != "hello there" || !second.IsFinal {
		t.Errorf("Unexpected second event: %+v", second)
	}
	third := read()
	if !third.EndOfSpeech {
		t.Errorf("Expected end-of-speech event, got %+v", third)
	}
}

func TestMalformedEventsDropped(t *testing.T) {
	srv := fakeProvider(t, func(conn *websocket.Conn) {
		var msg startMessage
		conn.ReadJSON(&msg)

		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mystery"}`))
		data, _ := json.Marshal(wireEvent{Type: "transcript", Text: "survived", IsFinal: true})
		conn.WriteMessage(websocket.TextMessage, data)
		conn.ReadMessage()
	})
	defer srv.Close()

	m := testMetrics()
	s, _ := NewStreamer(Config{URL: wsURL(srv)}, m, testLogger())
	st, err := s.Start(context.Background(), "sess-1", 8000)
	if err != nil {
		t.Fatalf("Failed to start stream: %v", err)
	}
	defer st.Close()

	select {
	case ev, ok := <-st.Events():
		if !ok {
			t.Fatal("Event channel closed before valid event")
		}
		if ev.Text != "survived" {
			t.Errorf("Expected valid event to survive malformed ones, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for valid event")
	}

	if got := testutil.ToFloat64(m.TranscriptionDropped); got != 2 {
		t.Errorf("Expected 2 dropped events counted, got %v", got)
	}
}

func TestSendAudio(t *testing.T) {
	got := make(chan []byte, 1)
	srv := fakeProvider(t, func(conn *websocket.Conn) {
		var msg startMessage
		conn.ReadJSON(&msg)

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.BinaryMessage {
			got <- data
		}
		conn.ReadMessage()
	})
	defer srv.Close()

	s, _ := NewStreamer(Config{URL: wsURL(srv)}, testMetrics(), testLogger())
	st, err := s.Start(context.Background(), "sess-1", 8000)
	if err != nil {
		t.Fatalf("Failed to start stream: %v", err)
	}
	defer st.Close()

	chunk := []byte{1, 2, 3, 4}
	if err := st.SendAudio(chunk); err != nil {
		t.Fatalf("SendAudio failed: %v", err)
	}

	select {
	case data := <-got:
		if len(data) != 4 {
			t.Errorf("Expected 4 bytes, got %d", len(data))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for audio")
	}
}

func TestCloseEndsEventChannel(t *testing.T) {
	srv := fakeProvider(t, func(conn *websocket.Conn) {
		var msg startMessage
		conn.ReadJSON(&msg)
		conn.ReadMessage()
	})
	defer srv.Close()

	s, _ := NewStreamer(Config{URL: wsURL(srv)}, testMetrics(), testLogger())
	st, err := s.Start(context.Background(), "sess-1", 8000)
	if err != nil {
		t.Fatalf("Failed to start stream: %v", err)
	}

	if err := st.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	// Double close is safe.
	st.Close()

	select {
	case _, ok := <-st.Events():
		if ok {
			t.Error("Expected channel to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for channel close")
	}
}
