// Local development harness that fakes every external provider the
// dialog service talks to: a streaming transcription websocket, an
// OpenAI-compatible chat completion endpoint, a speech synthesis
// endpoint and the call-control gateway API. Point config.yaml at
// http://localhost:9100 / ws://localhost:9100/stt and the service runs
// end to end without real providers.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/TemdigitalAi/voice-dialog-service/internal/audio"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type sttStart struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language"`
}

type sttEvent struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`
}

var mockUtterances = []string{
	"Hello, I would like to check my account balance.",
	"My budget is about four hundred thousand.",
	"Can you call me back around noon tomorrow?",
	"Thank you, that is all I needed.",
}

// sttHandler speaks the streaming transcription protocol: a start JSON
// message, then binary audio frames in, transcript and speech_final
// events out. Every ~2 seconds of received audio produces one canned
// utterance.
func sttHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ STT upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return
	}
	if msgType != websocket.TextMessage {
		log.Printf("❌ STT: expected start message, got binary")
		return
	}
	var start sttStart
	if err := json.Unmarshal(data, &start); err != nil || start.Type != "start" {
		log.Printf("❌ STT: bad start message: %s", string(data))
		return
	}
	log.Printf("🎤 STT stream opened: session=%s rate=%d lang=%s",
		start.SessionID, start.SampleRate, start.Language)

	// 16-bit mono PCM, so 2 bytes per sample.
	bytesPerUtterance := start.SampleRate * 2 * 2
	if bytesPerUtterance == 0 {
		bytesPerUtterance = 32000
	}

	received := 0
	utterance := 0
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("🎤 STT stream closed: session=%s received=%d bytes", start.SessionID, received)
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		received += len(data)
		if received < bytesPerUtterance {
			continue
		}
		received = 0

		text := mockUtterances[utterance%len(mockUtterances)]
		utterance++

		words := strings.Fields(text)
		half := strings.Join(words[:len(words)/2], " ")
		partial := sttEvent{Type: "transcript", Text: half}
		final := sttEvent{Type: "transcript", Text: text, IsFinal: true}
		done := sttEvent{Type: "speech_final"}
		for _, ev := range []sttEvent{partial, final, done} {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		log.Printf("🎤 STT finalized: session=%s text=%q", start.SessionID, text)
	}
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// chatHandler returns a structured reply in the {"reply","facts"}
// contract, echoing the last user message so conversations are easy to
// follow in logs.
func chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	lastUser := ""
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			lastUser = msg.Content
		}
	}
	log.Printf("🧠 Chat request: model=%s messages=%d last_user=%q", req.Model, len(req.Messages), lastUser)

	structured := map[string]any{
		"reply": fmt.Sprintf("I heard you say: %s. How else can I help?", lastUser),
		"facts": map[string]string{},
	}
	if strings.Contains(strings.ToLower(lastUser), "budget") {
		structured["facts"] = map[string]string{"budget": "400k"}
	}
	content, _ := json.Marshal(structured)

	response := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": string(content)}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// speechHandler returns a short tone clip whose length scales with the
// input text, so playback timing looks realistic downstream.
func speechHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	// Roughly 60ms of audio per character, capped at 5 seconds.
	durationMs := len(req.Input) * 60
	if durationMs > 5000 {
		durationMs = 5000
	}
	if durationMs < 200 {
		durationMs = 200
	}
	samples := audio.GenerateTone(330, durationMs, 8000, 0.3)
	clip, err := audio.EncodeWAV(samples, 8000)
	if err != nil {
		http.Error(w, "Encoding failed", http.StatusInternalServerError)
		return
	}

	log.Printf("🔊 Speech request: model=%s voice=%s chars=%d → %dms clip",
		req.Model, req.Voice, len(req.Input), durationMs)
	w.Header().Set("Content-Type", "audio/wav")
	w.Write(clip)
}

// callControlHandler accepts play/stop/resume commands for any session
// and just logs them.
func callControlHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "sessions" {
		http.NotFound(w, r)
		return
	}
	sessionID, command := parts[1], parts[2]

	switch command {
	case "play":
		body, _ := io.ReadAll(r.Body)
		log.Printf("📞 Call control: session=%s PLAY %d bytes (%s)",
			sessionID, len(body), r.Header.Get("Content-Type"))
	case "stop", "resume":
		log.Printf("📞 Call control: session=%s %s", sessionID, strings.ToUpper(command))
	default:
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func main() {
	addr := flag.String("addr", ":9100", "listen address for all mock providers")
	flag.Parse()

	http.HandleFunc("/stt", sttHandler)
	http.HandleFunc("/v1/chat/completions", chatHandler)
	http.HandleFunc("/v1/audio/speech", speechHandler)
	http.HandleFunc("/sessions/", callControlHandler)

	log.Printf("🚀 Mock provider server starting on %s", *addr)
	log.Printf("📡 STT websocket:  ws://localhost%s/stt", *addr)
	log.Printf("📡 Chat endpoint:  http://localhost%s/v1/chat/completions", *addr)
	log.Printf("📡 TTS endpoint:   http://localhost%s/v1/audio/speech", *addr)
	log.Printf("📡 Call control:   http://localhost%s/sessions/{id}/{play|stop|resume}", *addr)
	log.Println("💡 Point config.yaml provider endpoints at these URLs for local runs")

	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
