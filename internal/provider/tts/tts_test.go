package tts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/TemdigitalAi/voice-dialog-service/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{Model: "m", Voice: "v"}); err == nil {
		t.Error("Expected error for missing endpoint")
	}
	if _, err := NewClient(Config{Endpoint: "http://x", Voice: "v"}); err == nil {
		t.Error("Expected error for missing model")
	}
	if _, err := NewClient(Config{Endpoint: "http://x", Model: "m"}); err == nil {
		t.Error("Expected error for missing voice")
	}
}

func TestSynthesize(t *testing.T) {
	wantAudio := []byte("RIFF....WAVEfake-audio-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Input != "hello caller" {
			t.Errorf("Expected input 'hello caller', got %q", req.Input)
		}
		if req.Voice != "alloy" {
			t.Errorf("Expected voice alloy, got %q", req.Voice)
		}
		if req.ResponseFormat != "wav" {
			t.Errorf("Expected wav format, got %q", req.ResponseFormat)
		}
		w.Write(wantAudio)
	}))
	defer srv.Close()

	c, err := NewClient(Config{
		Endpoint: srv.URL,
		Model:    "tts-1",
		Voice:    "alloy",
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	audio, err := c.Synthesize(context.Background(), "hello caller")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio) != string(wantAudio) {
		t.Error("Audio bytes do not match")
	}
}

func TestSynthesizeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := NewClient(Config{Endpoint: srv.URL, Model: "tts-1", Voice: "alloy"})

	if _, err := c.Synthesize(context.Background(), "hi"); err == nil {
		t.Error("Expected error for 404 response")
	} else if !errors.Is(err, provider.ErrUnavailable) {
		t.Errorf("Expected error wrapping ErrUnavailable, got %v", err)
	}
	if _, err := c.Synthesize(context.Background(), ""); err == nil {
		t.Error("Expected error for empty text")
	}
}

type stubSynth struct {
	audio []byte
	err   error
	calls int
}

func (s *stubSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.calls++
	return s.audio, s.err
}

func TestChainUsesPrimary(t *testing.T) {
	primary := &stubSynth{audio: []byte("primary")}
	secondary := &stubSynth{audio: []byte("secondary")}

	chain, err := NewChain(testLogger(), primary, secondary)
	if err != nil {
		t.Fatalf("Failed to create chain: %v", err)
	}

	audio, err := chain.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio) != "primary" {
		t.Errorf("Expected primary audio, got %q", audio)
	}
	if secondary.calls != 0 {
		t.Error("Expected secondary to not be called")
	}
}

func TestChainFallsBack(t *testing.T) {
	primary := &stubSynth{err: errors.New("provider down")}
	secondary := &stubSynth{audio: []byte("secondary")}

	chain, _ := NewChain(testLogger(), primary, secondary)
	audio, err := chain.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Expected fallback to succeed: %v", err)
	}
	if string(audio) != "secondary" {
		t.Errorf("Expected secondary audio, got %q", audio)
	}
}

func TestChainAllFail(t *testing.T) {
	primary := &stubSynth{err: errors.New("down")}
	secondary := &stubSynth{err: errors.New("also down")}

	chain, _ := NewChain(testLogger(), primary, secondary)
	if _, err := chain.Synthesize(context.Background(), "hello"); err == nil {
		t.Error("Expected error when all synthesizers fail")
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("Expected both tried once, got %d/%d", primary.calls, secondary.calls)
	}
}

func TestChainRequiresSynthesizer(t *testing.T) {
	if _, err := NewChain(testLogger()); err == nil {
		t.Error("Expected error for empty chain")
	}
}
