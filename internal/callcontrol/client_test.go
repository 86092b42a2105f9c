package callcontrol

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error for missing base URL")
	}
}

func TestPlayAudio(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		if ct := r.Header.Get("Content-Type"); ct != "audio/wav" {
			t.Errorf("Expected audio/wav content type, got %q", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Expected bearer auth, got %q", auth)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	audio := []byte("RIFF-fake-wav")
	if err := c.PlayAudio(context.Background(), "sess-1", audio); err != nil {
		t.Fatalf("PlayAudio failed: %v", err)
	}
	if gotPath != "/sessions/sess-1/play" {
		t.Errorf("Unexpected path: %q", gotPath)
	}
	if string(gotBody) != string(audio) {
		t.Error("Audio bytes do not match")
	}
}

func TestPlayAudioEmptyClip(t *testing.T) {
	c, _ := NewClient(Config{BaseURL: "http://localhost:1"})
	if err := c.PlayAudio(context.Background(), "sess-1", nil); err == nil {
		t.Error("Expected error for empty clip")
	}
}

func TestStopAndResume(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := NewClient(Config{BaseURL: srv.URL})

	if err := c.StopAudio(context.Background(), "sess-1"); err != nil {
		t.Errorf("StopAudio failed: %v", err)
	}
	if err := c.ResumeStreaming(context.Background(), "sess-1"); err != nil {
		t.Errorf("ResumeStreaming failed: %v", err)
	}

	if len(paths) != 2 || paths[0] != "/sessions/sess-1/stop" || paths[1] != "/sessions/sess-1/resume" {
		t.Errorf("Unexpected paths: %v", paths)
	}
}

func TestGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such session", http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := NewClient(Config{BaseURL: srv.URL})
	if err := c.StopAudio(context.Background(), "sess-x"); err == nil {
		t.Error("Expected error for 404 response")
	}
}
