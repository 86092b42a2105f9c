package delivery

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/TemdigitalAi/voice-dialog-service/internal/metrics"
)

type stubSynth struct {
	audio []byte
	err   error
}

func (s *stubSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return s.audio, s.err
}

type stubGateway struct {
	played    [][]byte
	stopped   int
	resumed   int
	playErr   error
	stopErr   error
	resumeErr error
}

func (g *stubGateway) PlayAudio(ctx context.Context, sessionID string, audio []byte) error {
	g.played = append(g.played, audio)
	return g.playErr
}

func (g *stubGateway) StopAudio(ctx context.Context, sessionID string) error {
	g.stopped++
	return g.stopErr
}

func (g *stubGateway) ResumeStreaming(ctx context.Context, sessionID string) error {
	g.resumed++
	return g.resumeErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() Config {
	return Config{SynthesisTimeout: time.Second, SampleRate: 8000}
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{SynthesisTimeout: time.Second, SampleRate: 44100}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unsupported sample rate")
	}
	cfg = Config{SampleRate: 8000}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero timeout")
	}
}

func TestDeliverPlaysSynthesizedAudio(t *testing.T) {
	synth := &stubSynth{audio: []byte("synthesized")}
	gw := &stubGateway{}
	c, err := NewController(testConfig(), synth, gw, testMetrics(), testLogger())
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}

	if err := c.Deliver(context.Background(), "sess-1", "hello"); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if len(gw.played) != 1 || string(gw.played[0]) != "synthesized" {
		t.Errorf("Expected synthesized audio played, got %v", gw.played)
	}
	if gw.resumed != 1 {
		t.Errorf("Expected streaming resumed once, got %d", gw.resumed)
	}
}

func TestDeliverFallsBackToClip(t *testing.T) {
	synth := &stubSynth{err: errors.New("all synthesizers failed")}
	gw := &stubGateway{}
	m := testMetrics()
	c, _ := NewController(testConfig(), synth, gw, m, testLogger())

	if err := c.Deliver(context.Background(), "sess-1", "hello"); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if len(gw.played) != 1 {
		t.Fatalf("Expected one playback, got %d", len(gw.played))
	}
	// The fallback clip is valid WAV.
	if string(gw.played[0][0:4]) != "RIFF" {
		t.Error("Expected fallback clip to be WAV")
	}
	if got := testutil.ToFloat64(m.SynthesisFailures); got != 1 {
		t.Errorf("Expected 1 synthesis failure counted, got %v", got)
	}
}

func TestDeliverPlaybackFailure(t *testing.T) {
	synth := &stubSynth{audio: []byte("ok")}
	gw := &stubGateway{playErr: errors.New("gateway down")}
	c, _ := NewController(testConfig(), synth, gw, testMetrics(), testLogger())

	if err := c.Deliver(context.Background(), "sess-1", "hello"); err == nil {
		t.Error("Expected error when playback fails")
	}
	if gw.resumed != 0 {
		t.Error("Expected no resume after failed playback")
	}
}

func TestDeliverResumeFailureTolerated(t *testing.T) {
	synth := &stubSynth{audio: []byte("ok")}
	gw := &stubGateway{resumeErr: errors.New("resume failed")}
	c, _ := NewController(testConfig(), synth, gw, testMetrics(), testLogger())

	if err := c.Deliver(context.Background(), "sess-1", "hello"); err != nil {
		t.Errorf("Expected resume failure to be tolerated, got %v", err)
	}
}

func TestInterrupt(t *testing.T) {
	c, _ := NewController(testConfig(), &stubSynth{}, &stubGateway{}, testMetrics(), testLogger())
	gw := &stubGateway{}
	c.gateway = gw

	if err := c.Interrupt(context.Background(), "sess-1"); err != nil {
		t.Errorf("Interrupt failed: %v", err)
	}
	if gw.stopped != 1 {
		t.Errorf("Expected one stop, got %d", gw.stopped)
	}

	gw.stopErr = errors.New("no playback")
	if err := c.Interrupt(context.Background(), "sess-1"); err == nil {
		t.Error("Expected error when stop fails")
	}
}
