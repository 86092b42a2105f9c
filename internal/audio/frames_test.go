package audio

import (
	"bytes"
	"testing"
)

func TestNewFrameBatcherValidation(t *testing.T) {
	if _, err := NewFrameBatcher(0, 100); err == nil {
		t.Error("Expected error for zero sample rate")
	}
	if _, err := NewFrameBatcher(8000, 0); err == nil {
		t.Error("Expected error for zero target duration")
	}
}

func TestFrameBatcherAccumulates(t *testing.T) {
	// 100ms target at 8kHz PCM-16 = 1600 bytes; 20ms frames = 320 bytes.
	b, err := NewFrameBatcher(8000, 100)
	if err != nil {
		t.Fatalf("Failed to create batcher: %v", err)
	}

	frame := make([]byte, 320)
	for i := range frame {
		frame[i] = byte(i)
	}

	for i := 0; i < 4; i++ {
		if out := b.Add(frame); out != nil {
			t.Fatalf("Expected nil before target, got %d bytes on frame %d", len(out), i)
		}
	}

	out := b.Add(frame)
	if out == nil {
		t.Fatal("Expected chunk after fifth frame")
	}
	if len(out) != 1600 {
		t.Errorf("Expected 1600 byte chunk, got %d", len(out))
	}
	if !bytes.Equal(out[:320], frame) {
		t.Error("Expected chunk to start with first frame's bytes")
	}

	if b.BufferedMs() != 0 {
		t.Errorf("Expected empty buffer after flush, got %dms", b.BufferedMs())
	}
}

func TestFrameBatcherFlush(t *testing.T) {
	b, _ := NewFrameBatcher(8000, 100)

	if out := b.Flush(); out != nil {
		t.Errorf("Expected nil flush on empty batcher, got %d bytes", len(out))
	}

	b.Add(make([]byte, 320))
	out := b.Flush()
	if len(out) != 320 {
		t.Errorf("Expected 320 byte partial flush, got %d", len(out))
	}
	if b.BufferedMs() != 0 {
		t.Error("Expected empty buffer after flush")
	}
}

func TestFrameBatcherIgnoresEmptyFrames(t *testing.T) {
	b, _ := NewFrameBatcher(8000, 100)
	if out := b.Add(nil); out != nil {
		t.Error("Expected nil for empty frame")
	}
	if b.BufferedMs() != 0 {
		t.Error("Expected nothing buffered")
	}
}

func TestFrameBatcherBufferedMs(t *testing.T) {
	b, _ := NewFrameBatcher(8000, 100)
	b.Add(make([]byte, 320)) // 20ms at 8kHz
	if got := b.BufferedMs(); got != 20 {
		t.Errorf("Expected 20ms buffered, got %d", got)
	}
}
