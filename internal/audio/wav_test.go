package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}

	data, err := EncodeWAV(samples, 8000)
	if err != nil {
		t.Fatalf("Failed to encode WAV: %v", err)
	}

	expectedSize := 44 + len(samples)*2
	if len(data) != expectedSize {
		t.Errorf("Expected %d bytes, got %d", expectedSize, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		t.Error("Expected RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		t.Error("Expected WAVE format")
	}

	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	if sampleRate != 8000 {
		t.Errorf("Expected sample rate 8000, got %d", sampleRate)
	}

	channels := binary.LittleEndian.Uint16(data[22:24])
	if channels != 1 {
		t.Errorf("Expected 1 channel, got %d", channels)
	}
}

func TestEncodeWAVErrors(t *testing.T) {
	if _, err := EncodeWAV(nil, 8000); err == nil {
		t.Error("Expected error for empty samples")
	}
	if _, err := EncodeWAV([]int16{1}, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	original := []int16{100, -200, 300, -400, 500}

	data, err := EncodeWAV(original, 16000)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	if len(decoded) != len(original) {
		t.Fatalf("Expected %d samples, got %d", len(original), len(decoded))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, original[i], decoded[i])
		}
	}
}

func TestDecodeWAVErrors(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("short")); err == nil {
		t.Error("Expected error for truncated data")
	}

	data, _ := EncodeWAV([]int16{1, 2, 3}, 8000)
	data[0] = 'X'
	if _, _, err := DecodeWAV(data); err == nil {
		t.Error("Expected error for corrupted RIFF header")
	}
}

func TestGenerateTone(t *testing.T) {
	samples := GenerateTone(440, 100, 8000, 0.5)

	if len(samples) != 800 {
		t.Errorf("Expected 800 samples for 100ms at 8kHz, got %d", len(samples))
	}

	// First sample of a sine is zero.
	if samples[0] != 0 {
		t.Errorf("Expected first sample 0, got %d", samples[0])
	}

	nonZero := false
	for _, s := range samples {
		if s != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("Expected non-silent tone")
	}
}

func TestGenerateSilence(t *testing.T) {
	samples := GenerateSilence(50, 16000)
	if len(samples) != 800 {
		t.Errorf("Expected 800 samples for 50ms at 16kHz, got %d", len(samples))
	}
	for i, s := range samples {
		if s != 0 {
			t.Fatalf("Expected silence, sample %d is %d", i, s)
		}
	}
}

func TestFallbackClip(t *testing.T) {
	clip, err := FallbackClip(8000)
	if err != nil {
		t.Fatalf("Failed to build fallback clip: %v", err)
	}

	samples, rate, err := DecodeWAV(clip)
	if err != nil {
		t.Fatalf("Fallback clip is not valid WAV: %v", err)
	}
	if rate != 8000 {
		t.Errorf("Expected sample rate 8000, got %d", rate)
	}

	// Two 200ms tones plus 150ms pause.
	expected := 8000 * 550 / 1000
	if len(samples) != expected {
		t.Errorf("Expected %d samples, got %d", expected, len(samples))
	}
}
