package protocol

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestParseEnvelopeStart(t *testing.T) {
	data := []byte(`{"event":"start","start":{"call_id":"CA123","sample_rate":8000,"frame_ms":20}}`)

	env, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("Failed to parse start envelope: %v", err)
	}

	if env.Event != EventStart {
		t.Errorf("Expected event %q, got %q", EventStart, env.Event)
	}
	if env.Start == nil {
		t.Fatal("Expected start payload to be set")
	}
	if env.Start.CallID != "CA123" {
		t.Errorf("Expected call_id 'CA123', got '%s'", env.Start.CallID)
	}
	if env.Start.SampleRate != 8000 {
		t.Errorf("Expected sample_rate 8000, got %d", env.Start.SampleRate)
	}
	if env.Start.FrameMs != 20 {
		t.Errorf("Expected frame_ms 20, got %d", env.Start.FrameMs)
	}
}

func TestParseEnvelopeFrame(t *testing.T) {
	audio := []byte{0x01, 0x02, 0x03, 0x04}
	data := []byte(`{"event":"frame","frame":{"seq":42,"payload":"` +
		base64.StdEncoding.EncodeToString(audio) + `"}}`)

	env, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("Failed to parse frame envelope: %v", err)
	}

	if env.Frame == nil {
		t.Fatal("Expected frame payload to be set")
	}
	if env.Frame.Sequence != 42 {
		t.Errorf("Expected sequence 42, got %d", env.Frame.Sequence)
	}
	if string(env.Frame.Audio) != string(audio) {
		t.Errorf("Expected audio %v, got %v", audio, env.Frame.Audio)
	}
}

func TestParseEnvelopeStop(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"event":"stop","stop":{"reason":"caller_hangup"}}`))
	if err != nil {
		t.Fatalf("Failed to parse stop envelope: %v", err)
	}
	if env.Stop.Reason != "caller_hangup" {
		t.Errorf("Expected reason 'caller_hangup', got '%s'", env.Stop.Reason)
	}

	// Bare stop without payload is valid.
	env, err = ParseEnvelope([]byte(`{"event":"stop"}`))
	if err != nil {
		t.Fatalf("Failed to parse bare stop envelope: %v", err)
	}
	if env.Stop == nil {
		t.Error("Expected stop payload to be defaulted")
	}
}

func TestParseEnvelopeErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"invalid JSON", `{not json`, "invalid envelope JSON"},
		{"missing event", `{"start":{"call_id":"x"}}`, "missing event type"},
		{"unknown event", `{"event":"media"}`, "unknown event type"},
		{"start without payload", `{"event":"start"}`, "missing start payload"},
		{"start empty call id", `{"event":"start","start":{"call_id":"  ","sample_rate":8000,"frame_ms":20}}`, "call_id"},
		{"start bad sample rate", `{"event":"start","start":{"call_id":"CA1","sample_rate":44100,"frame_ms":20}}`, "sample_rate"},
		{"start bad frame ms", `{"event":"start","start":{"call_id":"CA1","sample_rate":8000,"frame_ms":500}}`, "frame_ms"},
		{"frame without payload", `{"event":"frame"}`, "missing frame payload"},
		{"frame bad base64", `{"event":"frame","frame":{"seq":1,"payload":"!!!"}}`, "base64"},
		{"frame empty audio", `{"event":"frame","frame":{"seq":1,"payload":""}}`, "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope([]byte(tt.data))
			if err == nil {
				t.Fatalf("Expected error for %s, got nil", tt.name)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	startData, err := EncodeStart("CA555", SampleRate8k, 20)
	if err != nil {
		t.Fatalf("Failed to encode start: %v", err)
	}
	env, err := ParseEnvelope(startData)
	if err != nil {
		t.Fatalf("Failed to parse encoded start: %v", err)
	}
	if env.Start.CallID != "CA555" {
		t.Errorf("Expected call_id 'CA555', got '%s'", env.Start.CallID)
	}

	audio := []byte{0xAA, 0xBB}
	frameData, err := EncodeFrame(7, audio)
	if err != nil {
		t.Fatalf("Failed to encode frame: %v", err)
	}
	env, err = ParseEnvelope(frameData)
	if err != nil {
		t.Fatalf("Failed to parse encoded frame: %v", err)
	}
	if env.Frame.Sequence != 7 || string(env.Frame.Audio) != string(audio) {
		t.Errorf("Frame round trip mismatch: seq=%d audio=%v", env.Frame.Sequence, env.Frame.Audio)
	}

	stopData, err := EncodeStop("media_timeout")
	if err != nil {
		t.Fatalf("Failed to encode stop: %v", err)
	}
	env, err = ParseEnvelope(stopData)
	if err != nil {
		t.Fatalf("Failed to parse encoded stop: %v", err)
	}
	if env.Stop.Reason != "media_timeout" {
		t.Errorf("Expected reason 'media_timeout', got '%s'", env.Stop.Reason)
	}
}
