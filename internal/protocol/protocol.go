package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope event types carried over the media WebSocket.
const (
	EventStart = "start"
	EventFrame = "frame"
	EventStop  = "stop"
)

// Supported telephony sample rates.
const (
	SampleRate8k  = 8000
	SampleRate16k = 16000
)

// Frame duration bounds in milliseconds. Telephony gateways send small fixed
// frames; anything outside this range is a misconfigured source.
const (
	MinFrameMs = 10
	MaxFrameMs = 100
)

// Envelope is one message on the media stream. Exactly one of Start, Frame or
// Stop is set, matching Event.
type Envelope struct {
	Event string        `json:"event"`
	Start *StartPayload `json:"start,omitempty"`
	Frame *FramePayload `json:"frame,omitempty"`
	Stop  *StopPayload  `json:"stop,omitempty"`
}

// StartPayload opens a media stream for one call.
type StartPayload struct {
	CallID     string `json:"call_id"`
	CallerID   string `json:"caller_id,omitempty"`
	CalledID   string `json:"called_id,omitempty"`
	SampleRate int    `json:"sample_rate"`
	FrameMs    int    `json:"frame_ms"`
}

// FramePayload carries one audio frame. Payload is base64 on the wire and is
// decoded into Audio during parsing.
type FramePayload struct {
	Sequence uint32 `json:"seq"`
	Payload  string `json:"payload"`
	Audio    []byte `json:"-"`
}

// StopPayload ends a media stream.
type StopPayload struct {
	Reason string `json:"reason,omitempty"`
}

// ParseEnvelope parses and validates one media-stream message. The returned
// error names the invalid field; callers log and drop malformed messages
// rather than closing the stream.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope JSON: %w", err)
	}

	switch env.Event {
	case EventStart:
		if env.Start == nil {
			return nil, fmt.Errorf("start event missing start payload")
		}
		if err := env.Start.Validate(); err != nil {
			return nil, fmt.Errorf("start payload: %w", err)
		}

	case EventFrame:
		if env.Frame == nil {
			return nil, fmt.Errorf("frame event missing frame payload")
		}
		audio, err := base64.StdEncoding.DecodeString(env.Frame.Payload)
		if err != nil {
			return nil, fmt.Errorf("frame payload is not valid base64: %w", err)
		}
		if len(audio) == 0 {
			return nil, fmt.Errorf("frame payload is empty")
		}
		env.Frame.Audio = audio

	case EventStop:
		// Reason is optional; a bare stop is valid.
		if env.Stop == nil {
			env.Stop = &StopPayload{}
		}

	case "":
		return nil, fmt.Errorf("envelope missing event type")

	default:
		return nil, fmt.Errorf("unknown event type %q", env.Event)
	}

	return &env, nil
}

// Validate checks the start payload fields.
func (p *StartPayload) Validate() error {
	if strings.TrimSpace(p.CallID) == "" {
		return fmt.Errorf("call_id cannot be empty")
	}

	if p.SampleRate != SampleRate8k && p.SampleRate != SampleRate16k {
		return fmt.Errorf("sample_rate must be %d or %d, got %d", SampleRate8k, SampleRate16k, p.SampleRate)
	}

	if p.FrameMs < MinFrameMs || p.FrameMs > MaxFrameMs {
		return fmt.Errorf("frame_ms must be between %d and %d, got %d", MinFrameMs, MaxFrameMs, p.FrameMs)
	}

	return nil
}

// EncodeStart builds the wire form of a start envelope.
func EncodeStart(callID string, sampleRate, frameMs int) ([]byte, error) {
	return json.Marshal(Envelope{
		Event: EventStart,
		Start: &StartPayload{
			CallID:     callID,
			SampleRate: sampleRate,
			FrameMs:    frameMs,
		},
	})
}

// EncodeFrame builds the wire form of a frame envelope.
func EncodeFrame(seq uint32, audio []byte) ([]byte, error) {
	return json.Marshal(Envelope{
		Event: EventFrame,
		Frame: &FramePayload{
			Sequence: seq,
			Payload:  base64.StdEncoding.EncodeToString(audio),
		},
	})
}

// EncodeStop builds the wire form of a stop envelope.
func EncodeStop(reason string) ([]byte, error) {
	return json.Marshal(Envelope{
		Event: EventStop,
		Stop:  &StopPayload{Reason: reason},
	})
}
