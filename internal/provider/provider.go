package provider

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors let callers distinguish provider failure classes without
// inspecting vendor-specific payloads.
var (
	// ErrTimeout indicates the provider did not answer within the configured deadline.
	ErrTimeout = errors.New("provider: request timed out")

	// ErrUnavailable indicates the provider rejected or could not serve the request.
	ErrUnavailable = errors.New("provider: unavailable")

	// ErrMalformedEvent indicates a provider event that could not be parsed.
	// Such events are logged and dropped; they never terminate a session.
	ErrMalformedEvent = errors.New("provider: malformed event")
)

// SpeechEvent is one recognition result from the speech-to-text collaborator.
type SpeechEvent struct {
	// Text is the recognized fragment, empty for pure boundary events.
	Text string

	// IsFinal reports whether the fragment is a final (stable) result rather
	// than an interim hypothesis.
	IsFinal bool

	// EndOfSpeech reports the provider's explicit utterance boundary signal,
	// when the provider supports endpointing.
	EndOfSpeech bool

	// Received is when the event arrived at this service.
	Received time.Time
}

// SpeechStream is one live recognition stream for a single session. Frames go
// in, recognition events come out. Close tears the stream down; closing twice
// is safe.
type SpeechStream interface {
	// SendAudio forwards a batch of raw audio to the recognizer. Writes are
	// bounded by the stream's configured write timeout.
	SendAudio(chunk []byte) error

	// Events returns the stream of recognition results. The channel is closed
	// when the stream ends, after which Err reports any terminal failure.
	Events() <-chan SpeechEvent

	// Err returns the terminal stream error, if any, once Events is closed.
	Err() error

	Close() error
}

// SpeechStreamer opens recognition streams, one per session.
type SpeechStreamer interface {
	Start(ctx context.Context, sessionID string, sampleRate int) (SpeechStream, error)
}

// HistoryMessage is one prior turn handed to the reply generator.
type HistoryMessage struct {
	Role string `json:"role"`
	Text string `json:"content"`
}

// Reply is the generated response for one turn. Facts carries structured fact
// updates when the language model honored the structured response contract;
// callers fall back to scanning Text for inline annotations when it is nil.
type Reply struct {
	Text  string
	Facts map[string]string
}

// ReplyGenerator produces one reply from the bounded conversation history plus
// the current fact table. Implementations must honor ctx deadlines and return
// an error wrapping ErrTimeout or ErrUnavailable on failure.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, history []HistoryMessage, facts map[string]string) (Reply, error)
}

// Synthesizer turns reply text into playable audio. A composite implementation
// may chain a primary and a fallback backend behind this interface.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
