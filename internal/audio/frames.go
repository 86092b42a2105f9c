package audio

import "fmt"

// FrameBatcher coalesces small media frames into larger chunks before they
// are forwarded to the transcription stream. Telephony gateways commonly emit
// 20 ms frames; sending each one upstream individually wastes round trips, so
// frames accumulate until a target duration is buffered. The batcher is owned
// by a single session goroutine and carries no lock.
type FrameBatcher struct {
	sampleRate  int
	targetBytes int
	buf         []byte
}

// NewFrameBatcher creates a batcher that flushes once targetMs of PCM-16
// audio at the given sample rate has accumulated.
func NewFrameBatcher(sampleRate, targetMs int) (*FrameBatcher, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if targetMs <= 0 {
		return nil, fmt.Errorf("target duration must be positive, got %dms", targetMs)
	}

	target := sampleRate * 2 * targetMs / 1000
	return &FrameBatcher{
		sampleRate:  sampleRate,
		targetBytes: target,
		buf:         make([]byte, 0, target*2),
	}, nil
}

// Add appends one frame's audio. When the target duration is reached the
// accumulated chunk is returned and the buffer reset; otherwise it returns
// nil.
func (b *FrameBatcher) Add(frame []byte) []byte {
	if len(frame) == 0 {
		return nil
	}
	b.buf = append(b.buf, frame...)
	if len(b.buf) < b.targetBytes {
		return nil
	}
	return b.take()
}

// Flush returns whatever is buffered regardless of the target, or nil if the
// buffer is empty. Called on end-of-call so no trailing audio is dropped.
func (b *FrameBatcher) Flush() []byte {
	if len(b.buf) == 0 {
		return nil
	}
	return b.take()
}

// BufferedMs reports how much audio is currently held, in milliseconds.
func (b *FrameBatcher) BufferedMs() int {
	return len(b.buf) * 1000 / (b.sampleRate * 2)
}

func (b *FrameBatcher) take() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	b.buf = b.buf[:0]
	return out
}
