package transcript

import (
	"strings"
	"time"
)

// Utterance is the caller's accumulated final text since the last processed
// turn, captured atomically when the buffer is taken.
type Utterance struct {
	Text      string
	StartedAt time.Time
	UpdatedAt time.Time
}

// Buffer accumulates final transcript fragments for one session. It is owned
// by the session's event goroutine; all access is single-threaded by
// construction, so the type carries no lock.
type Buffer struct {
	text      strings.Builder
	startedAt time.Time
	updatedAt time.Time
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds one final fragment. Fragments are joined with a single space;
// empty fragments are ignored.
func (b *Buffer) Append(text string, now time.Time) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	if b.text.Len() == 0 {
		b.startedAt = now
	} else {
		b.text.WriteByte(' ')
	}
	b.text.WriteString(trimmed)
	b.updatedAt = now
}

// Len returns the accumulated text length in bytes.
func (b *Buffer) Len() int {
	return b.text.Len()
}

// Empty reports whether nothing has accumulated.
func (b *Buffer) Empty() bool {
	return b.text.Len() == 0
}

// Text returns the accumulated text without consuming it.
func (b *Buffer) Text() string {
	return b.text.String()
}

// Take atomically captures and clears the accumulated utterance. It returns
// false when the buffer is empty or holds fewer than minChars characters;
// an undersized utterance is discarded, not forwarded.
func (b *Buffer) Take(minChars int) (Utterance, bool) {
	text := strings.TrimSpace(b.text.String())
	started, updated := b.startedAt, b.updatedAt
	b.Reset()

	if len(text) < minChars || text == "" {
		return Utterance{}, false
	}

	return Utterance{Text: text, StartedAt: started, UpdatedAt: updated}, true
}

// Reset discards any accumulated text.
func (b *Buffer) Reset() {
	b.text.Reset()
	b.startedAt = time.Time{}
	b.updatedAt = time.Time{}
}
