package transcript

import (
	"testing"
	"time"
)

func TestAppendJoinsFragments(t *testing.T) {
	b := NewBuffer()
	now := time.Now()

	b.Append("I want", now)
	b.Append("to sell", now.Add(200*time.Millisecond))

	if b.Text() != "I want to sell" {
		t.Errorf("Expected 'I want to sell', got '%s'", b.Text())
	}
}

func TestAppendIgnoresEmptyFragments(t *testing.T) {
	b := NewBuffer()
	now := time.Now()

	b.Append("", now)
	b.Append("   ", now)

	if !b.Empty() {
		t.Errorf("Expected buffer to stay empty, got '%s'", b.Text())
	}

	b.Append("hello", now)
	b.Append("  ", now)

	if b.Text() != "hello" {
		t.Errorf("Expected 'hello', got '%s'", b.Text())
	}
}

func TestTakeClearsBuffer(t *testing.T) {
	b := NewBuffer()
	start := time.Now()
	update := start.Add(time.Second)

	b.Append("buy a house", start)
	b.Append("please", update)

	utt, ok := b.Take(3)
	if !ok {
		t.Fatal("Expected Take to succeed")
	}
	if utt.Text != "buy a house please" {
		t.Errorf("Expected 'buy a house please', got '%s'", utt.Text)
	}
	if !utt.StartedAt.Equal(start) {
		t.Errorf("Expected StartedAt %v, got %v", start, utt.StartedAt)
	}
	if !utt.UpdatedAt.Equal(update) {
		t.Errorf("Expected UpdatedAt %v, got %v", update, utt.UpdatedAt)
	}

	if !b.Empty() {
		t.Error("Expected buffer to be empty after Take")
	}

	// A second take yields nothing.
	if _, ok := b.Take(1); ok {
		t.Error("Expected second Take to fail on empty buffer")
	}
}

func TestTakeDiscardsUndersized(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		minChars int
		want     bool
	}{
		{"below threshold", "ok", 3, false},
		{"at threshold", "yes", 3, true},
		{"empty buffer", "", 1, false},
		{"zero threshold still rejects empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer()
			if tt.text != "" {
				b.Append(tt.text, time.Now())
			}

			_, ok := b.Take(tt.minChars)
			if ok != tt.want {
				t.Errorf("Take(%d) with %q: expected ok=%v, got %v", tt.minChars, tt.text, tt.want, ok)
			}

			// Undersized utterances are discarded, not retained.
			if !b.Empty() {
				t.Error("Expected buffer to be cleared by Take")
			}
		})
	}
}
