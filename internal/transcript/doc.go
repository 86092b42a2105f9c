// Package transcript accumulates recognized-speech fragments into the current
// caller utterance.
package transcript
