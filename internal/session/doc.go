// Package session orchestrates one live call end to end: media frames in,
// transcription events through boundary detection, turns through the
// single-flight gate, and reply playback out. Each session runs a single
// event-loop goroutine; the manager owns their lifecycle.
package session
