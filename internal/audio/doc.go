// Package audio provides PCM-16 helpers shared by the media path: WAV
// encoding for playback, frame batching for the transcription stream, and
// generated fallback clips for when synthesis is unavailable.
package audio
