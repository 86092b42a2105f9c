// Package stt streams call audio to a websocket transcription provider and
// surfaces its transcript events.
package stt
