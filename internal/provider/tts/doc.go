// Package tts implements speech synthesis against an OpenAI-compatible
// audio API, with an ordered fallback chain across providers.
package tts
