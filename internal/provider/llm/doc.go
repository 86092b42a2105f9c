// Package llm implements reply generation against an OpenAI-compatible
// chat completions API.
package llm
