package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Media       MediaConfig       `yaml:"media"`
	Boundary    BoundaryConfig    `yaml:"boundary"`
	Turn        TurnConfig        `yaml:"turn"`
	Memory      MemoryConfig      `yaml:"memory"`
	Dialog      DialogConfig      `yaml:"dialog"`
	STT         STTConfig         `yaml:"stt"`
	LLM         LLMConfig         `yaml:"llm"`
	TTS         TTSConfig         `yaml:"tts"`
	CallControl CallControlConfig `yaml:"call_control"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// MediaConfig contains media ingress parameters
type MediaConfig struct {
	SampleRate     int `yaml:"sample_rate"`
	FrameBatchMs   int `yaml:"frame_batch_ms"`
	EventQueueSize int `yaml:"event_queue_size"`
	IdleTimeout    int `yaml:"idle_timeout"` // seconds
}

// BoundaryConfig contains utterance boundary detection parameters
type BoundaryConfig struct {
	SafetyTimeoutMs   int `yaml:"safety_timeout_ms"`
	MinUtteranceChars int `yaml:"min_utterance_chars"`
}

// TurnConfig contains turn processing parameters
type TurnConfig struct {
	ReplyTimeout  int    `yaml:"reply_timeout"` // seconds
	FallbackReply string `yaml:"fallback_reply"`
}

// MemoryConfig contains conversational memory parameters
type MemoryConfig struct {
	SystemPrompt string `yaml:"system_prompt"`
	MaxExchanges int    `yaml:"max_exchanges"`
}

// DialogConfig contains system-initiated dialog lines
type DialogConfig struct {
	Greeting        string `yaml:"greeting"`
	CheckinText     string `yaml:"checkin_text"`
	CheckinInterval int    `yaml:"checkin_interval"` // seconds, 0 disables
	MaxCheckins     int    `yaml:"max_checkins"`     // unanswered check-ins before hangup, 0 = unlimited
}

// STTConfig contains transcription provider configuration
type STTConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Language    string `yaml:"language"`
	EventBuffer int    `yaml:"event_buffer"`
}

// LLMConfig contains language model provider configuration
type LLMConfig struct {
	Endpoint      string  `yaml:"endpoint"`
	APIKey        string  `yaml:"api_key"`
	Model         string  `yaml:"model"`
	Temperature   float32 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	Timeout       int     `yaml:"timeout"` // seconds
	MaxRetries    int     `yaml:"max_retries"`
	MaxConcurrent int     `yaml:"max_concurrent"`
}

// TTSVoiceConfig describes one synthesis provider
type TTSVoiceConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
}

// TTSConfig contains speech synthesis configuration. The secondary provider
// is optional; when set it is tried after the primary fails.
type TTSConfig struct {
	Primary          TTSVoiceConfig  `yaml:"primary"`
	Secondary        *TTSVoiceConfig `yaml:"secondary"`
	ResponseFormat   string          `yaml:"response_format"`
	Timeout          int             `yaml:"timeout"`           // seconds, per request
	SynthesisTimeout int             `yaml:"synthesis_timeout"` // seconds, whole chain
}

// CallControlConfig contains telephony gateway configuration
type CallControlConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Timeout int    `yaml:"timeout"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. ${VAR} references are
// expanded from the environment before parsing, so API keys can stay out of
// the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Media.Validate(); err != nil {
		return fmt.Errorf("media config: %w", err)
	}
	if err := c.Boundary.Validate(); err != nil {
		return fmt.Errorf("boundary config: %w", err)
	}
	if err := c.Turn.Validate(); err != nil {
		return fmt.Errorf("turn config: %w", err)
	}
	if err := c.Memory.Validate(); err != nil {
		return fmt.Errorf("memory config: %w", err)
	}
	if err := c.Dialog.Validate(); err != nil {
		return fmt.Errorf("dialog config: %w", err)
	}
	if err := c.STT.Validate(); err != nil {
		return fmt.Errorf("stt config: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm config: %w", err)
	}
	if err := c.TTS.Validate(); err != nil {
		return fmt.Errorf("tts config: %w", err)
	}
	if err := c.CallControl.Validate(); err != nil {
		return fmt.Errorf("call_control config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	return nil
}

// Validate validates media configuration
func (m *MediaConfig) Validate() error {
	if m.SampleRate != 8000 && m.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 8000 or 16000 Hz, got %d", m.SampleRate)
	}
	if m.FrameBatchMs < 20 || m.FrameBatchMs > 1000 {
		return fmt.Errorf("frame_batch_ms must be between 20 and 1000, got %d", m.FrameBatchMs)
	}
	if m.EventQueueSize < 16 {
		return fmt.Errorf("event_queue_size must be at least 16, got %d", m.EventQueueSize)
	}
	if m.IdleTimeout < 1 {
		return fmt.Errorf("idle_timeout must be at least 1 second, got %d", m.IdleTimeout)
	}
	return nil
}

// Validate validates boundary configuration
func (b *BoundaryConfig) Validate() error {
	if b.SafetyTimeoutMs < 100 {
		return fmt.Errorf("safety_timeout_ms must be at least 100, got %d", b.SafetyTimeoutMs)
	}
	if b.MinUtteranceChars < 1 {
		return fmt.Errorf("min_utterance_chars must be at least 1, got %d", b.MinUtteranceChars)
	}
	return nil
}

// Validate validates turn configuration
func (t *TurnConfig) Validate() error {
	if t.ReplyTimeout < 1 {
		return fmt.Errorf("reply_timeout must be at least 1 second, got %d", t.ReplyTimeout)
	}
	if t.FallbackReply == "" {
		return fmt.Errorf("fallback_reply cannot be empty")
	}
	return nil
}

// Validate validates memory configuration
func (m *MemoryConfig) Validate() error {
	if m.MaxExchanges < 1 {
		return fmt.Errorf("max_exchanges must be at least 1, got %d", m.MaxExchanges)
	}
	return nil
}

// Validate validates dialog configuration
func (d *DialogConfig) Validate() error {
	if d.CheckinInterval < 0 {
		return fmt.Errorf("checkin_interval cannot be negative, got %d", d.CheckinInterval)
	}
	if d.CheckinInterval > 0 && d.CheckinText == "" {
		return fmt.Errorf("checkin_text cannot be empty when checkin_interval is set")
	}
	if d.MaxCheckins < 0 {
		return fmt.Errorf("max_checkins cannot be negative, got %d", d.MaxCheckins)
	}
	return nil
}

// Validate validates transcription configuration
func (s *STTConfig) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}
	return nil
}

// Validate validates language model configuration
func (l *LLMConfig) Validate() error {
	if l.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if l.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", l.Temperature)
	}
	if l.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", l.Timeout)
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", l.MaxRetries)
	}
	if l.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", l.MaxConcurrent)
	}
	return nil
}

// Validate validates synthesis configuration
func (t *TTSConfig) Validate() error {
	if err := t.Primary.Validate(); err != nil {
		return fmt.Errorf("primary: %w", err)
	}
	if t.Secondary != nil {
		if err := t.Secondary.Validate(); err != nil {
			return fmt.Errorf("secondary: %w", err)
		}
	}
	if t.ResponseFormat != "" && t.ResponseFormat != "wav" {
		return fmt.Errorf("response_format must be 'wav', got '%s'", t.ResponseFormat)
	}
	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}
	if t.SynthesisTimeout < t.Timeout {
		return fmt.Errorf("synthesis_timeout (%d) must cover at least one request timeout (%d)",
			t.SynthesisTimeout, t.Timeout)
	}
	return nil
}

// Validate validates one synthesis provider
func (v *TTSVoiceConfig) Validate() error {
	if v.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if v.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if v.Voice == "" {
		return fmt.Errorf("voice cannot be empty")
	}
	return nil
}

// Validate validates call-control configuration
func (c *CallControlConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", c.Timeout)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetIdleTimeoutDuration returns the session idle timeout as a time.Duration
func (m *MediaConfig) GetIdleTimeoutDuration() time.Duration {
	return time.Duration(m.IdleTimeout) * time.Second
}

// GetSafetyTimeoutDuration returns the safety timeout as a time.Duration
func (b *BoundaryConfig) GetSafetyTimeoutDuration() time.Duration {
	return time.Duration(b.SafetyTimeoutMs) * time.Millisecond
}

// GetReplyTimeoutDuration returns the reply timeout as a time.Duration
func (t *TurnConfig) GetReplyTimeoutDuration() time.Duration {
	return time.Duration(t.ReplyTimeout) * time.Second
}

// GetCheckinIntervalDuration returns the check-in interval as a time.Duration
func (d *DialogConfig) GetCheckinIntervalDuration() time.Duration {
	return time.Duration(d.CheckinInterval) * time.Second
}

// GetTimeoutDuration returns the language model timeout as a time.Duration
func (l *LLMConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(l.Timeout) * time.Second
}

// GetTimeoutDuration returns the per-request synthesis timeout as a time.Duration
func (t *TTSConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetSynthesisTimeoutDuration returns the whole-chain synthesis timeout
func (t *TTSConfig) GetSynthesisTimeoutDuration() time.Duration {
	return time.Duration(t.SynthesisTimeout) * time.Second
}

// GetTimeoutDuration returns the call-control timeout as a time.Duration
func (c *CallControlConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
