package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/TemdigitalAi/voice-dialog-service/internal/provider"
)

// Client synthesizes speech through an OpenAI-compatible /audio/speech
// endpoint and returns the audio bytes as served.
type Client struct {
	config     Config
	httpClient *http.Client
}

// Config contains speech synthesis client configuration
type Config struct {
	Endpoint       string
	APIKey         string
	Model          string
	Voice          string
	ResponseFormat string // e.g. "wav"
	Timeout        time.Duration
}

// speechRequest is the synthesis request body
type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// NewClient creates a new synthesis client
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if config.Voice == "" {
		return nil, fmt.Errorf("voice cannot be empty")
	}
	if config.ResponseFormat == "" {
		config.ResponseFormat = "wav"
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Synthesize implements provider.Synthesizer.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot synthesize empty text")
	}

	payload, err := json.Marshal(speechRequest{
		Model:          c.config.Model,
		Input:          text,
		Voice:          c.config.Voice,
		ResponseFormat: c.config.ResponseFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("HTTP request failed: %w: %w", err, provider.ErrTimeout)
		}
		return nil, fmt.Errorf("HTTP request failed: %w: %w", err, provider.ErrUnavailable)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s: %w", resp.StatusCode, string(audio), provider.ErrUnavailable)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis returned no audio")
	}
	return audio, nil
}
