// Package callcontrol talks to the telephony gateway that owns the live
// call leg: playing audio into the call, stopping playback mid-clip, and
// resuming inbound media streaming after playback.
package callcontrol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is an HTTP client for the call-control gateway.
type Client struct {
	config     Config
	httpClient *http.Client
}

// Config contains call-control client configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// controlRequest is the body for stop/resume commands.
type controlRequest struct {
	SessionID string `json:"session_id"`
}

// NewClient creates a call-control client
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
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

// PlayAudio uploads an audio clip for playback into the call. The gateway
// confirms before returning; playback itself runs asynchronously on the
// gateway side.
func (c *Client) PlayAudio(ctx context.Context, sessionID string, audio []byte) error {
	if len(audio) == 0 {
		return fmt.Errorf("cannot play empty audio")
	}

	url := fmt.Sprintf("%s/sessions/%s/play", c.config.BaseURL, sessionID)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(audio))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "audio/wav")
	c.setAuth(httpReq)

	return c.do(httpReq, "play")
}

// StopAudio tells the gateway to cut current playback. Used when the caller
// barges in over a reply.
func (c *Client) StopAudio(ctx context.Context, sessionID string) error {
	return c.command(ctx, sessionID, "stop")
}

// ResumeStreaming tells the gateway to resume forwarding inbound caller
// media after playback finished.
func (c *Client) ResumeStreaming(ctx context.Context, sessionID string) error {
	return c.command(ctx, sessionID, "resume")
}

func (c *Client) command(ctx context.Context, sessionID, action string) error {
	payload, err := json.Marshal(controlRequest{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/sessions/%s/%s", c.config.BaseURL, sessionID, action)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuth(httpReq)

	return c.do(httpReq, action)
}

func (c *Client) setAuth(req *http.Request) {
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
}

func (c *Client) do(req *http.Request, action string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned HTTP %d: %s", action, resp.StatusCode, string(body))
	}
	return nil
}
