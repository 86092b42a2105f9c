package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/TemdigitalAi/voice-dialog-service/internal/provider"
)

// Client generates reply text through an OpenAI-compatible chat completions
// endpoint. Requests are rate limited by a semaphore and retried with
// exponential backoff on transient failures.
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{}

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains language model client configuration
type Config struct {
	Endpoint      string
	APIKey        string
	Model         string
	Temperature   float32
	MaxTokens     int
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// chatRequest is the chat completions request body
type chatRequest struct {
	Model       string                    `json:"model"`
	Messages    []provider.HistoryMessage `json:"messages"`
	Temperature float32                   `json:"temperature,omitempty"`
	MaxTokens   int                       `json:"max_tokens,omitempty"`
}

// chatResponse is the chat completions response body
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// structuredReply is the contract the model is prompted to follow: spoken
// text plus fact updates. Models that ignore it and answer in plain text are
// handled by treating the whole content as the reply.
type structuredReply struct {
	Reply string            `json:"reply"`
	Facts map[string]string `json:"facts"`
}

// ClientStats represents client statistics for monitoring
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// NewClient creates a new language model client
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 2
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// GenerateReply implements provider.ReplyGenerator. The fact table is
// appended to the prompt as a system message so the model sees everything
// remembered so far.
func (c *Client) GenerateReply(ctx context.Context, history []provider.HistoryMessage, facts map[string]string) (provider.Reply, error) {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return provider.Reply{}, ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	messages := c.buildMessages(history, facts)

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()

			backoffTime := time.Duration(math.Pow(2, float64(attempt-1))) * 250 * time.Millisecond
			if backoffTime > 2*time.Second {
				backoffTime = 2 * time.Second
			}

			select {
			case <-time.After(backoffTime):
			case <-ctx.Done():
				c.incrementFailedRequests()
				return provider.Reply{}, ctx.Err()
			}
		}

		reply, err := c.doRequest(ctx, messages)
		if err == nil {
			c.incrementSuccessRequests()
			c.updateAvgResponseTime(time.Since(startTime))
			return reply, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	c.incrementFailedRequests()
	return provider.Reply{}, fmt.Errorf("reply generation failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// buildMessages appends the fact table to the conversation as a trailing
// system message.
func (c *Client) buildMessages(history []provider.HistoryMessage, facts map[string]string) []provider.HistoryMessage {
	messages := make([]provider.HistoryMessage, 0, len(history)+1)
	messages = append(messages, history...)

	if len(facts) > 0 {
		var sb strings.Builder
		sb.WriteString("Known facts about the caller:")
		for k, v := range facts {
			sb.WriteString("\n- ")
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(v)
		}
		messages = append(messages, provider.HistoryMessage{Role: "system", Text: sb.String()})
	}
	return messages
}

// doRequest performs a single chat completions request
func (c *Client) doRequest(ctx context.Context, messages []provider.HistoryMessage) (provider.Reply, error) {
	reqBody := chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return provider.Reply{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return provider.Reply{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return provider.Reply{}, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return provider.Reply{}, fmt.Errorf("HTTP request failed: %w: %w", err, provider.ErrTimeout)
		}
		return provider.Reply{}, fmt.Errorf("HTTP request failed: %w: %w", err, provider.ErrUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.Reply{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return provider.Reply{}, fmt.Errorf("HTTP error %d: %s: %w", resp.StatusCode, string(respBody), provider.ErrUnavailable)
		}
		return provider.Reply{}, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return provider.Reply{}, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return provider.Reply{}, fmt.Errorf("response contained no choices")
	}

	return parseContent(chatResp.Choices[0].Message.Content), nil
}

// parseContent interprets the model's content as the structured reply
// contract when possible, falling back to plain text otherwise.
func parseContent(content string) provider.Reply {
	trimmed := strings.TrimSpace(content)

	// Some models wrap JSON in a code fence.
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	if strings.HasPrefix(trimmed, "{") {
		var structured structuredReply
		if err := json.Unmarshal([]byte(trimmed), &structured); err == nil && structured.Reply != "" {
			return provider.Reply{Text: structured.Reply, Facts: structured.Facts}
		}
	}
	return provider.Reply{Text: trimmed}
}

// isRetryableError determines if an error is retryable. Timeouts and
// unavailable providers are worth another attempt; client errors are not.
func isRetryableError(err error) bool {
	return errors.Is(err, provider.ErrTimeout) ||
		errors.Is(err, provider.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}
