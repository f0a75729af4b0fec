package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client implements Generator against an OpenAI-compatible chat
// completions endpoint. Local servers (llama.cpp server, Ollama,
// LM Studio) all speak this dialect.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientConfig configures the HTTP client.
type ClientConfig struct {
	BaseURL string
	Model   string
	APIKey  string // optional; local servers usually ignore it
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a client for an OpenAI-compatible server.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: cfg.Logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the prompt as a single user message and returns the
// completion text. A 429 is retried with backoff; responses that
// indicate host memory pressure map to ErrResourceExhausted.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	// Apply the client timeout when the caller did not set a deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	start := time.Now()
	c.logger.Debug("backend generate",
		zap.String("model", c.model),
		zap.Int("max_tokens", maxTokens),
		zap.Int("prompt_len", len(prompt)))

	reqBody := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: 0.1,
	}

	const maxRetries = 3
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}

		if resp.StatusCode == http.StatusInsufficientStorage ||
			(resp.StatusCode == http.StatusServiceUnavailable && looksLikeMemoryFailure(body)) {
			return "", fmt.Errorf("%w: server returned %d: %s",
				ErrResourceExhausted, resp.StatusCode, strings.TrimSpace(string(body)))
		}

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if parsed.Error != nil {
			if looksLikeMemoryFailure([]byte(parsed.Error.Message)) {
				return "", fmt.Errorf("%w: %s", ErrResourceExhausted, parsed.Error.Message)
			}
			return "", fmt.Errorf("API error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("no completion returned")
		}

		out := strings.TrimSpace(parsed.Choices[0].Message.Content)
		c.logger.Debug("backend generate completed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("response_len", len(out)))
		return out, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// looksLikeMemoryFailure matches the error texts local servers emit
// when they run out of RAM or VRAM mid-generation.
func looksLikeMemoryFailure(body []byte) bool {
	s := strings.ToLower(string(body))
	return strings.Contains(s, "out of memory") ||
		strings.Contains(s, "insufficient memory") ||
		strings.Contains(s, "oom")
}
