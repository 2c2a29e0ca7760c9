package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"FeedDigest/internal/config"
	"FeedDigest/internal/domain"
)

// Request is one chat completion call.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completion carries the first choice and the token usage reported for it.
type Completion struct {
	Content string
	Usage   Usage
}

// Usage mirrors the usage block of an OpenAI-compatible response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatClient talks to an OpenAI-compatible chat completions endpoint such as OpenRouter.
type ChatClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	usage      *UsageTracker
}

// NewChatClient builds a client from configuration. usage may be nil.
func NewChatClient(cfg config.LLMConfig, usage *UsageTracker) *ChatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &ChatClient{
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		usage:      usage,
	}
}

// Complete sends a single request. Every failure to obtain content wraps domain.ErrTransport.
func (c *ChatClient) Complete(ctx context.Context, r Request) (Completion, error) {
	if c == nil {
		return Completion{}, fmt.Errorf("chat client is nil: %w", domain.ErrTransport)
	}
	if c.apiKey == "" || c.model == "" {
		return Completion{}, fmt.Errorf("chat client misconfigured: %w", domain.ErrTransport)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Completion{}, fmt.Errorf("wait for rate limit: %w: %w", domain.ErrTransport, err)
		}
	}

	messages := make([]map[string]string, 0, 2)
	if system := strings.TrimSpace(r.System); system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": r.User})

	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": r.Temperature,
		"max_tokens":  r.MaxTokens,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("new request: %w: %w", domain.ErrTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("send completion: %w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Completion{}, fmt.Errorf("completion error %s: %s: %w",
			resp.Status, strings.TrimSpace(string(payload)), domain.ErrTransport)
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage Usage `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Completion{}, fmt.Errorf("decode completion: %w: %w", domain.ErrTransport, err)
	}
	if len(decoded.Choices) == 0 {
		return Completion{}, fmt.Errorf("completion has no choices: %w", domain.ErrTransport)
	}

	c.usage.Record(decoded.Usage)

	return Completion{
		Content: decoded.Choices[0].Message.Content,
		Usage:   decoded.Usage,
	}, nil
}
