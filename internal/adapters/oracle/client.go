package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Providers the client can speak to.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 1024
)

type chatCompletionResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// anthropicRequest is the Messages API body. System prompts travel outside
// the message list.
type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type Config struct {
	// Provider selects the wire format; empty means OpenAI-compatible.
	Provider string
	BaseURL  string
	APIKey  string
	Model   string
	Timeout time.Duration
	// RequestsPerSecond paces outbound calls across all runs. Zero disables
	// pacing.
	RequestsPerSecond float64
	Burst             int
}

// ChatClient talks to an OpenAI-compatible chat-completions endpoint or to
// the Anthropic Messages API.
type ChatClient struct {
	provider string
	endpoint string
	model    string
	apiKey   string
	limiter  *rate.Limiter
	http     *http.Client
}

func NewChatClient(cfg Config) (*ChatClient, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	endpointPath := "/chat/completions"
	switch provider {
	case "", ProviderOpenAI:
		provider = ProviderOpenAI
	case ProviderAnthropic:
		endpointPath = "/messages"
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
	baseURL := normalizeBaseURL(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("oracle base URL is not configured")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("oracle model is not configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &ChatClient{
		provider: provider,
		endpoint: baseURL + endpointPath,
		model:    strings.TrimSpace(cfg.Model),
		apiKey:   cfg.APIKey,
		limiter:  limiter,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}, nil
}

// Chat returns the model's answer text. Transport failures, non-2xx
// statuses and empty answers are errors; the content itself is not judged.
func (c *ChatClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("chat requires at least one message")
	}
	if req.Model == "" {
		req.Model = c.model
	}
	payload, err := c.encode(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	c.authorize(request.Header)

	resp, err := c.http.Do(request)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %s", resp.Status)
	}

	content, err := c.decode(resp.Body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("response empty")
	}
	return content, nil
}

func (c *ChatClient) encode(req ChatRequest) ([]byte, error) {
	if c.provider != ProviderAnthropic {
		return json.Marshal(req)
	}
	body := anthropicRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = anthropicMaxTokens
	}
	var system []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		body.Messages = append(body.Messages, m)
	}
	body.System = strings.Join(system, "\n\n")
	return json.Marshal(body)
}

func (c *ChatClient) authorize(h http.Header) {
	if c.provider == ProviderAnthropic {
		h.Set("anthropic-version", anthropicVersion)
		if c.apiKey != "" {
			h.Set("x-api-key", c.apiKey)
		}
		return
	}
	if c.apiKey != "" {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *ChatClient) decode(body io.Reader) (string, error) {
	if c.provider == ProviderAnthropic {
		var decoded anthropicResponse
		if err := json.NewDecoder(body).Decode(&decoded); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		var text strings.Builder
		for _, block := range decoded.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		return text.String(), nil
	}
	var decoded chatCompletionResponse
	if err := json.NewDecoder(body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("response missing choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func normalizeBaseURL(baseURL string) string {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return trimmed
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	trimmed = strings.TrimRight(trimmed, "/")
	if strings.HasSuffix(trimmed, "/v1") {
		return trimmed
	}
	return trimmed + "/v1"
}
