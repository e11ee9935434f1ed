// Package anthropic implements the provider boundary against the Anthropic
// messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/bulwise/bulwise/config"
	"github.com/bulwise/bulwise/provider"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4000
)

func init() {
	provider.RegisterType("anthropic", func(cfg config.LLMProvider) (provider.Provider, error) {
		return NewClient(cfg)
	})
}

// Client calls the Anthropic messages API.
type Client struct {
	apiKey   string
	baseURL  string
	registry *provider.Registry
	http     *http.Client
}

// NewClient builds a client from provider configuration. The API key falls
// back to ANTHROPIC_API_KEY.
func NewClient(cfg config.LLMProvider) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		apiKey:   apiKey,
		baseURL:  baseURL,
		registry: provider.NewRegistry(cfg),
		http:     &http.Client{Timeout: timeout},
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// Generate submits one prompt and returns the generated text with metered
// token counts.
func (c *Client) Generate(ctx context.Context, req provider.Request) (provider.Result, error) {
	info, err := c.registry.ModelInfo(req.Model)
	if err != nil {
		return provider.Result{}, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = info.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = info.Temperature
	}

	body, err := json.Marshal(messagesRequest{
		Model:       info.APIName,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      req.System,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return provider.Result{}, fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return provider.Result{}, fmt.Errorf("request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return provider.Result{}, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return provider.Result{}, fmt.Errorf("%w: %s", provider.ErrRateLimited, snippet)
		// Anthropic signals overload with 529 alongside the usual 5xx range.
		case resp.StatusCode >= 500:
			return provider.Result{}, &provider.ServiceError{Status: resp.StatusCode, Body: string(snippet)}
		default:
			return provider.Result{}, &provider.FatalError{Status: resp.StatusCode, Body: string(snippet)}
		}
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return provider.Result{}, fmt.Errorf("decode: %w", err)
	}
	text := ""
	for _, block := range out.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return provider.Result{}, &provider.ServiceError{Status: resp.StatusCode, Body: "empty content"}
	}

	return provider.Result{
		Text:         text,
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
		Model:        req.Model,
	}, nil
}

// ModelInfo returns the configured model description.
func (c *Client) ModelInfo(model string) (provider.ModelInfo, error) {
	return c.registry.ModelInfo(model)
}

// Models lists configured model keys.
func (c *Client) Models() []string { return c.registry.Models() }
