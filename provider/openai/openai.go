// Package openai implements the provider boundary against the OpenAI chat
// completions API.
package openai

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

const defaultBaseURL = "https://api.openai.com/v1"

func init() {
	provider.RegisterType("openai", func(cfg config.LLMProvider) (provider.Provider, error) {
		return NewClient(cfg)
	})
}

// Client calls the OpenAI chat completions API.
type Client struct {
	apiKey   string
	baseURL  string
	registry *provider.Registry
	http     *http.Client
}

// NewClient builds a client from provider configuration. The API key falls
// back to OPENAI_API_KEY.
func NewClient(cfg config.LLMProvider) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
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

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []chatMsg `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
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
	temperature := req.Temperature
	if temperature == 0 {
		temperature = info.Temperature
	}

	messages := make([]chatMsg, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMsg{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMsg{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       info.APIName,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return provider.Result{}, fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return provider.Result{}, fmt.Errorf("request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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
		case resp.StatusCode >= 500:
			return provider.Result{}, &provider.ServiceError{Status: resp.StatusCode, Body: string(snippet)}
		default:
			return provider.Result{}, &provider.FatalError{Status: resp.StatusCode, Body: string(snippet)}
		}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return provider.Result{}, fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return provider.Result{}, &provider.ServiceError{Status: resp.StatusCode, Body: "no choices"}
	}

	return provider.Result{
		Text:         out.Choices[0].Message.Content,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
		Model:        req.Model,
	}, nil
}

// ModelInfo returns the configured model description.
func (c *Client) ModelInfo(model string) (provider.ModelInfo, error) {
	return c.registry.ModelInfo(model)
}

// Models lists configured model keys.
func (c *Client) Models() []string { return c.registry.Models() }
