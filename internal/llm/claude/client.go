package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bizlens/internal/config"
	"bizlens/internal/llm"
	"bizlens/internal/port"
)

const (
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"

	defaultMaxTokens = 8192
)

// Client implements port.LLMClient using the Anthropic Messages API.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewClient creates a Claude-based completion client from a provider config.
func NewClient(cfg *config.LLMProviderConfig) *Client {
	return newClient(cfg, apiURL)
}

// NewClientWithEndpoint creates a client pointing at a custom API endpoint (for testing).
func NewClientWithEndpoint(cfg *config.LLMProviderConfig, endpoint string) *Client {
	return newClient(cfg, endpoint)
}

func newClient(cfg *config.LLMProviderConfig, endpoint string) *Client {
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) Complete(ctx context.Context, input port.CompletionInput) (*port.CompletionOutput, error) {
	maxTokens := input.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	reqBody := map[string]interface{}{
		"model":      c.model,
		"max_tokens": maxTokens,
		"system":     input.System,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": buildContentBlocks(input),
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, llm.NewTransientError("claude", fmt.Errorf("calling anthropic API: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.NewTransientError("claude", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp, respBody)
	}

	return parseResponse(respBody, c.model)
}

func buildContentBlocks(input port.CompletionInput) []map[string]interface{} {
	var blocks []map[string]interface{}

	for _, img := range input.Images {
		blocks = append(blocks, map[string]interface{}{
			"type": "image",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": img.MediaType,
				"data":       img.Base64,
			},
		})
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "text",
		"text": input.User,
	})

	return blocks
}

func classifyStatus(resp *http.Response, body []byte) error {
	baseErr := fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := llm.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
		return llm.NewRateLimitError("claude", baseErr, retryAfter)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
		return llm.NewTransientError("claude", baseErr)
	default:
		return llm.NewPermanentError("claude", baseErr)
	}
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func parseResponse(body []byte, model string) (*port.CompletionOutput, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, llm.NewTransientError("claude", fmt.Errorf("unmarshaling response: %w", err))
	}

	if len(resp.Content) == 0 {
		return nil, llm.NewTransientError("claude", fmt.Errorf("empty response from API"))
	}

	if resp.StopReason == "max_tokens" {
		return nil, llm.NewTransientError("claude",
			fmt.Errorf("output truncated (stop_reason: max_tokens): response exceeded output token limit"))
	}

	return &port.CompletionOutput{
		Text:      resp.Content[0].Text,
		ModelUsed: model,
		Usage: port.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
