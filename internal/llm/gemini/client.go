package gemini

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
	apiURLTemplate = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

	defaultMaxTokens = 8192
)

// Client implements port.LLMClient using the Gemini generateContent API.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewClient creates a Gemini-based completion client from a provider config.
func NewClient(cfg *config.LLMProviderConfig) *Client {
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return newClient(cfg, model, fmt.Sprintf(apiURLTemplate, model))
}

// NewClientWithEndpoint creates a client pointing at a custom API endpoint (for testing).
func NewClientWithEndpoint(cfg *config.LLMProviderConfig, endpoint string) *Client {
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return newClient(cfg, model, endpoint)
}

func newClient(cfg *config.LLMProviderConfig, model, endpoint string) *Client {
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

	var parts []map[string]interface{}
	for _, img := range input.Images {
		parts = append(parts, map[string]interface{}{
			"inline_data": map[string]interface{}{
				"mime_type": img.MediaType,
				"data":      img.Base64,
			},
		})
	}
	parts = append(parts, map[string]interface{}{"text": input.User})

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": parts,
			},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
			"maxOutputTokens":  maxTokens,
		},
	}
	if input.System != "" {
		reqBody["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{{"text": input.System}},
		}
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
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, llm.NewTransientError("gemini", fmt.Errorf("calling gemini API: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.NewTransientError("gemini", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, string(respBody))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := llm.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, llm.NewRateLimitError("gemini", baseErr, retryAfter)
		case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
			return nil, llm.NewTransientError("gemini", baseErr)
		default:
			return nil, llm.NewPermanentError("gemini", baseErr)
		}
	}

	return parseResponse(respBody, c.model)
}

// geminiResponse models the Gemini generateContent response.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func parseResponse(body []byte, model string) (*port.CompletionOutput, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, llm.NewTransientError("gemini", fmt.Errorf("unmarshaling response: %w", err))
	}

	if len(resp.Candidates) == 0 {
		return nil, llm.NewTransientError("gemini", fmt.Errorf("empty response from API: no candidates"))
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, llm.NewTransientError("gemini", fmt.Errorf("empty response from API: no parts"))
	}
	if resp.Candidates[0].FinishReason == "MAX_TOKENS" {
		return nil, llm.NewTransientError("gemini",
			fmt.Errorf("output truncated (finishReason: MAX_TOKENS): response exceeded output token limit"))
	}

	return &port.CompletionOutput{
		Text:      resp.Candidates[0].Content.Parts[0].Text,
		ModelUsed: model,
		Usage: port.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}
