package openai

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

const embeddingsURL = "https://api.openai.com/v1/embeddings"

// Embedder implements port.Embedder using the OpenAI embeddings API.
type Embedder struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewEmbedder creates an OpenAI-backed embedder from an embedding config.
func NewEmbedder(cfg *config.EmbeddingConfig) *Embedder {
	return newEmbedder(cfg, embeddingsURL)
}

// NewEmbedderWithEndpoint creates an embedder pointing at a custom API endpoint (for testing).
func NewEmbedderWithEndpoint(cfg *config.EmbeddingConfig, endpoint string) *Embedder {
	return newEmbedder(cfg, endpoint)
}

func newEmbedder(cfg *config.EmbeddingConfig, endpoint string) *Embedder {
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Embedder{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	reqBody := map[string]interface{}{
		"model": e.model,
		"input": text,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, llm.NewTransientError("openai-embed", fmt.Errorf("calling embeddings API: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.NewTransientError("openai-embed", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("embeddings API error (status %d): %s", resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := llm.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, llm.NewRateLimitError("openai-embed", baseErr, retryAfter)
		}
		if resp.StatusCode >= 500 {
			return nil, llm.NewTransientError("openai-embed", baseErr)
		}
		return nil, llm.NewPermanentError("openai-embed", baseErr)
	}

	var parsed struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("empty embeddings response")
	}

	return parsed.Data[0].Embedding, nil
}

var _ port.Embedder = (*Embedder)(nil)
