package port

import "context"

// ImageAttachment carries one base64-encoded image for a multimodal prompt.
type ImageAttachment struct {
	Base64    string
	MediaType string
}

// CompletionInput carries one fully built prompt for a completion call.
type CompletionInput struct {
	System    string
	User      string
	Images    []ImageAttachment
	MaxTokens int
}

// Usage reports token consumption for a single completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionOutput contains the raw structured text and usage from a provider.
type CompletionOutput struct {
	Text      string
	ModelUsed string
	Usage     Usage
}

// LLMClient abstracts a completion provider. Implementations distinguish
// transient failures (timeouts, rate limits) from permanent ones
// (auth/config) via the llm error types.
type LLMClient interface {
	Complete(ctx context.Context, input CompletionInput) (*CompletionOutput, error)
}
