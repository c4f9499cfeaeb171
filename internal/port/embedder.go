package port

import "context"

// Embedder abstracts a text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
