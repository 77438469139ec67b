// Package embeddings turns text into vectors for the search index: provider adapters,
// a fail-soft Embedder with optional caches, and a deterministic mock for tests.
package embeddings

import "context"

// Provider generates an embedding vector for a text.
// googleai.Client, openai.Client and CompatibleClient implement it.
type Provider interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ModelNamer is implemented by providers that report their resolved model.
type ModelNamer interface {
	ModelName() string
}
