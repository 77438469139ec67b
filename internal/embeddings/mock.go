package embeddings

import (
	"context"
	"crypto/sha256"
	"strings"
	"sync/atomic"

	"github.com/signclips/hub/pkg/embeddings"
)

// MockClient implements Provider for tests and local development without an API key.
// It generates deterministic unit-length embeddings from the text hash.
type MockClient struct {
	dimensions int
	calls      atomic.Int64
}

// NewMockClient creates a mock provider producing 768-dimensional vectors.
func NewMockClient() *MockClient {
	return &MockClient{dimensions: 768}
}

// NewMockClientWithDimensions creates a mock provider with custom dimensions
// (useful to exercise the dimension gate).
func NewMockClientWithDimensions(dimensions int) *MockClient {
	return &MockClient{dimensions: dimensions}
}

// CreateEmbedding generates a deterministic embedding based on the text hash.
func (c *MockClient) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)

	if strings.TrimSpace(text) == "" {
		return nil, errEmptyText
	}

	return c.generateDeterministicEmbedding(text), nil
}

// Calls returns how many times CreateEmbedding was invoked.
func (c *MockClient) Calls() int {
	return int(c.calls.Load())
}

func (c *MockClient) generateDeterministicEmbedding(text string) []float32 {
	hash := sha256.Sum256([]byte(text))
	embedding := make([]float32, c.dimensions)

	// Use hash bytes cyclically, mapped into [-1, 1].
	for i := range c.dimensions {
		embedding[i] = (float32(hash[i%len(hash)]) / 127.5) - 1.0
	}

	embeddings.NormalizeL2(embedding)

	return embedding
}

// Ensure MockClient implements Provider.
var _ Provider = (*MockClient)(nil)
