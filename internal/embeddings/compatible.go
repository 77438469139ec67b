package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

var (
	errEmptyText         = errors.New("embeddings: text cannot be empty")
	errNoEmbeddingReturn = errors.New("embeddings: no embedding returned from API")
)

// CompatibleClient implements Provider against any OpenAI-compatible embeddings endpoint
// (self-hosted inference servers, gateways) selected by base URL.
type CompatibleClient struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// Ensure CompatibleClient implements Provider.
var _ Provider = (*CompatibleClient)(nil)

// CompatibleConfig configures CompatibleClient. APIKey may be empty for servers without auth.
type CompatibleConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// NewCompatibleClient creates an embeddings client for an OpenAI-compatible server.
func NewCompatibleClient(cfg CompatibleConfig) *CompatibleClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := openai.EmbeddingModel(cfg.Model)
	if model == "" {
		model = openai.SmallEmbedding3
	}

	return &CompatibleClient{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: cfg.Dimensions,
	}
}

// ModelName returns the resolved embedding model.
func (c *CompatibleClient) ModelName() string {
	return string(c.model)
}

// CreateEmbedding generates an embedding vector for the given text. When dimensions is set it is
// sent with the request; servers that ignore it are caught by the caller's dimension check.
func (c *CompatibleClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errEmptyText
	}

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          c.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if c.dimensions > 0 {
		req.Dimensions = c.dimensions
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errNoEmbeddingReturn
	}

	return resp.Data[0].Embedding, nil
}
