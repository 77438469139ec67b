// Package googleai provides a thin wrapper around the Google Gen AI SDK for embeddings and text generation (Gemini API).
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"google.golang.org/genai"

	"github.com/signclips/hub/pkg/embeddings"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding or GenerateText is called with empty input.
	ErrEmptyInput = errors.New("googleai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("googleai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("googleai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("googleai: embedding dimension mismatch")
	// ErrEmptyResponse is returned when a generation call returns no text.
	ErrEmptyResponse = errors.New("googleai: empty generation response")
)

const (
	defaultDimension      = 768
	defaultModel          = "gemini-embedding-001"
	defaultGenerateModel  = "gemini-2.0-flash"
	defaultRetryMax       = 2
	fullDimensionGemini01 = 3072
)

// Client calls the Gemini embeddings and generation APIs via the Google Gen AI SDK.
type Client struct {
	client        *genai.Client
	model         string
	generateModel string
	dimensions    int
	retryMax      int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension (must match DB column).
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// ModelName returns the resolved embedding model.
func (c *Client) ModelName() string {
	return c.model
}

// WithModel sets the embedding model name (e.g. gemini-embedding-001). Empty uses default.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithGenerateModel sets the model used by GenerateText (e.g. gemini-2.0-flash). Empty uses default.
func WithGenerateModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.generateModel = model
		}
	}
}

// WithRetryMax sets how many times a failed HTTP call (5xx, 429, connection error) is retried.
func WithRetryMax(n int) ClientOption {
	return func(c *Client) {
		c.retryMax = n
	}
}

// NewClient creates a Gemini client. Outbound calls go through a retrying HTTP client;
// the caller's context deadline still bounds the total time including retries.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	client := &Client{
		model:         defaultModel,
		generateModel: defaultGenerateModel,
		dimensions:    defaultDimension,
		retryMax:      defaultRetryMax,
	}
	for _, opt := range opts {
		opt(client)
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: newRetryingHTTPClient(client.retryMax),
	})
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	client.client = genaiClient

	return client, nil
}

func newRetryingHTTPClient(retryMax int) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retryMax
	retryClient.Logger = nil // failures are logged by the callers with request context

	return retryClient.StandardClient()
}

// CreateEmbedding returns the embedding vector for the given text using the configured model.
// Truncated vectors (below the model's full dimension) are not unit length from the API and are L2-normalized here.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 || c.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	contents := []*genai.Content{genai.NewContentFromText(input, genai.RoleUser)}
	//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32
	dimInt32 := int32(c.dimensions)

	resp, err := c.client.Models.EmbedContent(ctx, c.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dimInt32,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Embeddings[0].Values
	if len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	out := make([]float32, len(emb))
	copy(out, emb)

	if c.dimensions < fullDimensionGemini01 {
		embeddings.NormalizeL2(out)
	}

	return out, nil
}

// GenerateText sends a single-turn prompt to the generation model and returns the trimmed reply.
// Temperature is pinned to 0.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyInput
	}

	var temperature float32

	resp, err := c.client.Models.GenerateContent(ctx, c.generateModel, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}
