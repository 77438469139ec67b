package embeddings

import (
	"context"
	"fmt"

	"github.com/signclips/hub/internal/config"
	"github.com/signclips/hub/internal/googleai"
	"github.com/signclips/hub/internal/models"
	"github.com/signclips/hub/internal/openai"
)

// CacheNamespace identifies the vector space of p for shared cache keys: the provider name plus
// the model the client resolved, including its default when EMBEDDING_MODEL is unset.
func CacheNamespace(providerName string, p Provider) string {
	if named, ok := p.(ModelNamer); ok {
		return providerName + "/" + named.ModelName()
	}

	return providerName
}

// NewProviderFromConfig builds the embedding provider selected by EMBEDDING_PROVIDER.
// It returns (nil, nil) when the provider is empty, which disables the vector path.
func NewProviderFromConfig(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.EmbeddingProvider {
	case "":
		//nolint:nilnil // intentional: embeddings disabled
		return nil, nil
	case config.ProviderGoogle:
		client, err := googleai.NewClient(ctx, cfg.EmbeddingProviderAPIKey,
			googleai.WithModel(cfg.EmbeddingModel),
			googleai.WithDimensions(models.EmbeddingDimension),
		)
		if err != nil {
			return nil, fmt.Errorf("create google embedding client: %w", err)
		}

		return client, nil
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.EmbeddingProviderAPIKey,
			openai.WithModel(cfg.EmbeddingModel),
			openai.WithDimensions(models.EmbeddingDimension),
		), nil
	case config.ProviderOpenAICompatible:
		return NewCompatibleClient(CompatibleConfig{
			APIKey:     cfg.EmbeddingProviderAPIKey,
			BaseURL:    cfg.EmbeddingBaseURL,
			Model:      cfg.EmbeddingModel,
			Dimensions: models.EmbeddingDimension,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.EmbeddingProvider)
	}
}
