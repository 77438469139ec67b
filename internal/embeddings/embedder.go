package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/signclips/hub/internal/models"
	"github.com/signclips/hub/internal/observability"
	"github.com/signclips/hub/pkg/cache"
)

// Cache names reported to CacheMetrics.
const (
	LocalCacheName  = "query_embedding"
	SharedCacheName = "query_embedding_shared"
)

// errWrongDimension marks provider vectors that fail the dimension gate.
var errWrongDimension = errors.New("embeddings: wrong dimension")

// SharedCache is a cross-process embedding cache (RedisCache). Get returns ErrCacheMiss when absent.
type SharedCache interface {
	Get(ctx context.Context, text string) ([]float32, error)
	Set(ctx context.Context, text string, vec []float32) error
}

// Embedder produces query embeddings for search. It never fails: any provider error,
// timeout, empty response or vector of the wrong dimension yields nil, which callers
// treat as "vector path unavailable".
type Embedder struct {
	provider     Provider
	timeout      time.Duration
	local        *cache.LoaderCache[string, []float32]
	shared       SharedCache
	cacheMetrics observability.CacheMetrics
	logger       *slog.Logger
}

// EmbedderParams configures Embedder. Only Provider is required; Local, Shared and CacheMetrics may be nil.
type EmbedderParams struct {
	Provider     Provider
	Timeout      time.Duration
	Local        *cache.LoaderCache[string, []float32]
	Shared       SharedCache
	CacheMetrics observability.CacheMetrics
	Logger       *slog.Logger
}

const defaultEmbedTimeout = 10 * time.Second

// NewEmbedder creates an Embedder.
func NewEmbedder(p EmbedderParams) *Embedder {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultEmbedTimeout
	}

	return &Embedder{
		provider:     p.Provider,
		timeout:      timeout,
		local:        p.Local,
		shared:       p.Shared,
		cacheMetrics: p.CacheMetrics,
		logger:       logger,
	}
}

// NewLocalCache creates the in-process query embedding cache. size <= 0 returns nil (disabled).
func NewLocalCache(size int) (*cache.LoaderCache[string, []float32], error) {
	if size <= 0 {
		//nolint:nilnil // intentional: cache disabled, Embedder accepts a nil cache
		return nil, nil
	}

	c, err := cache.NewLoaderCache[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create query embedding cache: %w", err)
	}

	return c, nil
}

// Embed returns a vector of exactly models.EmbeddingDimension components, or nil.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	if e == nil || e.provider == nil {
		return nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		vec []float32
		err error
	)

	if e.local != nil {
		var hit bool

		vec, hit, err = e.local.Get(ctx, text, e.load)
		e.recordCache(ctx, LocalCacheName, hit && err == nil)
	} else {
		vec, err = e.load(ctx, text)
	}

	if err != nil {
		e.logger.WarnContext(ctx, "embedding unavailable", "error", err)

		return nil
	}

	if !models.ValidEmbedding(vec) {
		e.logger.WarnContext(ctx, "embedding unavailable: cached vector has wrong dimension", "got", len(vec))

		return nil
	}

	return vec
}

// load reads through the shared cache to the provider. Errors are returned (not cached)
// so a failing provider is retried on the next request.
func (e *Embedder) load(ctx context.Context, text string) ([]float32, error) {
	if e.shared != nil {
		vec, err := e.shared.Get(ctx, text)

		switch {
		case err == nil && models.ValidEmbedding(vec):
			e.recordCache(ctx, SharedCacheName, true)

			return vec, nil
		case err != nil && !errors.Is(err, ErrCacheMiss):
			e.logger.WarnContext(ctx, "shared embedding cache get failed", "error", err)
		}

		e.recordCache(ctx, SharedCacheName, false)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vec, err := e.provider.CreateEmbedding(callCtx, text)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	if len(vec) == 0 {
		return nil, errNoEmbeddingReturn
	}

	if !models.ValidEmbedding(vec) {
		return nil, fmt.Errorf("%w: got %d, want %d", errWrongDimension, len(vec), models.EmbeddingDimension)
	}

	if e.shared != nil {
		if err := e.shared.Set(ctx, text, vec); err != nil {
			e.logger.WarnContext(ctx, "shared embedding cache set failed", "error", err)
		}
	}

	return vec, nil
}

func (e *Embedder) recordCache(ctx context.Context, name string, hit bool) {
	if e.cacheMetrics == nil {
		return
	}

	if hit {
		e.cacheMetrics.RecordHit(ctx, name)
	} else {
		e.cacheMetrics.RecordMiss(ctx, name)
	}
}
