package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/signclips/hub/internal/models"
	"github.com/signclips/hub/internal/observability"
)

// QueryEmbedder produces a query vector or nil when the vector path is unavailable.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) []float32
}

// VectorRetriever returns vector-path results; empty means unavailable.
type VectorRetriever interface {
	Retrieve(ctx context.Context, embedding []float32, region *string, maxCandidates int) []models.RankedResult
}

// TextRetriever returns keyword candidates; empty means no matches.
type TextRetriever interface {
	Retrieve(ctx context.Context, keyword string, region *string, maxCandidates int) []models.Candidate
}

// CandidateReranker scores keyword candidates against the query.
type CandidateReranker interface {
	Rerank(ctx context.Context, query string, candidates []models.Candidate) []models.RankedResult
}

// KeywordNormalizer extracts a keyword from a conversational query.
type KeywordNormalizer interface {
	Normalize(ctx context.Context, raw string) string
}

// RecentVideosStore lists the newest verified videos for browse mode.
type RecentVideosStore interface {
	ListRecent(ctx context.Context, region *string, limit int) ([]models.Candidate, error)
}

const defaultCandidateMultiplier = 3

// SearchService runs the search fallback chain: browse for an empty query, then the vector
// path, then keyword candidates reranked by a language model. It never returns an error;
// stage failures degrade to fewer or zero results.
type SearchService struct {
	embedder   QueryEmbedder
	vector     VectorRetriever
	text       TextRetriever
	reranker   CandidateReranker
	normalizer KeywordNormalizer
	recent     RecentVideosStore
	multiplier int
	parallel   bool
	metrics    observability.SearchMetrics
	logger     *slog.Logger
}

// SearchServiceParams configures SearchService. Embedder, Reranker, Normalizer and Metrics may be nil:
// a nil Embedder skips the vector path, a nil Reranker serves keyword candidates unranked.
type SearchServiceParams struct {
	Embedder            QueryEmbedder
	Vector              VectorRetriever
	Text                TextRetriever
	Reranker            CandidateReranker
	Normalizer          KeywordNormalizer
	Recent              RecentVideosStore
	CandidateMultiplier int
	ParallelCandidates  bool
	Metrics             observability.SearchMetrics
	Logger              *slog.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(p SearchServiceParams) *SearchService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	multiplier := p.CandidateMultiplier
	if multiplier <= 0 {
		multiplier = defaultCandidateMultiplier
	}

	return &SearchService{
		embedder:   p.Embedder,
		vector:     p.Vector,
		text:       p.Text,
		reranker:   p.Reranker,
		normalizer: p.Normalizer,
		recent:     p.Recent,
		multiplier: multiplier,
		parallel:   p.ParallelCandidates,
		metrics:    p.Metrics,
		logger:     logger,
	}
}

// Search returns at most q.EffectiveLimit() results.
func (s *SearchService) Search(ctx context.Context, q models.SearchQuery) []models.RankedResult {
	ctx, span := observability.StartSpan(ctx, "search")
	defer span.End()

	start := time.Now()
	limit := q.EffectiveLimit()
	query := strings.TrimSpace(q.Query)

	var (
		results []models.RankedResult
		path    string
	)

	switch {
	case query == "":
		results, path = s.browse(ctx, q.Region, limit), observability.SearchPathBrowse
	case s.parallel:
		results, path = s.searchParallel(ctx, query, q.Region, q.Conversational, limit)
	default:
		results, path = s.searchSequential(ctx, query, q.Region, q.Conversational, limit)
	}

	results = truncate(results, limit)
	if len(results) == 0 && path != observability.SearchPathBrowse {
		path = observability.SearchPathEmpty
	}

	span.SetAttributes(
		attribute.String("search."+observability.AttrPath, path),
		attribute.Int("search.results", len(results)),
		attribute.Int("search.limit", limit),
	)

	if s.metrics != nil {
		s.metrics.RecordSearch(ctx, path, len(results), time.Since(start))
	}

	s.logger.DebugContext(ctx, "search completed",
		"path", path,
		"results", len(results),
		"limit", limit,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return results
}

func (s *SearchService) browse(ctx context.Context, region *string, limit int) []models.RankedResult {
	if s.recent == nil {
		return []models.RankedResult{}
	}

	candidates, err := s.recent.ListRecent(ctx, region, limit)
	if err != nil {
		s.logger.WarnContext(ctx, "browse: list recent videos failed", "error", err)
		s.recordFailure(ctx, observability.StageCandidateFetchFailed)

		return []models.RankedResult{}
	}

	results := make([]models.RankedResult, len(candidates))
	for i, c := range candidates {
		results[i] = models.RankedResult{Candidate: c}
	}

	return results
}

func (s *SearchService) searchSequential(
	ctx context.Context, query string, region *string, conversational bool, limit int,
) ([]models.RankedResult, string) {
	if results := s.vectorPath(ctx, query, region, limit); len(results) > 0 {
		return results, observability.SearchPathVector
	}

	candidates := s.textCandidates(ctx, query, region, conversational, limit)

	return s.rank(ctx, query, candidates)
}

// searchParallel starts the keyword query alongside the vector path. A non-empty vector
// result cancels and discards the keyword branch; the reranker only runs on fallback.
func (s *SearchService) searchParallel(
	ctx context.Context, query string, region *string, conversational bool, limit int,
) ([]models.RankedResult, string) {
	textCtx, cancelText := context.WithCancel(ctx)
	defer cancelText()

	var (
		g          errgroup.Group
		candidates []models.Candidate
	)

	g.Go(func() error {
		candidates = s.textCandidates(textCtx, query, region, conversational, limit)

		return nil
	})

	if results := s.vectorPath(ctx, query, region, limit); len(results) > 0 {
		cancelText()
		_ = g.Wait()

		return results, observability.SearchPathVector
	}

	_ = g.Wait()

	return s.rank(ctx, query, candidates)
}

func (s *SearchService) vectorPath(ctx context.Context, query string, region *string, limit int) []models.RankedResult {
	if s.embedder == nil || s.vector == nil {
		return nil
	}

	embedding := s.embedder.Embed(ctx, query)
	if embedding == nil {
		s.recordFailure(ctx, observability.StageEmbeddingUnavailable)

		return nil
	}

	return s.vector.Retrieve(ctx, embedding, region, limit)
}

func (s *SearchService) textCandidates(
	ctx context.Context, query string, region *string, conversational bool, limit int,
) []models.Candidate {
	if s.text == nil {
		return nil
	}

	keyword := query
	if conversational && s.normalizer != nil {
		keyword = s.normalizer.Normalize(ctx, query)
	}

	return s.text.Retrieve(ctx, keyword, region, limit*s.multiplier)
}

func (s *SearchService) rank(ctx context.Context, query string, candidates []models.Candidate) ([]models.RankedResult, string) {
	if len(candidates) == 0 {
		return []models.RankedResult{}, observability.SearchPathEmpty
	}

	if s.reranker == nil {
		results := make([]models.RankedResult, len(candidates))
		for i, c := range candidates {
			results[i] = models.RankedResult{Candidate: c}
		}

		return results, observability.SearchPathText
	}

	return s.reranker.Rerank(ctx, query, candidates), observability.SearchPathRerank
}

func (s *SearchService) recordFailure(ctx context.Context, stage string) {
	if s.metrics != nil {
		s.metrics.RecordStageFailure(ctx, stage)
	}
}

func truncate(results []models.RankedResult, limit int) []models.RankedResult {
	if results == nil {
		return []models.RankedResult{}
	}

	if len(results) > limit {
		return results[:limit]
	}

	return results
}
