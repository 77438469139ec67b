package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/signclips/hub/internal/models"
	"github.com/signclips/hub/internal/observability"
)

// NearestVideosStore is the vector lookup VectorSource reads from.
type NearestVideosStore interface {
	NearestByEmbedding(
		ctx context.Context, embedding []float32, region *string, minSimilarity float64, limit int,
	) ([]models.RankedResult, error)
}

// TextVideosStore is the keyword lookup TextSource reads from.
type TextVideosStore interface {
	SearchText(ctx context.Context, keyword string, region *string, limit int) ([]models.Candidate, error)
}

const defaultStoreTimeout = 5 * time.Second

// VectorSource retrieves verified videos by embedding distance. Store failures yield an empty list.
type VectorSource struct {
	store         NearestVideosStore
	minSimilarity float64
	timeout       time.Duration
	metrics       observability.SearchMetrics
	logger        *slog.Logger
}

// NewVectorSource creates a VectorSource keeping rows with similarity >= minSimilarity.
func NewVectorSource(
	store NearestVideosStore, minSimilarity float64, timeout time.Duration,
	metrics observability.SearchMetrics, logger *slog.Logger,
) *VectorSource {
	if logger == nil {
		logger = slog.Default()
	}

	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}

	return &VectorSource{store: store, minSimilarity: minSimilarity, timeout: timeout, metrics: metrics, logger: logger}
}

// Retrieve returns up to maxCandidates results ordered by distance, each with a similarity.
func (s *VectorSource) Retrieve(
	ctx context.Context, embedding []float32, region *string, maxCandidates int,
) []models.RankedResult {
	if !models.ValidEmbedding(embedding) || maxCandidates <= 0 {
		return []models.RankedResult{}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.store.NearestByEmbedding(callCtx, embedding, region, s.minSimilarity, maxCandidates)
	if err != nil {
		s.logger.WarnContext(ctx, "vector candidates unavailable", "error", err)

		if s.metrics != nil {
			s.metrics.RecordStageFailure(ctx, observability.StageCandidateFetchFailed)
		}

		return []models.RankedResult{}
	}

	if len(results) > maxCandidates {
		results = results[:maxCandidates]
	}

	return results
}

// TextSource retrieves verified videos by keyword. Store failures yield an empty list.
type TextSource struct {
	store   TextVideosStore
	timeout time.Duration
	metrics observability.SearchMetrics
	logger  *slog.Logger
}

// NewTextSource creates a TextSource.
func NewTextSource(
	store TextVideosStore, timeout time.Duration, metrics observability.SearchMetrics, logger *slog.Logger,
) *TextSource {
	if logger == nil {
		logger = slog.Default()
	}

	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}

	return &TextSource{store: store, timeout: timeout, metrics: metrics, logger: logger}
}

// Retrieve returns up to maxCandidates keyword matches, newest first.
func (s *TextSource) Retrieve(ctx context.Context, keyword string, region *string, maxCandidates int) []models.Candidate {
	if maxCandidates <= 0 {
		return []models.Candidate{}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	candidates, err := s.store.SearchText(callCtx, keyword, region, maxCandidates)
	if err != nil {
		s.logger.WarnContext(ctx, "text candidates unavailable", "error", err, "keyword", keyword)

		if s.metrics != nil {
			s.metrics.RecordStageFailure(ctx, observability.StageCandidateFetchFailed)
		}

		return []models.Candidate{}
	}

	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	return candidates
}
