// Package jobs holds batch jobs and River hooks shared by the binaries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// MissingEmbeddingLister lists videos whose embedding is NULL.
type MissingEmbeddingLister interface {
	ListIDsMissingEmbedding(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// VideoEmbeddingGenerator embeds one video; see service.VideoEmbeddingService.
type VideoEmbeddingGenerator interface {
	GenerateForVideo(ctx context.Context, id uuid.UUID) (bool, error)
}

// BackfillStats holds statistics from a backfill run.
type BackfillStats struct {
	Listed   int
	Embedded int
	Skipped  int
	Failed   int
}

// BackfillOptions tunes a backfill run.
type BackfillOptions struct {
	// Limit caps the videos processed in one run; 0 means all.
	Limit int
	// RatePerSecond paces generation calls; 0 means unlimited.
	RatePerSecond float64
	// DryRun lists the videos without generating embeddings.
	DryRun bool
}

// EmbeddingBackfillJob embeds every video that is missing a vector, one at a time.
type EmbeddingBackfillJob struct {
	lister    MissingEmbeddingLister
	generator VideoEmbeddingGenerator
	opts      BackfillOptions
	logger    *slog.Logger
}

// NewEmbeddingBackfillJob creates the job.
func NewEmbeddingBackfillJob(
	lister MissingEmbeddingLister, generator VideoEmbeddingGenerator, opts BackfillOptions, logger *slog.Logger,
) *EmbeddingBackfillJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &EmbeddingBackfillJob{lister: lister, generator: generator, opts: opts, logger: logger}
}

// Run processes the videos missing an embedding once. Per-video failures are counted and logged;
// only a failure to list videos or a cancelled context is returned.
func (j *EmbeddingBackfillJob) Run(ctx context.Context) (BackfillStats, error) {
	var stats BackfillStats

	ids, err := j.lister.ListIDsMissingEmbedding(ctx, j.opts.Limit)
	if err != nil {
		return stats, fmt.Errorf("list videos missing embedding: %w", err)
	}

	stats.Listed = len(ids)

	if len(ids) == 0 {
		j.logger.InfoContext(ctx, "backfill: nothing to do")

		return stats, nil
	}

	if j.opts.DryRun {
		j.logger.InfoContext(ctx, "backfill: dry run", "videos", len(ids))

		return stats, nil
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if j.opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(j.opts.RatePerSecond), 1)
	}

	start := time.Now()

	for i, id := range ids {
		if err := limiter.Wait(ctx); err != nil {
			return stats, fmt.Errorf("backfill interrupted after %d videos: %w", i, err)
		}

		written, err := j.generator.GenerateForVideo(ctx, id)

		switch {
		case err != nil && errors.Is(err, context.Canceled):
			return stats, fmt.Errorf("backfill interrupted after %d videos: %w", i, err)
		case err != nil:
			stats.Failed++
			j.logger.ErrorContext(ctx, "backfill: embedding failed", "video_id", id, "error", err)
		case written:
			stats.Embedded++
		default:
			stats.Skipped++
		}
	}

	j.logger.InfoContext(ctx, "backfill: finished",
		"listed", stats.Listed,
		"embedded", stats.Embedded,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return stats, nil
}
