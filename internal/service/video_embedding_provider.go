package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/signclips/hub/internal/models"
	"github.com/signclips/hub/internal/observability"
)

const uniqueByPeriodEmbedding = time.Hour

// VideoLookup checks that a video exists before a job is enqueued for it.
type VideoLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
}

// VideoEmbeddingEnqueuer enqueues one unique video_embedding River job per request so the
// vector index is populated at ingestion time instead of waiting for the next backfill.
type VideoEmbeddingEnqueuer struct {
	inserter    VideoEmbeddingInserter
	videos      VideoLookup
	queueName   string
	maxAttempts int
	metrics     observability.EmbeddingMetrics
}

// NewVideoEmbeddingEnqueuer creates an enqueuer. metrics may be nil when metrics are disabled.
func NewVideoEmbeddingEnqueuer(
	inserter VideoEmbeddingInserter,
	videos VideoLookup,
	queueName string,
	maxAttempts int,
	metrics observability.EmbeddingMetrics,
) *VideoEmbeddingEnqueuer {
	return &VideoEmbeddingEnqueuer{
		inserter:    inserter,
		videos:      videos,
		queueName:   queueName,
		maxAttempts: maxAttempts,
		metrics:     metrics,
	}
}

// Enqueue schedules embedding generation for the video. It returns huberrors.NotFoundError
// for an unknown video and reports whether a job already pending for it was reused.
func (p *VideoEmbeddingEnqueuer) Enqueue(ctx context.Context, videoID uuid.UUID) (bool, error) {
	if _, err := p.videos.GetByID(ctx, videoID); err != nil {
		return false, fmt.Errorf("get video: %w", err)
	}

	opts := &river.InsertOpts{
		Queue:       p.queueName,
		MaxAttempts: p.maxAttempts,
		UniqueOpts:  river.UniqueOpts{ByArgs: true, ByPeriod: uniqueByPeriodEmbedding},
	}

	res, err := p.inserter.Insert(ctx, VideoEmbeddingArgs{VideoID: videoID}, opts)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordProviderError(ctx, "enqueue_failed")
		}

		slog.ErrorContext(ctx, "embedding: enqueue failed", "video_id", videoID, "error", err)

		return false, fmt.Errorf("enqueue video embedding: %w", err)
	}

	duplicate := res != nil && res.UniqueSkippedAsDuplicate

	slog.InfoContext(ctx, "embedding: job enqueued", "video_id", videoID, "duplicate", duplicate)

	if p.metrics != nil && !duplicate {
		p.metrics.RecordJobsEnqueued(ctx, 1)
	}

	return duplicate, nil
}
