// Package workers provides River job workers.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/signclips/hub/internal/huberrors"
	"github.com/signclips/hub/internal/observability"
	"github.com/signclips/hub/internal/service"
)

// videoEmbeddingGenerator is the minimal interface needed by the worker.
type videoEmbeddingGenerator interface {
	GenerateForVideo(ctx context.Context, id uuid.UUID) (bool, error)
}

// VideoEmbeddingWorker generates and stores the embedding of one video.
type VideoEmbeddingWorker struct {
	river.WorkerDefaults[service.VideoEmbeddingArgs]

	generator videoEmbeddingGenerator
	metrics   observability.EmbeddingMetrics
	timeout   time.Duration
}

const defaultVideoEmbeddingTimeout = 30 * time.Second

// NewVideoEmbeddingWorker creates the worker. metrics may be nil when metrics are disabled.
func NewVideoEmbeddingWorker(
	generator videoEmbeddingGenerator, metrics observability.EmbeddingMetrics, timeout time.Duration,
) *VideoEmbeddingWorker {
	if timeout <= 0 {
		timeout = defaultVideoEmbeddingTimeout
	}

	return &VideoEmbeddingWorker{generator: generator, metrics: metrics, timeout: timeout}
}

// Timeout limits how long a single embedding job can run.
func (w *VideoEmbeddingWorker) Timeout(*river.Job[service.VideoEmbeddingArgs]) time.Duration {
	return w.timeout
}

// Work embeds the video. Missing videos, videos without text and wrong-dimension vectors
// complete the job; other failures retry until the last attempt, which is logged and dropped.
func (w *VideoEmbeddingWorker) Work(ctx context.Context, job *river.Job[service.VideoEmbeddingArgs]) error {
	ctx = observability.WithJobID(ctx, job.ID)
	videoID := job.Args.VideoID
	start := time.Now()

	written, err := w.generator.GenerateForVideo(ctx, videoID)
	if err == nil {
		status := "success"
		if !written {
			status = "skipped"
		}

		w.recordOutcome(ctx, status, start)
		slog.InfoContext(ctx, "embedding: done", "video_id", videoID, "written", written)

		return nil
	}

	switch {
	case errors.Is(err, huberrors.ErrNotFound):
		w.recordError(ctx, "get_video_failed")
		w.recordOutcome(ctx, "skipped", start)
		slog.WarnContext(ctx, "embedding: video not found", "video_id", videoID)

		return nil
	case errors.Is(err, service.ErrEmptyEmbeddingText):
		w.recordOutcome(ctx, "skipped", start)
		slog.InfoContext(ctx, "embedding: skipped (no text)", "video_id", videoID)

		return nil
	case errors.Is(err, service.ErrInvalidEmbedding):
		w.recordError(ctx, "invalid_vector")
		w.recordOutcome(ctx, "failed_final", start)
		slog.ErrorContext(ctx, "embedding: provider returned invalid vector", "video_id", videoID, "error", err)

		return nil
	}

	w.recordError(ctx, "provider_failed")

	if job.Attempt >= job.MaxAttempts {
		w.recordOutcome(ctx, "failed_final", start)
		slog.ErrorContext(ctx, "embedding: failed (final attempt)",
			"video_id", videoID,
			"attempt", job.Attempt,
			"error", err,
		)

		return nil
	}

	w.recordOutcome(ctx, "retry", start)

	return fmt.Errorf("generate video embedding: %w", err)
}

func (w *VideoEmbeddingWorker) recordError(ctx context.Context, reason string) {
	if w.metrics != nil {
		w.metrics.RecordWorkerError(ctx, reason)
	}
}

func (w *VideoEmbeddingWorker) recordOutcome(ctx context.Context, status string, start time.Time) {
	if w.metrics != nil {
		w.metrics.RecordEmbeddingOutcome(ctx, status)
		w.metrics.RecordEmbeddingDuration(ctx, time.Since(start), status)
	}
}
