package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/signclips/hub/internal/observability"
)

// ErrorHandler logs failed and panicking River jobs with the video they were working on.
// River keeps its default retry behavior.
type ErrorHandler struct {
	Logger *slog.Logger
}

// HandleError is called when a job returns an error. Failures that will be retried log at warn;
// the final attempt logs at error because the video stays without an embedding until backfill.
func (h *ErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	ctx = observability.WithJobID(ctx, job.ID)

	if job.Attempt >= job.MaxAttempts {
		h.logger().ErrorContext(ctx, "job failed on final attempt, giving up", jobAttrs(job, "error", err)...)
	} else {
		h.logger().WarnContext(ctx, "job failed, will retry", jobAttrs(job, "error", err)...)
	}

	return nil
}

// HandlePanic is called when a job panics.
func (h *ErrorHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	ctx = observability.WithJobID(ctx, job.ID)

	h.logger().ErrorContext(ctx, "job panicked", jobAttrs(job, "panic_value", panicVal, "stack_trace", trace)...)

	return nil
}

func (h *ErrorHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}

	return slog.Default()
}

// jobAttrs describes job for a log line. video_id is included when the args carry one.
func jobAttrs(job *rivertype.JobRow, extra ...any) []any {
	attrs := []any{
		"job_kind", job.Kind,
		"queue", job.Queue,
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
	}

	var args struct {
		VideoID string `json:"video_id"`
	}
	if err := json.Unmarshal(job.EncodedArgs, &args); err == nil && args.VideoID != "" {
		attrs = append(attrs, "video_id", args.VideoID)
	}

	return append(attrs, extra...)
}
