package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EmbeddingMetrics covers ingestion-time video embedding: enqueue in the API, work in River.
type EmbeddingMetrics interface {
	RecordJobsEnqueued(ctx context.Context, count int64)
	RecordProviderError(ctx context.Context, reason string)
	RecordEmbeddingOutcome(ctx context.Context, status string)
	RecordWorkerError(ctx context.Context, reason string)
	RecordEmbeddingDuration(ctx context.Context, duration time.Duration, status string)
}

type embeddingMetrics struct {
	enqueued     metric.Int64Counter
	enqueueErrs  metric.Int64Counter
	outcomes     metric.Int64Counter
	workerErrs   metric.Int64Counter
	jobDurations metric.Float64Histogram
}

// NewEmbeddingMetrics returns (nil, nil) when meter is nil.
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // metrics disabled
		return nil, nil
	}

	var (
		m   embeddingMetrics
		err error
	)

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.enqueued, MetricNameEmbeddingJobsEnqueued, "video_embedding jobs inserted into River."},
		{&m.enqueueErrs, MetricNameEmbeddingProviderErrors, "video_embedding jobs that could not be inserted, by reason."},
		{&m.outcomes, MetricNameEmbeddingOutcomes, "video_embedding job results by status."},
		{&m.workerErrs, MetricNameEmbeddingWorkerErrors, "video_embedding job failures by reason (get video, provider, invalid vector, update)."},
	}

	for _, c := range counters {
		if *c.dst, err = newCounter(meter, c.name, c.desc); err != nil {
			return nil, err
		}
	}

	m.jobDurations, err = meter.Float64Histogram(
		MetricNameEmbeddingDuration,
		metric.WithDescription("video_embedding job duration by status."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricNameEmbeddingDuration, err)
	}

	return &m, nil
}

func (e *embeddingMetrics) RecordJobsEnqueued(ctx context.Context, count int64) {
	e.enqueued.Add(ctx, count)
}

func (e *embeddingMetrics) RecordProviderError(ctx context.Context, reason string) {
	e.enqueueErrs.Add(ctx, 1, reasonAttr(reason, AllowedEmbeddingProviderReason))
}

func (e *embeddingMetrics) RecordEmbeddingOutcome(ctx context.Context, status string) {
	e.outcomes.Add(ctx, 1, statusAttr(status))
}

func (e *embeddingMetrics) RecordWorkerError(ctx context.Context, reason string) {
	e.workerErrs.Add(ctx, 1, reasonAttr(reason, AllowedEmbeddingWorkerReason))
}

func (e *embeddingMetrics) RecordEmbeddingDuration(ctx context.Context, duration time.Duration, status string) {
	e.jobDurations.Record(ctx, duration.Seconds(), statusAttr(status))
}

func reasonAttr(reason string, allowed map[string]bool) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(AttrReason, NormalizeReason(reason, allowed)))
}

func statusAttr(status string) metric.MeasurementOption {
	if !AllowedEmbeddingOutcomeStatus(status) {
		status = "other"
	}

	return metric.WithAttributes(attribute.String(AttrStatus, status))
}
