package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SearchMetrics records search orchestration metrics. Labels are bounded to the
// SearchPath* and Stage* constants.
type SearchMetrics interface {
	RecordSearch(ctx context.Context, path string, results int, duration time.Duration)
	RecordStageFailure(ctx context.Context, stage string)
}

type searchMetrics struct {
	requests      metric.Int64Counter
	stageFailures metric.Int64Counter
	duration      metric.Float64Histogram
	results       metric.Int64Histogram
}

// NewSearchMetrics creates SearchMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewSearchMetrics(meter metric.Meter) (SearchMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	requests, err := meter.Int64Counter(
		MetricNameSearchRequests,
		metric.WithDescription("Total searches by the path that produced the answer (browse, vector, rerank, text, empty)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search requests counter: %w", err)
	}

	stageFailures, err := meter.Int64Counter(
		MetricNameSearchStageFailures,
		metric.WithDescription("Search stage failures absorbed by the orchestrator, by stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search stage failures counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameSearchDuration,
		metric.WithDescription("End-to-end search duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search duration histogram: %w", err)
	}

	results, err := meter.Int64Histogram(
		MetricNameSearchResults,
		metric.WithDescription("Number of results returned per search"),
		metric.WithExplicitBucketBoundaries(0, 1, 3, 6, 12, 25, 50),
	)
	if err != nil {
		return nil, fmt.Errorf("create search results histogram: %w", err)
	}

	return &searchMetrics{
		requests:      requests,
		stageFailures: stageFailures,
		duration:      duration,
		results:       results,
	}, nil
}

func (s *searchMetrics) RecordSearch(ctx context.Context, path string, results int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrPath, NormalizeReason(path, AllowedSearchPaths)))
	s.requests.Add(ctx, 1, attrs)
	s.duration.Record(ctx, duration.Seconds(), attrs)
	s.results.Record(ctx, int64(results), attrs)
}

func (s *searchMetrics) RecordStageFailure(ctx context.Context, stage string) {
	stage = NormalizeReason(stage, AllowedSearchStages)
	s.stageFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStage, stage)))
}
