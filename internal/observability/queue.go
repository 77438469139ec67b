package observability

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
)

// QueueMetrics exposes the River job queue depth as a gauge. The API process polls the
// depth and stores it; the gauge callback reads the last value.
type QueueMetrics interface {
	SetRiverQueueDepth(depth int)
}

type queueMetrics struct {
	riverQueueDepth atomic.Int64
	riverQueueGauge metric.Float64ObservableGauge
}

// NewQueueMetrics creates QueueMetrics and registers the gauge. Returns (nil, nil) when meter is nil (metrics disabled).
func NewQueueMetrics(meter metric.Meter) (QueueMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	q := &queueMetrics{}

	gauge, err := meter.Float64ObservableGauge(
		MetricNameRiverQueueDepth,
		metric.WithDescription("Current River job queue depth (embeddings queue, available/retryable/scheduled)"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(float64(q.riverQueueDepth.Load()))

			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create river queue depth gauge: %w", err)
	}

	q.riverQueueGauge = gauge

	return q, nil
}

func (q *queueMetrics) SetRiverQueueDepth(depth int) {
	q.riverQueueDepth.Store(int64(depth))
}
