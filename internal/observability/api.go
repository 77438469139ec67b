package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// APIMetrics counts HTTP rejections that happen before a handler runs.
type APIMetrics interface {
	RecordRequestBodyTooLarge(ctx context.Context)
}

// CacheMetrics counts query embedding cache lookups per layer (query_embedding, query_embedding_shared).
// Hit ratio = rate(hits) / (rate(hits) + rate(misses)).
type CacheMetrics interface {
	RecordHit(ctx context.Context, cacheName string)
	RecordMiss(ctx context.Context, cacheName string)
}

type apiMetrics struct {
	bodyTooLarge metric.Int64Counter
}

type cacheMetrics struct {
	hits   metric.Int64Counter
	misses metric.Int64Counter
}

func newCounter(meter metric.Meter, name, desc string) (metric.Int64Counter, error) {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}

	return c, nil
}

// NewAPIMetrics returns (nil, nil) when meter is nil.
func NewAPIMetrics(meter metric.Meter) (APIMetrics, error) {
	if meter == nil {
		//nolint:nilnil // metrics disabled
		return nil, nil
	}

	c, err := newCounter(meter, MetricNameRequestBodyTooLarge, "Requests rejected with 413 because the body exceeded the limit.")
	if err != nil {
		return nil, err
	}

	return &apiMetrics{bodyTooLarge: c}, nil
}

func (a *apiMetrics) RecordRequestBodyTooLarge(ctx context.Context) {
	a.bodyTooLarge.Add(ctx, 1)
}

// NewCacheMetrics returns (nil, nil) when meter is nil.
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	if meter == nil {
		//nolint:nilnil // metrics disabled
		return nil, nil
	}

	hits, err := newCounter(meter, MetricNameCacheHits, "Query embedding cache lookups answered from the cache.")
	if err != nil {
		return nil, err
	}

	misses, err := newCounter(meter, MetricNameCacheMisses,
		"Query embedding cache lookups that fell through to the next layer or the provider.")
	if err != nil {
		return nil, err
	}

	return &cacheMetrics{hits: hits, misses: misses}, nil
}

func (c *cacheMetrics) RecordHit(ctx context.Context, cacheName string) {
	c.hits.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrCache, NormalizeCacheName(cacheName))))
}

func (c *cacheMetrics) RecordMiss(ctx context.Context, cacheName string) {
	c.misses.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrCache, NormalizeCacheName(cacheName))))
}
