// Package observability provides OpenTelemetry metrics, tracing and log correlation for the search API.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameSearchRequests          = "hub_search_requests_total"
	MetricNameSearchStageFailures     = "hub_search_stage_failures_total"
	MetricNameSearchDuration          = "hub_search_duration_seconds"
	MetricNameSearchResults           = "hub_search_results"
	MetricNameEmbeddingJobsEnqueued   = "hub_embedding_jobs_enqueued_total"
	MetricNameEmbeddingProviderErrors = "hub_embedding_provider_errors_total"
	MetricNameEmbeddingOutcomes       = "hub_embedding_outcomes_total"
	MetricNameEmbeddingWorkerErrors   = "hub_embedding_worker_errors_total"
	MetricNameEmbeddingDuration       = "hub_embedding_duration_seconds"
	MetricNameCacheHits               = "hub_cache_hits_total"
	MetricNameCacheMisses             = "hub_cache_misses_total"
	MetricNameRequestBodyTooLarge     = "hub_request_body_too_large_total"
	MetricNameRiverQueueDepth         = "hub_river_queue_depth"
)

// Attribute keys.
const (
	AttrPath   = "path"
	AttrStage  = "stage"
	AttrReason = "reason"
	AttrStatus = "status"
	AttrCache  = "cache"
)

// Search paths for hub_search_requests_total: which stage produced the answer.
// SearchPathText is keyword results served without a reranker configured.
const (
	SearchPathBrowse = "browse"
	SearchPathVector = "vector"
	SearchPathRerank = "rerank"
	SearchPathText   = "text"
	SearchPathEmpty  = "empty"
)

// Search stage failures for hub_search_stage_failures_total.
const (
	StageEmbeddingUnavailable = "embedding_unavailable"
	StageCandidateFetchFailed = "candidate_fetch_failed"
	StageRerankParseFailed    = "rerank_parse_failed"
	StageUnknownCandidate     = "unknown_candidate"
)

// AllowedSearchPaths for hub_search_requests_total and hub_search_duration_seconds.
var AllowedSearchPaths = map[string]bool{
	SearchPathBrowse: true,
	SearchPathVector: true,
	SearchPathRerank: true,
	SearchPathText:   true,
	SearchPathEmpty:  true,
}

// AllowedSearchStages for hub_search_stage_failures_total.
var AllowedSearchStages = map[string]bool{
	StageEmbeddingUnavailable: true,
	StageCandidateFetchFailed: true,
	StageRerankParseFailed:    true,
	StageUnknownCandidate:     true,
}

// AllowedEmbeddingProviderReason for hub_embedding_provider_errors_total.
var AllowedEmbeddingProviderReason = map[string]bool{
	"enqueue_failed": true,
}

// AllowedEmbeddingWorkerReason for hub_embedding_worker_errors_total.
var AllowedEmbeddingWorkerReason = map[string]bool{
	"get_video_failed": true,
	"provider_failed":  true,
	"invalid_vector":   true,
	"update_failed":    true,
}

// allowedEmbeddingOutcomeStatuses for hub_embedding_outcomes_total and hub_embedding_duration_seconds.
var allowedEmbeddingOutcomeStatuses = map[string]bool{
	"success":      true,
	"skipped":      true,
	"retry":        true,
	"failed_final": true,
}

// AllowedEmbeddingOutcomeStatus reports whether status is a known embedding outcome.
func AllowedEmbeddingOutcomeStatus(status string) bool {
	return allowedEmbeddingOutcomeStatuses[status]
}

// allowedCacheNames bounds the cache label.
var allowedCacheNames = map[string]bool{
	"query_embedding":        true,
	"query_embedding_shared": true,
}

// NormalizeCacheName returns name if known, otherwise "other".
func NormalizeCacheName(name string) string {
	if allowedCacheNames[name] {
		return name
	}

	return "other"
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}
