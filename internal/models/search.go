package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/signclips/hub/pkg/embeddings"
)

// Search limits and ranking constants.
const (
	DefaultSearchLimit = 12
	MaxSearchLimit     = 50

	// EmbeddingDimension is the only accepted vector length; it must match videos.embedding.
	EmbeddingDimension = 768

	// MinRelevanceScore is the lowest reranker score (1..10) kept in results.
	MinRelevanceScore = 7
	MaxRelevanceScore = 10
)

// SearchQuery is one search request.
type SearchQuery struct {
	Query          string  `json:"query"`
	Region         *string `json:"region,omitempty"`
	Limit          int     `json:"limit,omitempty"`
	Conversational bool    `json:"conversational,omitempty"`
}

// EffectiveLimit returns Limit with the default applied and clamped to MaxSearchLimit.
func (q SearchQuery) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultSearchLimit
	}

	return min(q.Limit, MaxSearchLimit)
}

// Candidate is a video as seen by the ranking stages.
type Candidate struct {
	ID          uuid.UUID       `json:"id"`
	URL         string          `json:"video_url"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags"`
	Region      string          `json:"region"`
	CreatedAt   time.Time       `json:"created_at"`
	Uploader    UploaderSummary `json:"uploader"`
}

// RankedResult is a candidate plus its relevance in [0,1]. Similarity is nil in browse mode.
type RankedResult struct {
	Candidate

	Similarity *float64 `json:"similarity,omitempty"`
}

// RelevanceScore is one parsed reranker judgement: a candidate identity and a 1..10 score.
type RelevanceScore struct {
	ID    string
	Score float64
}

// ValidEmbedding reports whether v has exactly EmbeddingDimension finite components.
func ValidEmbedding(v []float32) bool {
	return len(v) == EmbeddingDimension && embeddings.Finite(v)
}
