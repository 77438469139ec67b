package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/signclips/hub/internal/models"
	"github.com/signclips/hub/internal/observability"
)

// Reranker parse errors. Both are absorbed by Rerank and only logged.
var (
	ErrRerankNoJSONArray = errors.New("rerank: reply contains no JSON array")
	ErrRerankMalformed   = errors.New("rerank: reply is not an array of objects")
)

// Reranker asks a language model to score keyword candidates against the query.
type Reranker struct {
	generator TextGenerator
	timeout   time.Duration
	metrics   observability.SearchMetrics
	logger    *slog.Logger
}

// RerankerParams configures Reranker. Metrics and Logger may be nil.
type RerankerParams struct {
	Generator TextGenerator
	Timeout   time.Duration
	Metrics   observability.SearchMetrics
	Logger    *slog.Logger
}

// NewReranker creates a Reranker.
func NewReranker(p RerankerParams) *Reranker {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultModelCallTimeout
	}

	return &Reranker{generator: p.Generator, timeout: timeout, metrics: p.Metrics, logger: logger}
}

// rerankEntry is one element of the model reply. The identity may be sent as video_url or identity.
type rerankEntry struct {
	VideoURL       string   `json:"video_url"`
	Identity       string   `json:"identity"`
	RelevanceScore *float64 `json:"relevance_score"`
}

func (e rerankEntry) id() string {
	if e.VideoURL != "" {
		return strings.TrimSpace(e.VideoURL)
	}

	return strings.TrimSpace(e.Identity)
}

// Rerank scores candidates against query and returns those scored at least MinRelevanceScore,
// most relevant first. Ties keep the input order. Any model or parse failure returns an empty list.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []models.Candidate) []models.RankedResult {
	if r == nil || r.generator == nil || len(candidates) == 0 {
		return []models.RankedResult{}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := r.generator.GenerateText(callCtx, buildRerankPrompt(query, candidates))
	if err != nil {
		r.logger.WarnContext(ctx, "rerank: model call failed", "error", err, "candidates", len(candidates))
		r.recordFailure(ctx, observability.StageRerankParseFailed)

		return []models.RankedResult{}
	}

	scores, err := parseRelevanceScores(reply)
	if err != nil {
		r.logger.WarnContext(ctx, "rerank: unparseable reply", "error", err)
		r.recordFailure(ctx, observability.StageRerankParseFailed)

		return []models.RankedResult{}
	}

	results, unknown := applyScores(candidates, scores)
	if unknown > 0 {
		r.logger.InfoContext(ctx, "rerank: dropped unknown candidates", "count", unknown)

		for range unknown {
			r.recordFailure(ctx, observability.StageUnknownCandidate)
		}
	}

	return results
}

func (r *Reranker) recordFailure(ctx context.Context, stage string) {
	if r.metrics != nil {
		r.metrics.RecordStageFailure(ctx, stage)
	}
}

// buildRerankPrompt lists the query and every candidate in input order.
func buildRerankPrompt(query string, candidates []models.Candidate) string {
	var b strings.Builder

	b.WriteString("You rank sign language videos by how well they answer a search query.\n")
	b.WriteString("Score each video from 1 (unrelated) to 10 (exact match).\n")
	fmt.Fprintf(&b, "Return ONLY a JSON array of objects {\"video_url\": string, \"relevance_score\": number}, "+
		"including only videos with relevance_score >= %d. No prose, no Markdown.\n\n", models.MinRelevanceScore)

	fmt.Fprintf(&b, "Query: %s\n\nVideos:\n", strings.TrimSpace(query))

	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. video_url: %s\n", i+1, c.URL)
		fmt.Fprintf(&b, "   title: %s\n", oneLine(c.Title))

		if d := oneLine(c.Description); d != "" {
			fmt.Fprintf(&b, "   description: %s\n", d)
		}

		if len(c.Tags) > 0 {
			fmt.Fprintf(&b, "   tags: %s\n", strings.Join(c.Tags, ", "))
		}
	}

	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseRelevanceScores extracts the JSON array from a model reply, optionally wrapped in a
// Markdown code fence. Entries without an identity or with a score outside 1..10 are skipped;
// a reply that is not an array of objects is an error.
func parseRelevanceScores(reply string) ([]models.RelevanceScore, error) {
	payload := stripCodeFence(strings.TrimSpace(reply))

	start := strings.IndexByte(payload, '[')
	end := strings.LastIndexByte(payload, ']')

	if start < 0 || end < start {
		return nil, ErrRerankNoJSONArray
	}

	var entries []rerankEntry
	if err := json.Unmarshal([]byte(payload[start:end+1]), &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRerankMalformed, err)
	}

	scores := make([]models.RelevanceScore, 0, len(entries))

	for _, e := range entries {
		id := e.id()
		if id == "" || e.RelevanceScore == nil {
			continue
		}

		score := *e.RelevanceScore
		if score < 1 || score > models.MaxRelevanceScore {
			continue
		}

		scores = append(scores, models.RelevanceScore{ID: id, Score: score})
	}

	return scores, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}

	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}

	return strings.TrimSpace(s)
}

// applyScores joins scores to candidates by video URL, keeps the first score per candidate,
// drops scores below MinRelevanceScore and sorts by similarity. It returns the number of
// entries that named no known candidate.
func applyScores(candidates []models.Candidate, scores []models.RelevanceScore) ([]models.RankedResult, int) {
	index := make(map[string]int, len(candidates))
	for i, c := range candidates {
		if _, ok := index[c.URL]; !ok {
			index[c.URL] = i
		}
	}

	type scored struct {
		pos    int
		result models.RankedResult
	}

	var (
		kept    []scored
		seen    = make(map[int]bool, len(scores))
		unknown int
	)

	for _, s := range scores {
		pos, ok := index[s.ID]
		if !ok {
			unknown++

			continue
		}

		if seen[pos] {
			continue
		}

		seen[pos] = true

		if s.Score < models.MinRelevanceScore {
			continue
		}

		similarity := s.Score / float64(models.MaxRelevanceScore)
		kept = append(kept, scored{pos: pos, result: models.RankedResult{Candidate: candidates[pos], Similarity: &similarity}})
	}

	slices.SortStableFunc(kept, func(a, b scored) int {
		switch {
		case *a.result.Similarity > *b.result.Similarity:
			return -1
		case *a.result.Similarity < *b.result.Similarity:
			return 1
		default:
			return a.pos - b.pos
		}
	})

	results := make([]models.RankedResult, len(kept))
	for i, k := range kept {
		results[i] = k.result
	}

	return results, unknown
}
