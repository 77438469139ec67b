package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signclips/hub/internal/huberrors"
	"github.com/signclips/hub/internal/models"
)

type mockTextGenerator struct {
	mu       sync.Mutex
	prompts  []string
	generate func(ctx context.Context, prompt string) (string, error)
}

func (m *mockTextGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.generate != nil {
		return m.generate(ctx, prompt)
	}

	return "", nil
}

func (m *mockTextGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.prompts)
}

func replyWith(reply string) *mockTextGenerator {
	return &mockTextGenerator{generate: func(context.Context, string) (string, error) { return reply, nil }}
}

type mockVideoStore struct {
	mu           sync.Mutex
	videos       map[uuid.UUID]*models.Video
	getErr       error
	updateErr    error
	updateCalls  int
	nearest      func(ctx context.Context, emb []float32, region *string, minSim float64, limit int) ([]models.RankedResult, error)
	searchText   func(ctx context.Context, keyword string, region *string, limit int) ([]models.Candidate, error)
	listRecent   func(ctx context.Context, region *string, limit int) ([]models.Candidate, error)
	nearestCalls int
	textCalls    int
	textKeywords []string
}

func newMockVideoStore() *mockVideoStore {
	return &mockVideoStore{videos: map[uuid.UUID]*models.Video{}}
}

func (m *mockVideoStore) GetByID(_ context.Context, id uuid.UUID) (*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	v, ok := m.videos[id]
	if !ok {
		return nil, huberrors.NewNotFoundError("video", "video not found")
	}

	cp := *v

	return &cp, nil
}

func (m *mockVideoStore) UpdateEmbedding(_ context.Context, id uuid.UUID, embedding []float32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateCalls++

	if m.updateErr != nil {
		return false, m.updateErr
	}

	v, ok := m.videos[id]
	if !ok {
		return false, huberrors.NewNotFoundError("video", "video not found")
	}

	if v.Embedding != nil {
		return false, nil
	}

	v.Embedding = embedding

	return true, nil
}

func (m *mockVideoStore) ListIDsMissingEmbedding(_ context.Context, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []uuid.UUID

	for id, v := range m.videos {
		if v.Embedding == nil {
			ids = append(ids, id)
		}
	}

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	return ids, nil
}

func (m *mockVideoStore) NearestByEmbedding(
	ctx context.Context, emb []float32, region *string, minSim float64, limit int,
) ([]models.RankedResult, error) {
	m.mu.Lock()
	m.nearestCalls++
	m.mu.Unlock()

	if m.nearest != nil {
		return m.nearest(ctx, emb, region, minSim, limit)
	}

	return []models.RankedResult{}, nil
}

func (m *mockVideoStore) SearchText(ctx context.Context, keyword string, region *string, limit int) ([]models.Candidate, error) {
	m.mu.Lock()
	m.textCalls++
	m.textKeywords = append(m.textKeywords, keyword)
	m.mu.Unlock()

	if m.searchText != nil {
		return m.searchText(ctx, keyword, region, limit)
	}

	return []models.Candidate{}, nil
}

func (m *mockVideoStore) ListRecent(ctx context.Context, region *string, limit int) ([]models.Candidate, error) {
	if m.listRecent != nil {
		return m.listRecent(ctx, region, limit)
	}

	return []models.Candidate{}, nil
}

func (m *mockVideoStore) NearestCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.nearestCalls
}

func (m *mockVideoStore) TextCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.textCalls
}

type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	vec   []float32
}

func (m *mockEmbedder) Embed(context.Context, string) []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

	return m.vec
}

type mockEmbeddingClient struct {
	calls      int
	createFunc func(ctx context.Context, input string) ([]float32, error)
}

func (m *mockEmbeddingClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.calls++

	if m.createFunc != nil {
		return m.createFunc(ctx, input)
	}

	return validVector(), nil
}

func validVector() []float32 {
	v := make([]float32, models.EmbeddingDimension)
	v[0] = 1

	return v
}

// makeCandidates returns n candidates with distinct URLs, newest first.
func makeCandidates(n int) []models.Candidate {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candidate, n)

	for i := range out {
		out[i] = models.Candidate{
			ID:        uuid.New(),
			URL:       fmt.Sprintf("https://videos.example.com/%d.mp4", i),
			Title:     fmt.Sprintf("Sorry %d", i),
			Tags:      []string{"sorry"},
			Region:    "TH",
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		}
	}

	return out
}

func ranked(candidates []models.Candidate, similarities ...float64) []models.RankedResult {
	out := make([]models.RankedResult, len(similarities))

	for i, s := range similarities {
		sim := s
		out[i] = models.RankedResult{Candidate: candidates[i], Similarity: &sim}
	}

	return out
}

func similarities(results []models.RankedResult) []float64 {
	out := make([]float64, len(results))

	for i, r := range results {
		if r.Similarity != nil {
			out[i] = *r.Similarity
		}
	}

	return out
}

type recordingSearchMetrics struct {
	mu       sync.Mutex
	paths    []string
	failures []string
}

func (m *recordingSearchMetrics) RecordSearch(_ context.Context, path string, _ int, _ time.Duration) {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	m.mu.Unlock()
}

func (m *recordingSearchMetrics) RecordStageFailure(_ context.Context, stage string) {
	m.mu.Lock()
	m.failures = append(m.failures, stage)
	m.mu.Unlock()
}
