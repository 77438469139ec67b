package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/signclips/hub/internal/huberrors"
	"github.com/signclips/hub/internal/models"
)

type mockSearchService struct {
	calls   []models.SearchQuery
	results []models.RankedResult
}

func (m *mockSearchService) Search(_ context.Context, q models.SearchQuery) []models.RankedResult {
	m.calls = append(m.calls, q)

	if m.results == nil {
		return []models.RankedResult{}
	}

	return m.results
}

func sampleResults() []models.RankedResult {
	sim := 0.9

	return []models.RankedResult{
		{Candidate: models.Candidate{ID: uuid.New(), URL: "https://videos.example.com/a.mp4", Title: "Sorry"}, Similarity: &sim},
		{Candidate: models.Candidate{ID: uuid.New(), URL: "https://videos.example.com/b.mp4", Title: "Hello"}},
	}
}

func TestSearchHandler_Search(t *testing.T) {
	t.Run("POST maps body to query", func(t *testing.T) {
		svc := &mockSearchService{results: sampleResults()}
		h := NewSearchHandler(svc)

		body := `{"query": "how do I sign sorry", "region": "TH", "limit": 5, "conversational": true}`
		rec := httptest.NewRecorder()
		h.Search(rec, httptest.NewRequest(http.MethodPost, "/v1/videos/search", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, svc.calls, 1)

		q := svc.calls[0]
		assert.Equal(t, "how do I sign sorry", q.Query)
		require.NotNil(t, q.Region)
		assert.Equal(t, "TH", *q.Region)
		assert.Equal(t, 5, q.Limit)
		assert.True(t, q.Conversational)

		var resp struct {
			Results []map[string]any `json:"results"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Results, 2)
		assert.Equal(t, "https://videos.example.com/a.mp4", resp.Results[0]["video_url"])
		assert.InDelta(t, 0.9, resp.Results[0]["similarity"], 1e-9)
		assert.NotContains(t, resp.Results[1], "similarity")
	})

	t.Run("empty result is an empty array", func(t *testing.T) {
		h := NewSearchHandler(&mockSearchService{})

		rec := httptest.NewRecorder()
		h.Search(rec, httptest.NewRequest(http.MethodPost, "/v1/videos/search", strings.NewReader(`{"query": "zzz"}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"results": []}`, rec.Body.String())
	})

	t.Run("empty body browses", func(t *testing.T) {
		svc := &mockSearchService{}
		h := NewSearchHandler(svc)

		rec := httptest.NewRecorder()
		h.Search(rec, httptest.NewRequest(http.MethodPost, "/v1/videos/search", http.NoBody))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, svc.calls, 1)
		assert.Empty(t, svc.calls[0].Query)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := &mockSearchService{}
		rec := httptest.NewRecorder()
		NewSearchHandler(svc).Search(rec, httptest.NewRequest(http.MethodPost, "/v1/videos/search", strings.NewReader(`{"query":`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, svc.calls)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewSearchHandler(&mockSearchService{}).Search(rec,
			httptest.NewRequest(http.MethodPost, "/v1/videos/search", strings.NewReader(`{"q": "sorry"}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid region", func(t *testing.T) {
		svc := &mockSearchService{}
		rec := httptest.NewRecorder()
		NewSearchHandler(svc).Search(rec,
			httptest.NewRequest(http.MethodPost, "/v1/videos/search", strings.NewReader(`{"query": "sorry", "region": "Thailand!"}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		assert.Empty(t, svc.calls)
	})

	t.Run("blank region is ignored", func(t *testing.T) {
		svc := &mockSearchService{}
		rec := httptest.NewRecorder()
		NewSearchHandler(svc).Search(rec,
			httptest.NewRequest(http.MethodPost, "/v1/videos/search", strings.NewReader(`{"query": "sorry", "region": " "}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, svc.calls[0].Region)
	})
}

func TestSearchHandler_SearchGet(t *testing.T) {
	svc := &mockSearchService{}
	h := NewSearchHandler(svc)

	rec := httptest.NewRecorder()
	h.SearchGet(rec, httptest.NewRequest(http.MethodGet, "/v1/videos/search?query=sorry&region=TH&limit=5&conversational=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.calls, 1)
	assert.Equal(t, "sorry", svc.calls[0].Query)
	assert.Equal(t, 5, svc.calls[0].Limit)
	assert.True(t, svc.calls[0].Conversational)

	rec = httptest.NewRecorder()
	h.SearchGet(rec, httptest.NewRequest(http.MethodGet, "/v1/videos/search?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)

	return args.Bool(0), args.Error(1)
}

func serveEnqueue(h *VideoEmbeddingHandler, id string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Post("/v1/videos/{id}/embedding", h.Enqueue)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/videos/"+id+"/embedding", nil))

	return rec
}

func TestVideoEmbeddingHandler_Enqueue(t *testing.T) {
	id := uuid.New()

	t.Run("accepted", func(t *testing.T) {
		enq := &mockEnqueuer{}
		enq.On("Enqueue", mock.Anything, id).Return(true, nil).Once()

		rec := serveEnqueue(NewVideoEmbeddingHandler(enq), id.String())

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"video_id": "`+id.String()+`", "duplicate": true}`, rec.Body.String())
		enq.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		enq := &mockEnqueuer{}
		rec := serveEnqueue(NewVideoEmbeddingHandler(enq), "not-a-uuid")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		enq.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("video not found", func(t *testing.T) {
		enq := &mockEnqueuer{}
		enq.On("Enqueue", mock.Anything, id).Return(false, huberrors.NewNotFoundError("video", "video not found"))

		rec := serveEnqueue(NewVideoEmbeddingHandler(enq), id.String())

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("queue failure", func(t *testing.T) {
		enq := &mockEnqueuer{}
		enq.On("Enqueue", mock.Anything, id).Return(false, errors.New("db down"))

		rec := serveEnqueue(NewVideoEmbeddingHandler(enq), id.String())

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(context.Context) error { return m.err }

func TestHealthHandler_Check(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(mockPinger{}).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(mockPinger{err: errors.New("down")}).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(nil).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
