package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/signclips/hub/internal/api/response"
	"github.com/signclips/hub/internal/huberrors"
)

// VideoEmbeddingEnqueuer schedules embedding generation for one video.
type VideoEmbeddingEnqueuer interface {
	Enqueue(ctx context.Context, videoID uuid.UUID) (bool, error)
}

// VideoEmbeddingHandler handles ingestion-time embedding requests.
type VideoEmbeddingHandler struct {
	enqueuer VideoEmbeddingEnqueuer
}

// NewVideoEmbeddingHandler creates a new video embedding handler.
func NewVideoEmbeddingHandler(enqueuer VideoEmbeddingEnqueuer) *VideoEmbeddingHandler {
	return &VideoEmbeddingHandler{enqueuer: enqueuer}
}

// EnqueueEmbeddingResponse is returned with 202 Accepted.
type EnqueueEmbeddingResponse struct {
	VideoID   uuid.UUID `json:"video_id"`
	Duplicate bool      `json:"duplicate"`
}

// Enqueue handles POST /v1/videos/{id}/embedding.
func (h *VideoEmbeddingHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid video ID")

		return
	}

	duplicate, err := h.enqueuer.Enqueue(r.Context(), id)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			response.RespondNotFound(w, "Video not found")

			return
		}

		slog.ErrorContext(r.Context(), "enqueue video embedding failed", "video_id", id, "error", err)
		response.RespondInternalServerError(w, "Failed to enqueue embedding job")

		return
	}

	response.RespondJSON(w, http.StatusAccepted, EnqueueEmbeddingResponse{VideoID: id, Duplicate: duplicate})
}
