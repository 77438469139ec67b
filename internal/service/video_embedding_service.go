package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/signclips/hub/internal/models"
)

// Embedding generation errors.
var (
	ErrInvalidEmbedding   = errors.New("embedding has wrong dimension")
	ErrEmptyEmbeddingText = errors.New("video has no text to embed")
)

// VideoEmbeddingStore is the subset of the videos repository needed to embed one video.
type VideoEmbeddingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) (bool, error)
}

// EmbeddingClient generates embedding vectors for text.
// Implemented by googleai.Client, openai.Client and embeddings.CompatibleClient.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// VideoEmbeddingService generates and stores the embedding of a single video. It is shared by the
// backfill job and the ingestion-time worker. Unlike the search path it returns errors.
type VideoEmbeddingService struct {
	store   VideoEmbeddingStore
	client  EmbeddingClient
	timeout time.Duration
	logger  *slog.Logger
}

// NewVideoEmbeddingService creates a VideoEmbeddingService.
func NewVideoEmbeddingService(
	store VideoEmbeddingStore, client EmbeddingClient, timeout time.Duration, logger *slog.Logger,
) *VideoEmbeddingService {
	if logger == nil {
		logger = slog.Default()
	}

	if timeout <= 0 {
		timeout = defaultModelCallTimeout
	}

	return &VideoEmbeddingService{store: store, client: client, timeout: timeout, logger: logger}
}

// GetVideo returns the video or huberrors.NotFoundError.
func (s *VideoEmbeddingService) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	video, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}

	return video, nil
}

// GenerateForVideo embeds the video's title, description and tags and stores the vector if the
// video still has none. It reports whether a vector was written; false with a nil error means
// the video was already embedded, so no provider call was made or a concurrent writer won.
func (s *VideoEmbeddingService) GenerateForVideo(ctx context.Context, id uuid.UUID) (bool, error) {
	video, err := s.GetVideo(ctx, id)
	if err != nil {
		return false, err
	}

	if video.Embedding != nil {
		s.logger.DebugContext(ctx, "embedding: already present", "video_id", id)

		return false, nil
	}

	text := video.EmbeddingText()
	if text == "" {
		return false, ErrEmptyEmbeddingText
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vec, err := s.client.CreateEmbedding(callCtx, text)
	if err != nil {
		return false, fmt.Errorf("create embedding: %w", err)
	}

	if !models.ValidEmbedding(vec) {
		return false, fmt.Errorf("%w: got %d, want %d", ErrInvalidEmbedding, len(vec), models.EmbeddingDimension)
	}

	written, err := s.store.UpdateEmbedding(ctx, id, vec)
	if err != nil {
		return false, fmt.Errorf("store embedding: %w", err)
	}

	if !written {
		s.logger.InfoContext(ctx, "embedding: concurrent writer stored first", "video_id", id)
	}

	return written, nil
}
