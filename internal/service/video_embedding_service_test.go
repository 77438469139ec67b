package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signclips/hub/internal/huberrors"
	"github.com/signclips/hub/internal/models"
)

func seedVideo(store *mockVideoStore, title string) uuid.UUID {
	id := uuid.New()
	store.videos[id] = &models.Video{
		ID:     id,
		URL:    "https://videos.example.com/" + id.String() + ".mp4",
		Title:  title,
		Tags:   []string{"greeting"},
		Status: models.VideoStatusVerified,
	}

	return id
}

func TestVideoEmbeddingService_GenerateForVideo(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a valid vector", func(t *testing.T) {
		store := newMockVideoStore()
		id := seedVideo(store, "Hello")

		var input string

		client := &mockEmbeddingClient{createFunc: func(_ context.Context, text string) ([]float32, error) {
			input = text

			return validVector(), nil
		}}
		svc := NewVideoEmbeddingService(store, client, time.Second, nil)

		written, err := svc.GenerateForVideo(ctx, id)

		require.NoError(t, err)
		assert.True(t, written)
		assert.Equal(t, "Hello\ngreeting", input)
		assert.Len(t, store.videos[id].Embedding, models.EmbeddingDimension)
	})

	t.Run("already embedded skips the provider", func(t *testing.T) {
		store := newMockVideoStore()
		id := seedVideo(store, "Hello")
		store.videos[id].Embedding = validVector()
		client := &mockEmbeddingClient{}
		svc := NewVideoEmbeddingService(store, client, time.Second, nil)

		written, err := svc.GenerateForVideo(ctx, id)

		require.NoError(t, err)
		assert.False(t, written)
		assert.Equal(t, 0, client.calls)
		assert.Equal(t, 0, store.updateCalls)
	})

	t.Run("unknown video is not found", func(t *testing.T) {
		svc := NewVideoEmbeddingService(newMockVideoStore(), &mockEmbeddingClient{}, time.Second, nil)

		_, err := svc.GenerateForVideo(ctx, uuid.New())

		require.ErrorIs(t, err, huberrors.ErrNotFound)
	})

	t.Run("wrong dimension is rejected", func(t *testing.T) {
		store := newMockVideoStore()
		id := seedVideo(store, "Hello")
		client := &mockEmbeddingClient{createFunc: func(context.Context, string) ([]float32, error) {
			return make([]float32, 1536), nil
		}}
		svc := NewVideoEmbeddingService(store, client, time.Second, nil)

		_, err := svc.GenerateForVideo(ctx, id)

		require.ErrorIs(t, err, ErrInvalidEmbedding)
		assert.Nil(t, store.videos[id].Embedding)
	})

	t.Run("provider error is returned", func(t *testing.T) {
		store := newMockVideoStore()
		id := seedVideo(store, "Hello")
		providerErr := errors.New("rate limited")
		client := &mockEmbeddingClient{createFunc: func(context.Context, string) ([]float32, error) {
			return nil, providerErr
		}}
		svc := NewVideoEmbeddingService(store, client, time.Second, nil)

		_, err := svc.GenerateForVideo(ctx, id)

		require.ErrorIs(t, err, providerErr)
	})

	t.Run("video without text", func(t *testing.T) {
		store := newMockVideoStore()
		id := seedVideo(store, "  ")
		store.videos[id].Tags = nil
		svc := NewVideoEmbeddingService(store, &mockEmbeddingClient{}, time.Second, nil)

		_, err := svc.GenerateForVideo(ctx, id)

		require.ErrorIs(t, err, ErrEmptyEmbeddingText)
	})

	t.Run("store error is returned", func(t *testing.T) {
		store := newMockVideoStore()
		id := seedVideo(store, "Hello")
		store.updateErr = errors.New("deadlock detected")
		svc := NewVideoEmbeddingService(store, &mockEmbeddingClient{}, time.Second, nil)

		written, err := svc.GenerateForVideo(ctx, id)

		require.Error(t, err)
		assert.False(t, written)
	})
}
