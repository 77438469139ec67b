package repository

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/signclips/hub/internal/huberrors"
	"github.com/signclips/hub/internal/models"
	"github.com/signclips/hub/pkg/database"
)

func setupVideosDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("signclips"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	schema, err := os.ReadFile("../../migrations/001_videos.sql")
	require.NoError(t, err)

	setup, err := database.NewPostgresPool(ctx, connStr)
	require.NoError(t, err)

	_, err = setup.Exec(ctx, string(schema))
	require.NoError(t, err)
	setup.Close()

	db, err := database.NewPostgresPool(ctx, connStr, database.WithAfterConnect(pgxvec.RegisterTypes))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}

// axis returns a unit vector mixing the first two axes at the given angle (radians).
func axis(angle float64) []float32 {
	v := make([]float32, models.EmbeddingDimension)
	v[0] = float32(math.Cos(angle))
	v[1] = float32(math.Sin(angle))

	return v
}

type videoFixture struct {
	title     string
	tags      []string
	region    string
	status    models.VideoStatus
	embedding []float32
	createdAt time.Time
}

func insertVideo(t *testing.T, db *pgxpool.Pool, profileID uuid.UUID, f videoFixture) uuid.UUID {
	t.Helper()

	var emb any
	if f.embedding != nil {
		emb = pgvector.NewVector(f.embedding)
	}

	tags := f.tags
	if tags == nil {
		tags = []string{}
	}

	var id uuid.UUID

	err := db.QueryRow(context.Background(), `
		INSERT INTO videos (video_url, title, description, tags, region, status, uploader_id, embedding, created_at)
		VALUES ($1, $2, '', $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		"https://videos.example.com/"+uuid.NewString()+".mp4", f.title, tags, f.region, string(f.status),
		profileID, emb, f.createdAt,
	).Scan(&id)
	require.NoError(t, err)

	return id
}

func TestVideosRepository_Integration(t *testing.T) {
	db := setupVideosDB(t)
	ctx := context.Background()
	repo := NewVideosRepository(db)

	var profileID uuid.UUID
	require.NoError(t, db.QueryRow(ctx,
		`INSERT INTO profiles (display_name, role) VALUES ('Nok', 'interpreter') RETURNING id`,
	).Scan(&profileID))

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	exact := insertVideo(t, db, profileID, videoFixture{
		title: "Sorry", tags: []string{"apology"}, region: "TH", status: models.VideoStatusVerified,
		embedding: axis(0), createdAt: base,
	})
	near := insertVideo(t, db, profileID, videoFixture{
		title: "Excuse me", tags: []string{"polite"}, region: "TH", status: models.VideoStatusVerified,
		embedding: axis(math.Pi / 4), createdAt: base.Add(time.Hour),
	})
	insertVideo(t, db, profileID, videoFixture{
		title: "Banana", region: "TH", status: models.VideoStatusVerified,
		embedding: axis(math.Pi / 2), createdAt: base.Add(2 * time.Hour),
	})
	insertVideo(t, db, profileID, videoFixture{
		title: "Sorry (pending)", region: "TH", status: models.VideoStatusPending,
		embedding: axis(0), createdAt: base.Add(3 * time.Hour),
	})
	japan := insertVideo(t, db, profileID, videoFixture{
		title: "Sumimasen", tags: []string{"SORRY"}, region: "JP", status: models.VideoStatusVerified,
		createdAt: base.Add(4 * time.Hour),
	})

	t.Run("nearest applies threshold, status and order", func(t *testing.T) {
		results, err := repo.NearestByEmbedding(ctx, axis(0), nil, 0.3, 10)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, exact, results[0].ID)
		assert.Equal(t, near, results[1].ID)
		require.NotNil(t, results[0].Similarity)
		assert.InDelta(t, 1.0, *results[0].Similarity, 1e-4)
		assert.InDelta(t, math.Cos(math.Pi/4), *results[1].Similarity, 1e-4)
		assert.Equal(t, "Nok", results[0].Uploader.DisplayName)
	})

	t.Run("nearest respects region and limit", func(t *testing.T) {
		region := "JP"
		results, err := repo.NearestByEmbedding(ctx, axis(0), &region, 0.3, 10)
		require.NoError(t, err)
		assert.Empty(t, results)

		results, err = repo.NearestByEmbedding(ctx, axis(0), nil, 0.3, 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("text search matches title or tag case-insensitively", func(t *testing.T) {
		results, err := repo.SearchText(ctx, "sorry", nil, 10)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, japan, results[0].ID, "newest first")
		assert.Equal(t, exact, results[1].ID)

		region := "TH"
		results, err = repo.SearchText(ctx, "sorry", &region, 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, exact, results[0].ID)
	})

	t.Run("list recent returns verified videos newest first", func(t *testing.T) {
		region := "TH"
		results, err := repo.ListRecent(ctx, &region, 5)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.True(t, results[0].CreatedAt.After(results[1].CreatedAt))
		assert.True(t, results[1].CreatedAt.After(results[2].CreatedAt))
	})

	t.Run("embedding is written only while missing", func(t *testing.T) {
		ids, err := repo.ListIDsMissingEmbedding(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{japan}, ids)

		written, err := repo.UpdateEmbedding(ctx, japan, axis(0))
		require.NoError(t, err)
		assert.True(t, written)

		written, err = repo.UpdateEmbedding(ctx, japan, axis(1))
		require.NoError(t, err)
		assert.False(t, written)

		video, err := repo.GetByID(ctx, japan)
		require.NoError(t, err)
		require.Len(t, video.Embedding, models.EmbeddingDimension)
		assert.InDelta(t, 1.0, video.Embedding[0], 1e-6)

		count, err := repo.CountMissingEmbedding(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("missing video", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		require.ErrorIs(t, err, huberrors.ErrNotFound)

		_, err = repo.UpdateEmbedding(ctx, uuid.New(), axis(0))
		require.ErrorIs(t, err, huberrors.ErrNotFound)
	})

	t.Run("advisory lock is exclusive", func(t *testing.T) {
		lock, err := database.TryAdvisoryLock(ctx, db, 42)
		require.NoError(t, err)
		require.NotNil(t, lock)

		other, err := database.TryAdvisoryLock(ctx, db, 42)
		require.NoError(t, err)
		assert.Nil(t, other)

		require.NoError(t, lock.Release(ctx))

		again, err := database.TryAdvisoryLock(ctx, db, 42)
		require.NoError(t, err)
		require.NotNil(t, again)
		require.NoError(t, again.Release(ctx))
	})
}
