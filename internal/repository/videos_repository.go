// Package repository provides data access for videos.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/signclips/hub/internal/huberrors"
	"github.com/signclips/hub/internal/models"
)

// errEmbeddingScanInvalidType is returned when Scan receives a type other than []byte.
var errEmbeddingScanInvalidType = errors.New("embedding: expected []byte")

// nullableEmbedding scans a vector column that may be NULL without panicking (pgvector.Vector.Scan panics on empty/NULL).
type nullableEmbedding []float32

func (n *nullableEmbedding) Scan(src any) error {
	if src == nil {
		*n = nil

		return nil
	}

	buf, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("%w: got %T", errEmbeddingScanInvalidType, src)
	}

	if len(buf) == 0 {
		*n = nil

		return nil
	}

	var vec pgvector.Vector

	if err := vec.DecodeBinary(buf); err != nil {
		return fmt.Errorf("embedding decode: %w", err)
	}

	*n = vec.Slice()

	return nil
}

// uploaderJSON is the uploader projection selected alongside every video. The profile
// relation may come back as a single object or as a one-element array.
const uploaderJSON = `(
	SELECT json_build_object('avatar_url', p.avatar_url, 'display_name', p.display_name, 'role', p.role)
	FROM profiles p WHERE p.id = v.uploader_id
) AS uploader`

const videoColumns = `v.id, v.video_url, v.title, v.description, v.tags, v.region, v.status, v.created_at, ` + uploaderJSON

// VideosRepository handles data access for videos.
type VideosRepository struct {
	db *pgxpool.Pool
}

// NewVideosRepository creates a new videos repository.
func NewVideosRepository(db *pgxpool.Pool) *VideosRepository {
	return &VideosRepository{db: db}
}

// decodeUploader normalizes the uploader relation into one summary. It accepts an object,
// an array (first element wins) or NULL.
func decodeUploader(raw []byte) (models.UploaderSummary, error) {
	var summary models.UploaderSummary

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return summary, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var many []models.UploaderSummary
		if err := json.Unmarshal([]byte(trimmed), &many); err != nil {
			return summary, fmt.Errorf("decode uploader list: %w", err)
		}

		if len(many) > 0 {
			summary = many[0]
		}

		return summary, nil
	}

	if err := json.Unmarshal([]byte(trimmed), &summary); err != nil {
		return summary, fmt.Errorf("decode uploader: %w", err)
	}

	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner, extra ...any) (models.Candidate, error) {
	var (
		c        models.Candidate
		status   string
		uploader []byte
	)

	dest := append([]any{
		&c.ID, &c.URL, &c.Title, &c.Description, &c.Tags, &c.Region, &status, &c.CreatedAt, &uploader,
	}, extra...)

	if err := row.Scan(dest...); err != nil {
		return c, err
	}

	summary, err := decodeUploader(uploader)
	if err != nil {
		return c, err
	}

	c.Uploader = summary

	if c.Tags == nil {
		c.Tags = []string{}
	}

	return c, nil
}

// escapeLike escapes LIKE wildcards so the keyword matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

	return r.Replace(s)
}

// buildSearchTextQuery builds the keyword query over verified videos. The keyword matches
// title, description or any tag, case-insensitively.
func buildSearchTextQuery(keyword string, region *string, limit int) (query string, args []any, err error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "", nil, huberrors.NewValidationError("query", "query parameter is required")
	}

	if limit <= 0 {
		return "", nil, huberrors.NewValidationError("limit", "limit must be positive")
	}

	pattern := "%" + escapeLike(keyword) + "%"
	args = []any{pattern, string(models.VideoStatusVerified)}
	argCount := 3

	conditions := []string{
		"v.status = $2",
		`(v.title ILIKE $1 OR v.description ILIKE $1 OR EXISTS (
			SELECT 1 FROM unnest(v.tags) AS tag WHERE tag ILIKE $1
		))`,
	}

	if region != nil && *region != "" {
		conditions = append(conditions, fmt.Sprintf("v.region = $%d", argCount))
		args = append(args, *region)
		argCount++
	}

	query = `SELECT ` + videoColumns + ` FROM videos v WHERE ` + strings.Join(conditions, " AND ") +
		fmt.Sprintf(" ORDER BY v.created_at DESC, v.id LIMIT $%d", argCount)
	args = append(args, limit)

	return query, args, nil
}

// buildNearestQuery builds the cosine-distance query. Rows with similarity below minSimilarity are excluded.
func buildNearestQuery(embedding []float32, region *string, minSimilarity float64, limit int) (query string, args []any) {
	args = []any{pgvector.NewVector(embedding), string(models.VideoStatusVerified), minSimilarity}
	argCount := 4

	conditions := []string{
		"v.embedding IS NOT NULL",
		"v.status = $2",
		"(1 - (v.embedding <=> $1)) >= $3",
	}

	if region != nil && *region != "" {
		conditions = append(conditions, fmt.Sprintf("v.region = $%d", argCount))
		args = append(args, *region)
		argCount++
	}

	query = `SELECT ` + videoColumns + `, (1 - (v.embedding <=> $1)) AS similarity FROM videos v WHERE ` +
		strings.Join(conditions, " AND ") +
		fmt.Sprintf(" ORDER BY v.embedding <=> $1, v.id LIMIT $%d", argCount)
	args = append(args, limit)

	return query, args
}

// NearestByEmbedding returns verified videos closest to embedding by cosine distance, with
// similarity = 1 - distance, keeping only rows with similarity >= minSimilarity.
func (r *VideosRepository) NearestByEmbedding(
	ctx context.Context, embedding []float32, region *string, minSimilarity float64, limit int,
) ([]models.RankedResult, error) {
	if !models.ValidEmbedding(embedding) {
		return nil, huberrors.NewValidationError("embedding",
			fmt.Sprintf("embedding must have %d dimensions, got %d", models.EmbeddingDimension, len(embedding)))
	}

	if limit <= 0 {
		return []models.RankedResult{}, nil
	}

	query, args := buildNearestQuery(embedding, region, minSimilarity, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("nearest videos: %w", err)
	}
	defer rows.Close()

	results := []models.RankedResult{}

	for rows.Next() {
		var similarity float64

		c, err := scanCandidate(rows, &similarity)
		if err != nil {
			return nil, fmt.Errorf("scan nearest video: %w", err)
		}

		results = append(results, models.RankedResult{Candidate: c, Similarity: &similarity})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nearest videos: %w", err)
	}

	return results, nil
}

// SearchText returns verified videos whose title, description or tags contain keyword, newest first.
func (r *VideosRepository) SearchText(
	ctx context.Context, keyword string, region *string, limit int,
) ([]models.Candidate, error) {
	query, args, err := buildSearchTextQuery(keyword, region, limit)
	if err != nil {
		return nil, err
	}

	return r.queryCandidates(ctx, "search videos", query, args...)
}

// ListRecent returns the newest verified videos, optionally in one region.
func (r *VideosRepository) ListRecent(ctx context.Context, region *string, limit int) ([]models.Candidate, error) {
	args := []any{string(models.VideoStatusVerified)}
	query := `SELECT ` + videoColumns + ` FROM videos v WHERE v.status = $1`

	if region != nil && *region != "" {
		query += " AND v.region = $2"

		args = append(args, *region)
	}

	query += fmt.Sprintf(" ORDER BY v.created_at DESC, v.id LIMIT $%d", len(args)+1)
	args = append(args, limit)

	return r.queryCandidates(ctx, "list recent videos", query, args...)
}

func (r *VideosRepository) queryCandidates(ctx context.Context, op, query string, args ...any) ([]models.Candidate, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}

	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}

		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterating: %w", op, err)
	}

	return candidates, nil
}

// GetByID retrieves a single video (any status) including its embedding.
func (r *VideosRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	query := `SELECT ` + videoColumns + `, v.embedding FROM videos v WHERE v.id = $1`

	var (
		video    models.Video
		status   string
		uploader []byte
		emb      nullableEmbedding
	)

	err := r.db.QueryRow(ctx, query, id).Scan(
		&video.ID, &video.URL, &video.Title, &video.Description, &video.Tags, &video.Region,
		&status, &video.CreatedAt, &uploader, &emb,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("video", "video not found")
		}

		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	summary, err := decodeUploader(uploader)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	video.Status = models.VideoStatus(status)
	video.Uploader = summary
	video.Embedding = emb

	return &video, nil
}

// ListIDsMissingEmbedding returns IDs of videos (any status) whose embedding is NULL, oldest first.
// limit <= 0 returns all of them.
func (r *VideosRepository) ListIDsMissingEmbedding(ctx context.Context, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM videos WHERE embedding IS NULL ORDER BY created_at, id`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"

		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos missing embedding: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan video id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videos missing embedding: %w", err)
	}

	return ids, nil
}

// CountMissingEmbedding returns how many videos have no embedding.
func (r *VideosRepository) CountMissingEmbedding(ctx context.Context) (int64, error) {
	var count int64

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM videos WHERE embedding IS NULL`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count videos missing embedding: %w", err)
	}

	return count, nil
}

// UpdateEmbedding stores embedding for a video only while its embedding is still NULL.
// It reports whether the row was written; false means another writer got there first.
// A missing video returns huberrors.NotFoundError.
func (r *VideosRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) (bool, error) {
	if !models.ValidEmbedding(embedding) {
		return false, huberrors.NewValidationError("embedding",
			fmt.Sprintf("embedding must have %d dimensions, got %d", models.EmbeddingDimension, len(embedding)))
	}

	result, err := r.db.Exec(ctx,
		`UPDATE videos SET embedding = $1, updated_at = $2 WHERE id = $3 AND embedding IS NULL`,
		pgvector.NewVector(embedding), time.Now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update video embedding: %w", err)
	}

	if result.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check video: %w", err)
	}

	if !exists {
		return false, huberrors.NewNotFoundError("video", "video not found")
	}

	return false, nil
}
