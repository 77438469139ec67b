package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const (
	videoEmbeddingKind = "video_embedding"
	// EmbeddingsQueueName is the River queue used for video embedding jobs.
	EmbeddingsQueueName = "embeddings"
)

// VideoEmbeddingInserter inserts embedding jobs (e.g. River client).
type VideoEmbeddingInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// VideoEmbeddingArgs is the job payload for generating and storing the embedding of one video.
// Uniqueness is by VideoID so repeated requests for the same video do not create duplicate jobs.
type VideoEmbeddingArgs struct {
	VideoID uuid.UUID `json:"video_id" river:"unique"`
}

// Kind returns the River job kind.
func (VideoEmbeddingArgs) Kind() string { return videoEmbeddingKind }

var _ river.JobArgs = VideoEmbeddingArgs{}
