package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signclips/hub/internal/huberrors"
)

type mockEmbeddingInserter struct {
	insertCalls []insertCall
	insertErr   error
	duplicate   bool
}

type insertCall struct {
	args river.JobArgs
	opts *river.InsertOpts
}

func (m *mockEmbeddingInserter) Insert(
	_ context.Context, args river.JobArgs, opts *river.InsertOpts,
) (*rivertype.JobInsertResult, error) {
	m.insertCalls = append(m.insertCalls, insertCall{args: args, opts: opts})
	if m.insertErr != nil {
		return nil, m.insertErr
	}

	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{ID: 1}, UniqueSkippedAsDuplicate: m.duplicate}, nil
}

type recordingEmbeddingMetrics struct {
	enqueued       int64
	providerErrors []string
	outcomes       []string
	workerErrors   []string
}

func (m *recordingEmbeddingMetrics) RecordJobsEnqueued(_ context.Context, count int64) { m.enqueued += count }

func (m *recordingEmbeddingMetrics) RecordProviderError(_ context.Context, reason string) {
	m.providerErrors = append(m.providerErrors, reason)
}

func (m *recordingEmbeddingMetrics) RecordEmbeddingOutcome(_ context.Context, status string) {
	m.outcomes = append(m.outcomes, status)
}

func (m *recordingEmbeddingMetrics) RecordWorkerError(_ context.Context, reason string) {
	m.workerErrors = append(m.workerErrors, reason)
}

func (m *recordingEmbeddingMetrics) RecordEmbeddingDuration(context.Context, time.Duration, string) {}

func TestVideoEmbeddingEnqueuer_Enqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts a unique job on the embeddings queue", func(t *testing.T) {
		store := newMockVideoStore()
		id := seedVideo(store, "Hello")
		inserter := &mockEmbeddingInserter{}
		metrics := &recordingEmbeddingMetrics{}
		p := NewVideoEmbeddingEnqueuer(inserter, store, EmbeddingsQueueName, 3, metrics)

		duplicate, err := p.Enqueue(ctx, id)

		require.NoError(t, err)
		assert.False(t, duplicate)
		require.Len(t, inserter.insertCalls, 1)

		call := inserter.insertCalls[0]
		args, ok := call.args.(VideoEmbeddingArgs)
		require.True(t, ok)
		assert.Equal(t, id, args.VideoID)
		assert.Equal(t, "video_embedding", args.Kind())
		assert.Equal(t, EmbeddingsQueueName, call.opts.Queue)
		assert.Equal(t, 3, call.opts.MaxAttempts)
		assert.True(t, call.opts.UniqueOpts.ByArgs)
		assert.Equal(t, uniqueByPeriodEmbedding, call.opts.UniqueOpts.ByPeriod)
		assert.Equal(t, int64(1), metrics.enqueued)
	})

	t.Run("duplicate is reported and not counted", func(t *testing.T) {
		store := newMockVideoStore()
		id := seedVideo(store, "Hello")
		metrics := &recordingEmbeddingMetrics{}
		p := NewVideoEmbeddingEnqueuer(&mockEmbeddingInserter{duplicate: true}, store, EmbeddingsQueueName, 3, metrics)

		duplicate, err := p.Enqueue(ctx, id)

		require.NoError(t, err)
		assert.True(t, duplicate)
		assert.Equal(t, int64(0), metrics.enqueued)
	})

	t.Run("unknown video is not enqueued", func(t *testing.T) {
		inserter := &mockEmbeddingInserter{}
		p := NewVideoEmbeddingEnqueuer(inserter, newMockVideoStore(), EmbeddingsQueueName, 3, nil)

		_, err := p.Enqueue(ctx, uuid.New())

		require.ErrorIs(t, err, huberrors.ErrNotFound)
		assert.Empty(t, inserter.insertCalls)
	})

	t.Run("insert error is returned and counted", func(t *testing.T) {
		store := newMockVideoStore()
		id := seedVideo(store, "Hello")
		metrics := &recordingEmbeddingMetrics{}
		p := NewVideoEmbeddingEnqueuer(&mockEmbeddingInserter{insertErr: errors.New("db down")}, store, EmbeddingsQueueName, 3, metrics)

		_, err := p.Enqueue(ctx, id)

		require.Error(t, err)
		assert.Equal(t, []string{"enqueue_failed"}, metrics.providerErrors)
	})
}
