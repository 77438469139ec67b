// backfill-embeddings generates the missing embedding of every video, one video at a time,
// so videos ingested before vector search existed become reachable through the vector path.
// Running it twice is safe: the second run finds nothing to do.
//
// Usage:
//
//	backfill-embeddings [-dry-run] [-limit N]
//
// Environment variables:
//   - DATABASE_URL: PostgreSQL connection string (required)
//   - EMBEDDING_PROVIDER, EMBEDDING_MODEL, EMBEDDING_PROVIDER_API_KEY: embedding provider (required unless -dry-run)
//   - BACKFILL_RATE_LIMIT: videos per second (default: unlimited)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/signclips/hub/internal/config"
	"github.com/signclips/hub/internal/embeddings"
	"github.com/signclips/hub/internal/jobs"
	"github.com/signclips/hub/internal/observability"
	"github.com/signclips/hub/internal/repository"
	"github.com/signclips/hub/internal/service"
	"github.com/signclips/hub/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1

	// backfillLockKey serializes backfill runs across hosts (pg_try_advisory_lock).
	backfillLockKey int64 = 0x7369676e626b6631
)

func main() {
	os.Exit(run())
}

func run() int {
	dryRun := flag.Bool("dry-run", false, "list videos missing an embedding without generating any")
	limit := flag.Int("limit", 0, "maximum number of videos to process (0 = all)")
	flag.Parse()

	cfg, err := config.LoadBackfill()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	slog.SetDefault(observability.NewLogger(os.Stdout, cfg.LogLevel))

	if *limit < 0 {
		slog.Error("-limit must be >= 0", "limit", *limit)

		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := embeddings.NewProviderFromConfig(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create embedding provider", "error", err)

		return exitFailure
	}

	if provider == nil && !*dryRun {
		slog.Error("EMBEDDING_PROVIDER is required")

		return exitFailure
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithAfterConnect(pgxvec.RegisterTypes))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	lock, err := database.TryAdvisoryLock(ctx, db, backfillLockKey)
	if err != nil {
		slog.Error("Failed to take backfill lock", "error", err)

		return exitFailure
	}

	if lock == nil {
		slog.Info("Another backfill is running, skipping")

		return exitSuccess
	}

	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			slog.Warn("Failed to release backfill lock", "error", err)
		}
	}()

	repo := repository.NewVideosRepository(db)
	embeddingService := service.NewVideoEmbeddingService(repo, provider, cfg.ExternalCallTimeout, slog.Default())

	missing, err := repo.CountMissingEmbedding(ctx)
	if err != nil {
		slog.Error("Failed to count videos missing an embedding", "error", err)

		return exitFailure
	}

	slog.Info("Starting backfill", "missing", missing, "limit", *limit, "dry_run", *dryRun)

	job := jobs.NewEmbeddingBackfillJob(repo, embeddingService, jobs.BackfillOptions{
		Limit:         *limit,
		RatePerSecond: cfg.BackfillRateLimit,
		DryRun:        *dryRun,
	}, slog.Default())

	stats, err := job.Run(ctx)
	if err != nil {
		slog.Error("Backfill failed", "error", err)

		return exitFailure
	}

	slog.Info("Backfill complete",
		"listed", stats.Listed, "embedded", stats.Embedded, "skipped", stats.Skipped, "failed", stats.Failed,
		"dry_run", *dryRun)

	fmt.Printf("Listed %d, embedded %d, skipped %d, failed %d video(s).\n",
		stats.Listed, stats.Embedded, stats.Skipped, stats.Failed)

	return exitSuccess
}
