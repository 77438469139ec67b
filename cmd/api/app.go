package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/signclips/hub/internal/api/handlers"
	"github.com/signclips/hub/internal/api/middleware"
	"github.com/signclips/hub/internal/config"
	"github.com/signclips/hub/internal/embeddings"
	"github.com/signclips/hub/internal/googleai"
	"github.com/signclips/hub/internal/jobs"
	"github.com/signclips/hub/internal/observability"
	"github.com/signclips/hub/internal/openai"
	"github.com/signclips/hub/internal/repository"
	"github.com/signclips/hub/internal/service"
	"github.com/signclips/hub/internal/workers"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	redis          *embeddings.RedisCache
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

const (
	riverQueueDepthInterval = 15 * time.Second
	maxRequestBodyBytes     = 64 << 10
	redisPingTimeout        = 3 * time.Second
)

// setupMetrics creates the meter provider and hub metrics when metrics are enabled.
// When NewMeterProvider returns nil (unsupported or disabled exporter), everything is nil.
func setupMetrics(cfg *config.Config) (*sdkmetric.MeterProvider, http.Handler, *observability.Metrics, error) {
	mp, handler, err := observability.NewMeterProvider(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	if mp == nil {
		return nil, nil, nil, nil
	}

	metrics, err := observability.NewMetrics(mp.Meter(observability.MeterScope))
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), mp); err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	return mp, handler, metrics, nil
}

// newTextGenerator returns the model used for query normalization and reranking,
// or nil when LLM_PROVIDER is empty.
func newTextGenerator(ctx context.Context, cfg *config.Config) (service.TextGenerator, error) {
	switch cfg.LLMProvider {
	case "":
		return nil, nil
	case config.ProviderGoogle:
		client, err := googleai.NewClient(ctx, cfg.LLMAPIKey, googleai.WithGenerateModel(cfg.LLMModel))
		if err != nil {
			return nil, fmt.Errorf("create google generation client: %w", err)
		}

		return client, nil
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.LLMAPIKey, openai.WithChatModel(cfg.LLMModel)), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}

// newSharedCache connects to Redis when REDIS_URL is set. A connection failure disables the
// shared cache instead of failing startup; the local cache and provider still serve queries.
func newSharedCache(cfg *config.Config, namespace string) *embeddings.RedisCache {
	if cfg.RedisURL == "" {
		return nil
	}

	rc, err := embeddings.NewRedisCache(cfg.RedisURL, namespace, cfg.EmbeddingCacheTTL)
	if err != nil {
		slog.Warn("shared embedding cache disabled", "error", err)

		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := rc.Ping(ctx); err != nil {
		slog.Warn("shared embedding cache disabled: redis unreachable", "error", err)
		rc.Close()

		return nil
	}

	return rc
}

// components groups the optional metric collectors so nil metrics become nil interfaces.
type components struct {
	search     observability.SearchMetrics
	embeddings observability.EmbeddingMetrics
	cache      observability.CacheMetrics
	api        observability.APIMetrics
}

func newComponents(m *observability.Metrics) components {
	if m == nil {
		return components{}
	}

	return components{search: m.Search, embeddings: m.Embeddings, cache: m.Cache, api: m.API}
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(cfg *config.Config, db *pgxpool.Pool) (app *App, err error) {
	var (
		meterProvider  *sdkmetric.MeterProvider
		metricsHandler http.Handler
		metrics        *observability.Metrics
		tracerProvider *sdktrace.TracerProvider
		sharedCache    *embeddings.RedisCache
	)

	defer func() {
		if err == nil {
			return
		}

		if sharedCache != nil {
			sharedCache.Close()
		}

		if obsErr := shutdownObservability(context.Background(), tracerProvider, meterProvider); obsErr != nil {
			slog.Error("shutdown observability after startup error", "error", obsErr)
		}
	}()

	if cfg.OtelMetricsExporter == "" {
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		meterProvider, metricsHandler, metrics, err = setupMetrics(cfg)
		if err != nil {
			return nil, err
		}
	}

	if cfg.OtelTracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tracerProvider, err = observability.NewTracerProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("create tracer provider: %w", err)
		}
	}

	if tracerProvider != nil {
		otel.SetTracerProvider(tracerProvider)
	}

	if meterProvider != nil {
		otel.SetMeterProvider(meterProvider)
	}

	m := newComponents(metrics)
	ctx := context.Background()

	provider, err := embeddings.NewProviderFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	generator, err := newTextGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	videosRepo := repository.NewVideosRepository(db)

	params := service.SearchServiceParams{
		Vector:              service.NewVectorSource(videosRepo, cfg.MinSimilarity(), cfg.ExternalCallTimeout, m.search, slog.Default()),
		Text:                service.NewTextSource(videosRepo, cfg.ExternalCallTimeout, m.search, slog.Default()),
		Recent:              videosRepo,
		CandidateMultiplier: cfg.SearchCandidateMultiplier,
		ParallelCandidates:  cfg.SearchParallelCandidates,
		Metrics:             m.search,
		Logger:              slog.Default(),
	}

	if provider != nil {
		localCache, err := embeddings.NewLocalCache(cfg.SearchQueryCacheSize)
		if err != nil {
			return nil, err
		}

		embedderParams := embeddings.EmbedderParams{
			Provider:     provider,
			Timeout:      cfg.ExternalCallTimeout,
			Local:        localCache,
			CacheMetrics: m.cache,
			Logger:       slog.Default(),
		}

		sharedCache = newSharedCache(cfg, embeddings.CacheNamespace(cfg.EmbeddingProvider, provider))
		if sharedCache != nil {
			embedderParams.Shared = sharedCache
		}

		params.Embedder = embeddings.NewEmbedder(embedderParams)
	} else {
		slog.Warn("vector search disabled (EMBEDDING_PROVIDER empty)")
	}

	if generator != nil {
		params.Reranker = service.NewReranker(service.RerankerParams{
			Generator: generator,
			Timeout:   cfg.ExternalCallTimeout,
			Metrics:   m.search,
			Logger:    slog.Default(),
		})
		params.Normalizer = service.NewQueryNormalizer(generator, cfg.ExternalCallTimeout, slog.Default())
	} else {
		slog.Warn("reranking and query normalization disabled (LLM_PROVIDER empty)")
	}

	searchHandler := handlers.NewSearchHandler(service.NewSearchService(params))

	var (
		riverClient      *river.Client[pgx.Tx]
		embeddingHandler *handlers.VideoEmbeddingHandler
	)

	if provider != nil {
		embeddingService := service.NewVideoEmbeddingService(videosRepo, provider, cfg.ExternalCallTimeout, slog.Default())

		riverWorkers := river.NewWorkers()
		river.AddWorker(riverWorkers, workers.NewVideoEmbeddingWorker(embeddingService, m.embeddings, 0))

		riverClient, err = river.NewClient(riverpgxv5.New(db), &river.Config{
			Queues: map[string]river.QueueConfig{
				service.EmbeddingsQueueName: {MaxWorkers: cfg.EmbeddingMaxConcurrent},
			},
			Workers:      riverWorkers,
			ErrorHandler: &jobs.ErrorHandler{},
		})
		if err != nil {
			return nil, fmt.Errorf("create River client: %w", err)
		}

		enqueuer := service.NewVideoEmbeddingEnqueuer(
			riverClient, videosRepo, service.EmbeddingsQueueName, cfg.EmbeddingMaxAttempts, m.embeddings,
		)
		embeddingHandler = handlers.NewVideoEmbeddingHandler(enqueuer)
	}

	server := newHTTPServer(cfg, routes{
		health:    handlers.NewHealthHandler(db),
		search:    searchHandler,
		embedding: embeddingHandler,
		metrics:   metricsHandler,
	}, m.api, meterProvider, tracerProvider)

	return &App{
		cfg:            cfg,
		db:             db,
		server:         server,
		river:          riverClient,
		redis:          sharedCache,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		metrics:        metrics,
	}, nil
}

// routes holds the handlers mounted by newHTTPServer. embedding and metrics may be nil.
type routes struct {
	health    *handlers.HealthHandler
	search    *handlers.SearchHandler
	embedding *handlers.VideoEmbeddingHandler
	metrics   http.Handler
}

// newHTTPServer builds the router (no auth on /health and /metrics, API key on /v1/).
// Handler chain: RequestID -> otelhttp(Logging(router)) so access logs get trace_id/span_id from context.
func newHTTPServer(
	cfg *config.Config,
	rt routes,
	apiMetrics observability.APIMetrics,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", rt.health.Check)

	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(middleware.Auth(cfg.APIKey))
		v1.Use(middleware.MaxBody(maxRequestBodyBytes, apiMetrics))

		v1.Post("/videos/search", rt.search.Search)
		v1.Get("/videos/search", rt.search.SearchGet)

		// Not registered when no embedding provider is configured.
		if rt.embedding != nil {
			v1.Post("/videos/{id}/embedding", rt.embedding.Enqueue)
		}
	})

	otelOpts := []otelhttp.Option{
		// Skip tracing and HTTP metrics for health checks and scrapes to reduce noise.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	// Logging runs inside otelhttp so r.Context() has the span when we log.
	inner := middleware.Logging(r)
	handler := otelhttp.NewHandler(inner, "signclips-api", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 30 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and River, then blocks until ctx is cancelled (e.g. signal)
// or a component fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	if a.river != nil {
		if a.metrics != nil && a.metrics.Queue != nil {
			go runRiverQueueDepthPoller(riverCtx, a.db, a.metrics.Queue)
		}

		go func() {
			if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
				select {
				case runErr <- fmt.Errorf("river: %w", err):
				default:
				}
			}
		}()
	}

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelRiver()

		return err
	case <-ctx.Done():
		cancelRiver()

		return nil
	}
}

// runRiverQueueDepthPoller periodically updates the embeddings queue depth gauge.
func runRiverQueueDepthPoller(ctx context.Context, db *pgxpool.Pool, queueMetrics observability.QueueMetrics) {
	ticker := time.NewTicker(riverQueueDepthInterval)
	defer ticker.Stop()

	update := func() {
		var count int

		err := db.QueryRow(ctx,
			`SELECT COUNT(*) FROM river_job WHERE queue = $1 AND state IN ($2, $3, $4)`,
			service.EmbeddingsQueueName,
			rivertype.JobStateAvailable, rivertype.JobStateRetryable, rivertype.JobStateScheduled,
		).Scan(&count)
		if err != nil {
			slog.WarnContext(ctx, "river queue depth poll failed", "error", err)

			return
		}

		queueMetrics.SetRiverQueueDepth(count)
	}

	update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if tracer != nil {
		if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
			first = err
		}
	}

	if meter != nil {
		if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
			if first == nil {
				first = err
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

// Shutdown stops the server and River in order, then closes the shared cache and observability.
// Call after Run returns.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		if a.redis != nil {
			a.redis.Close()
		}

		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.stopRiver(ctx)

		return fmt.Errorf("server shutdown: %w", err)
	}

	if a.river != nil {
		if err = a.river.Stop(ctx); err != nil {
			return fmt.Errorf("river stop: %w", err)
		}
	}

	return nil
}

func (a *App) stopRiver(ctx context.Context) {
	if a.river == nil {
		return
	}

	if err := a.river.Stop(ctx); err != nil {
		slog.Error("river stop during server shutdown", "error", err)
	}
}
