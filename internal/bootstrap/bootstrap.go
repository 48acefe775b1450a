package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/doctorlittle/coderag/internal/config"
	"github.com/doctorlittle/coderag/internal/core/domain"
	"github.com/doctorlittle/coderag/internal/core/ports"
	"github.com/doctorlittle/coderag/internal/core/usecase"
	"github.com/doctorlittle/coderag/internal/infrastructure/embedding/openai"
	"github.com/doctorlittle/coderag/internal/infrastructure/queue/nats"
	"github.com/doctorlittle/coderag/internal/infrastructure/repository/postgres"
	"github.com/doctorlittle/coderag/internal/infrastructure/resilience"
	"github.com/doctorlittle/coderag/internal/infrastructure/terminology"
	"github.com/doctorlittle/coderag/internal/infrastructure/vector/pinecone"
	"github.com/doctorlittle/coderag/internal/observability/metrics"
)

// API holds the wired api-side dependencies.
type API struct {
	Config config.Config

	Retriever   ports.CodeRetriever
	IndexStats  ports.IndexStatsProvider
	Terminology *domain.TerminologyTable
	Metrics     *metrics.HTTPServerMetrics

	closeFn func()
}

// Worker holds the wired worker-side dependencies.
type Worker struct {
	Config config.Config

	Queue   *nats.Queue
	Store   ports.AuditStore
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

func NewAPI(cfg config.Config) (*API, error) {
	terms, err := terminology.Load(cfg.TerminologyPath)
	if err != nil {
		slog.Warn("terminology_load_failed", "path", cfg.TerminologyPath, "error", err)
	} else {
		slog.Info("terminology_loaded", "path", cfg.TerminologyPath, "codes", terms.Len())
	}

	executor := newExecutor(cfg)
	embedder := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIEmbedModel, executor)
	searcher := pinecone.New(cfg.PineconeIndexURL, cfg.PineconeAPIKey, executor)

	httpMetrics := metrics.NewHTTPServerMetrics("api")

	var queue *nats.Queue
	var publisher ports.AuditPublisher
	if cfg.AuditEnabled {
		queue, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init audit queue: %w", err)
		}
		publisher = &meteredAuditPublisher{next: queue, metrics: httpMetrics}
	}

	retriever := usecase.NewRetrieveCodesUseCase(embedder, searcher, terms, publisher)

	return &API{
		Config:      cfg,
		Retriever:   retriever,
		IndexStats:  searcher,
		Terminology: terms,
		Metrics:     httpMetrics,
		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
		},
	}, nil
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewAuditRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: newExecutor(cfg),
	})
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("init audit queue: %w", err)
	}

	return &Worker{
		Config:  cfg,
		Queue:   queue,
		Store:   repo,
		Metrics: metrics.NewWorkerMetrics("worker"),
		closeFn: func() {
			queue.Close()
			closeDB(db)
		},
	}, nil
}

func (a *API) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func newExecutor(cfg config.Config) *resilience.Executor {
	policy := resilience.DefaultPolicy()
	if cfg.RetryMaxAttempts > 0 {
		policy.MaxAttempts = cfg.RetryMaxAttempts
	}
	policy.BreakerEnabled = cfg.BreakerEnabled
	return resilience.NewExecutor(policy)
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("postgres_close_failed", "error", err)
	}
}

// meteredAuditPublisher counts publish failures without changing the
// best-effort semantics of the underlying queue.
type meteredAuditPublisher struct {
	next    ports.AuditPublisher
	metrics *metrics.HTTPServerMetrics
}

func (p *meteredAuditPublisher) PublishRetrievalAudit(ctx context.Context, audit domain.RetrievalAudit) error {
	err := p.next.PublishRetrievalAudit(ctx, audit)
	if err != nil && p.metrics != nil {
		p.metrics.RecordAuditPublishFailure("api")
	}
	return err
}
