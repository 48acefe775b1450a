package ports

import (
	"context"

	"github.com/doctorlittle/coderag/internal/core/domain"
)

// Embedder turns query text into a vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher performs the similarity search over embedded passages.
// The index, distance metric, and filtering are owned by the provider.
type VectorSearcher interface {
	Query(ctx context.Context, vector []float32, topK int, filter domain.SearchFilter) ([]domain.Passage, error)
}

// IndexStatsProvider reports vector index health for the health endpoint.
type IndexStatsProvider interface {
	IndexStats(ctx context.Context) (domain.IndexStats, error)
}

// AuditPublisher emits retrieval audit events after a request completes.
type AuditPublisher interface {
	PublishRetrievalAudit(ctx context.Context, audit domain.RetrievalAudit) error
}

// AuditQueue publishes and consumes retrieval audit events.
type AuditQueue interface {
	AuditPublisher
	SubscribeRetrievalAudit(ctx context.Context, handler func(context.Context, domain.RetrievalAudit) error) error
}

// AuditStore persists retrieval audit records on the worker side.
type AuditStore interface {
	RecordRetrieval(ctx context.Context, audit *domain.RetrievalAudit) error
}
