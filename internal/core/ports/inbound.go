package ports

import (
	"context"

	"github.com/doctorlittle/coderag/internal/core/domain"
)

// CodeRetriever runs the full extraction pipeline for one request.
type CodeRetriever interface {
	Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.CodeReport, error)
	InspectPassages(ctx context.Context, req domain.RetrievalRequest) ([]domain.Passage, error)
}
