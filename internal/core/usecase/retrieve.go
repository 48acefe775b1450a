package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doctorlittle/coderag/internal/core/domain"
	"github.com/doctorlittle/coderag/internal/core/ports"
)

const (
	defaultTopK = 20
	maxTopK     = 100

	// Search fan-out requests more matches than the caller asked for, to
	// compensate for exclusion filtering and dedup shrinking the pool.
	fanOutMultiplier = 3
	maxSearchFanOut  = 100

	reportSource = "coderag_v2"
)

type RetrieveCodesUseCase struct {
	embedder    ports.Embedder
	searcher    ports.VectorSearcher
	terminology *domain.TerminologyTable
	audit       ports.AuditPublisher
}

// NewRetrieveCodesUseCase wires the pipeline. audit may be nil, in which
// case no retrieval audit events are emitted.
func NewRetrieveCodesUseCase(
	embedder ports.Embedder,
	searcher ports.VectorSearcher,
	terminology *domain.TerminologyTable,
	audit ports.AuditPublisher,
) *RetrieveCodesUseCase {
	return &RetrieveCodesUseCase{
		embedder:    embedder,
		searcher:    searcher,
		terminology: terminology,
		audit:       audit,
	}
}

func (uc *RetrieveCodesUseCase) Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.CodeReport, error) {
	started := time.Now()

	passages, req, err := uc.searchPassages(ctx, req)
	if err != nil {
		return nil, err
	}

	survivors := filterExcluded(passages, req.ExclusionTerms)
	report := consolidate(survivors, uc.terminology)
	report.Meta.Query = req.Query
	report.Meta.Specialty = req.Specialty
	report.Meta.Region = req.Region
	report.Meta.TotalMatches = len(passages)
	report.Meta.Source = reportSource

	uc.publishAudit(ctx, req, report, time.Since(started))
	return report, nil
}

// InspectPassages runs embedding, search, and exclusion filtering, but no
// extraction. It backs the debug endpoint.
func (uc *RetrieveCodesUseCase) InspectPassages(ctx context.Context, req domain.RetrievalRequest) ([]domain.Passage, error) {
	passages, req, err := uc.searchPassages(ctx, req)
	if err != nil {
		return nil, err
	}
	return filterExcluded(passages, req.ExclusionTerms), nil
}

// searchPassages validates the request, embeds the query, and fetches raw
// matches. The returned request has defaults applied.
func (uc *RetrieveCodesUseCase) searchPassages(ctx context.Context, req domain.RetrievalRequest) ([]domain.Passage, domain.RetrievalRequest, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, req, domain.WrapError(domain.ErrInvalidInput, "retrieve codes", errors.New("query is required"))
	}
	if req.Specialty == "" {
		req.Specialty = "general"
	}
	if req.Region == "" {
		req.Region = "US"
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	if req.TopK > maxTopK {
		req.TopK = maxTopK
	}

	vector, err := uc.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, req, fmt.Errorf("embed query: %w", err)
	}

	fanOut := req.TopK * fanOutMultiplier
	if fanOut > maxSearchFanOut {
		fanOut = maxSearchFanOut
	}

	filter := domain.SearchFilter{}
	if req.Specialty != "general" {
		filter.Specialty = req.Specialty
	}

	passages, err := uc.searcher.Query(ctx, vector, fanOut, filter)
	if err != nil {
		return nil, req, fmt.Errorf("vector search: %w", err)
	}
	return passages, req, nil
}

// publishAudit is best-effort: a queue failure is logged and never fails
// the request.
func (uc *RetrieveCodesUseCase) publishAudit(ctx context.Context, req domain.RetrievalRequest, report *domain.CodeReport, duration time.Duration) {
	if uc.audit == nil {
		return
	}

	audit := domain.RetrievalAudit{
		ID:           uuid.NewString(),
		RequestID:    req.RequestID,
		Query:        req.Query,
		Specialty:    req.Specialty,
		Region:       req.Region,
		TotalMatches: report.Meta.TotalMatches,
		ICD10Count:   len(report.ICD10),
		CPTCount:     len(report.CPT),
		HCPCSCount:   len(report.HCPCS),
		DurationMS:   float64(duration.Microseconds()) / 1000.0,
		CreatedAt:    time.Now().UTC(),
	}
	if err := uc.audit.PublishRetrievalAudit(ctx, audit); err != nil {
		slog.Warn("audit_publish_failed", "audit_id", audit.ID, "error", err)
	}
}
