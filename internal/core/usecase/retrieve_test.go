package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/doctorlittle/coderag/internal/core/domain"
)

type embedderFake struct {
	query string
	err   error
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.query = text
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type searcherFake struct {
	topK     int
	filter   domain.SearchFilter
	passages []domain.Passage
	err      error
}

func (f *searcherFake) Query(_ context.Context, _ []float32, topK int, filter domain.SearchFilter) ([]domain.Passage, error) {
	f.topK = topK
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

type auditFake struct {
	published []domain.RetrievalAudit
	err       error
}

func (f *auditFake) PublishRetrievalAudit(_ context.Context, audit domain.RetrievalAudit) error {
	f.published = append(f.published, audit)
	return f.err
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	uc := NewRetrieveCodesUseCase(&embedderFake{}, &searcherFake{}, nil, nil)

	_, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Query: "   "})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRetrieveScalesFanOutAndCapsAt100(t *testing.T) {
	searcher := &searcherFake{}
	uc := NewRetrieveCodesUseCase(&embedderFake{}, searcher, nil, nil)

	if _, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Query: "q", TopK: 10}); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if searcher.topK != 30 {
		t.Fatalf("expected fan-out 30 for top_k 10, got %d", searcher.topK)
	}

	if _, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Query: "q", TopK: 50}); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if searcher.topK != 100 {
		t.Fatalf("expected fan-out capped at 100, got %d", searcher.topK)
	}
}

func TestRetrieveDefaultTopK(t *testing.T) {
	searcher := &searcherFake{}
	uc := NewRetrieveCodesUseCase(&embedderFake{}, searcher, nil, nil)

	if _, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Query: "q"}); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if searcher.topK != 60 {
		t.Fatalf("expected fan-out 60 for default top_k 20, got %d", searcher.topK)
	}
}

func TestRetrieveSpecialtyFilter(t *testing.T) {
	searcher := &searcherFake{}
	uc := NewRetrieveCodesUseCase(&embedderFake{}, searcher, nil, nil)

	if _, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Query: "q", Specialty: "cardiology"}); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if searcher.filter.Specialty != "cardiology" {
		t.Fatalf("expected specialty filter, got %q", searcher.filter.Specialty)
	}

	if _, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Query: "q", Specialty: "general"}); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if searcher.filter.Specialty != "" {
		t.Fatalf("expected no filter for general specialty, got %q", searcher.filter.Specialty)
	}
}

func TestRetrieveEmbedErrorPropagates(t *testing.T) {
	uc := NewRetrieveCodesUseCase(&embedderFake{err: errors.New("embed fail")}, &searcherFake{}, nil, nil)

	if _, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Query: "q"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRetrieveSearchErrorPropagates(t *testing.T) {
	uc := NewRetrieveCodesUseCase(&embedderFake{}, &searcherFake{err: errors.New("search fail")}, nil, nil)

	if _, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Query: "q"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRetrieveSuppressesExcludedPassageEntirely(t *testing.T) {
	searcher := &searcherFake{passages: []domain.Passage{
		{Text: "experimental treatment", Score: 0.95, Metadata: map[string]string{"icd10_codes": "F41.1"}},
		{Text: "standard anxiety care F41.1", Score: 0.6},
	}}
	uc := NewRetrieveCodesUseCase(&embedderFake{}, searcher, nil, nil)

	report, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{
		Query:          "anxiety",
		ExclusionTerms: []string{"EXPERIMENTAL"},
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(report.ICD10) != 1 {
		t.Fatalf("expected 1 ICD-10 code, got %v", report.ICD10)
	}
	got := report.ICD10[0]
	if got.Code != "F41.1" || got.Score != 0.6 || got.Source != domain.SourceTextExtraction {
		t.Fatalf("excluded passage leaked into output: %+v", got)
	}
}

func TestRetrieveReportMetadata(t *testing.T) {
	searcher := &searcherFake{passages: []domain.Passage{
		{Text: "diagnosed with F41.1", Score: 0.9},
		{Text: "billed 99213", Score: 0.7},
	}}
	uc := NewRetrieveCodesUseCase(&embedderFake{}, searcher, nil, nil)

	report, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Query: " anxiety visit "})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	meta := report.Meta
	if meta.Query != "anxiety visit" {
		t.Fatalf("expected trimmed query in metadata, got %q", meta.Query)
	}
	if meta.Specialty != "general" || meta.Region != "US" {
		t.Fatalf("expected defaults applied, got %q/%q", meta.Specialty, meta.Region)
	}
	if meta.TotalMatches != 2 || meta.ExtractedCodes != 2 {
		t.Fatalf("unexpected counts: %+v", meta)
	}
	if meta.Source == "" {
		t.Fatalf("expected source tag in metadata")
	}
}

func TestRetrievePublishesAudit(t *testing.T) {
	audit := &auditFake{}
	searcher := &searcherFake{passages: []domain.Passage{
		{Text: "diagnosed with F41.1", Score: 0.9},
	}}
	uc := NewRetrieveCodesUseCase(&embedderFake{}, searcher, nil, audit)

	_, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{
		Query:     "anxiety",
		RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(audit.published) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(audit.published))
	}
	event := audit.published[0]
	if event.RequestID != "req-1" || event.Query != "anxiety" || event.ICD10Count != 1 {
		t.Fatalf("unexpected audit event: %+v", event)
	}
	if event.ID == "" {
		t.Fatalf("expected generated audit id")
	}
}

func TestRetrieveAuditFailureDoesNotFailRequest(t *testing.T) {
	audit := &auditFake{err: errors.New("nats down")}
	uc := NewRetrieveCodesUseCase(&embedderFake{}, &searcherFake{}, nil, audit)

	if _, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Query: "q"}); err != nil {
		t.Fatalf("expected audit failure to be swallowed, got %v", err)
	}
}

func TestRetrieveIsIdempotent(t *testing.T) {
	searcher := &searcherFake{passages: []domain.Passage{
		{Score: 0.8, Metadata: map[string]string{"icd10_codes": "F41.1, F41.9", "cpt": "99213"}},
		{Score: 0.95, Text: "diagnosed with F41.1, billed 93000"},
	}}
	uc := NewRetrieveCodesUseCase(&embedderFake{}, searcher, nil, nil)

	first, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	second, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("retrieval is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestInspectPassagesAppliesExclusions(t *testing.T) {
	searcher := &searcherFake{passages: []domain.Passage{
		{Text: "contains excluded term", Score: 0.9},
		{Text: "clean passage", Score: 0.8},
	}}
	uc := NewRetrieveCodesUseCase(&embedderFake{}, searcher, nil, nil)

	got, err := uc.InspectPassages(context.Background(), domain.RetrievalRequest{
		Query:          "q",
		ExclusionTerms: []string{"excluded"},
	})
	if err != nil {
		t.Fatalf("InspectPassages() error = %v", err)
	}
	if len(got) != 1 || got[0].Text != "clean passage" {
		t.Fatalf("unexpected passages: %v", got)
	}
}
