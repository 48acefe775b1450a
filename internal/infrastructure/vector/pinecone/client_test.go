package pinecone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/doctorlittle/coderag/internal/core/domain"
)

func TestQueryMapsMatchesToPassages(t *testing.T) {
	var capturedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Api-Key"); got != "pc-test" {
			t.Fatalf("expected api key header, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"matches":[
			{"score":0.91,"metadata":{"text":"diagnosed with F41.1","icd10_codes":"F41.1","chunk_index":3}},
			{"score":0.74,"metadata":{"text":"routine visit"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "pc-test", nil)
	passages, err := client.Query(context.Background(), []float32{0.1, 0.2}, 60, domain.SearchFilter{Specialty: "psychiatry"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if len(passages) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(passages))
	}
	first := passages[0]
	if first.Text != "diagnosed with F41.1" || first.Score != 0.91 {
		t.Fatalf("unexpected first passage: %+v", first)
	}
	if first.Metadata["icd10_codes"] != "F41.1" {
		t.Fatalf("metadata not carried through: %v", first.Metadata)
	}
	if first.Metadata["chunk_index"] != "3" {
		t.Fatalf("expected numeric metadata stringified, got %q", first.Metadata["chunk_index"])
	}

	if capturedBody["topK"].(float64) != 60 {
		t.Fatalf("expected topK 60, got %v", capturedBody["topK"])
	}
	if capturedBody["includeMetadata"] != true {
		t.Fatalf("expected includeMetadata, got %v", capturedBody["includeMetadata"])
	}
	filter, _ := capturedBody["filter"].(map[string]any)
	if filter == nil {
		t.Fatalf("expected specialty filter in request body")
	}
}

func TestQueryOmitsFilterWithoutSpecialty(t *testing.T) {
	var capturedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"matches":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "pc-test", nil)
	if _, err := client.Query(context.Background(), []float32{0.1}, 10, domain.SearchFilter{}); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if _, ok := capturedBody["filter"]; ok {
		t.Fatalf("expected no filter key, got %v", capturedBody["filter"])
	}
}

func TestQueryIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "pc-test", nil)
	_, err := client.Query(context.Background(), []float32{0.1}, 10, domain.SearchFilter{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "index not found") {
		t.Fatalf("expected body in error, got %v", err)
	}
}

func TestIndexStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/describe_index_stats" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"totalVectorCount":12345,"dimension":1536}`))
	}))
	defer server.Close()

	client := New(server.URL, "pc-test", nil)
	stats, err := client.IndexStats(context.Background())
	if err != nil {
		t.Fatalf("IndexStats() error = %v", err)
	}
	if stats.TotalVectors != 12345 || stats.Dimension != 1536 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
