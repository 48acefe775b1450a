package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/doctorlittle/coderag/internal/core/domain"
	"github.com/doctorlittle/coderag/internal/core/ports"
	"github.com/doctorlittle/coderag/internal/observability/metrics"
)

const serviceName = "api"

// Options tune the traffic-control middlewares and request defaults. Zero
// values disable the corresponding gate.
type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	QueueWait      time.Duration

	// DefaultTopK is applied when the request body omits top_k.
	DefaultTopK int
}

type Router struct {
	retriever   ports.CodeRetriever
	stats       ports.IndexStatsProvider
	terminology *domain.TerminologyTable
	metrics     *metrics.HTTPServerMetrics
	opts        Options
}

func NewRouter(
	retriever ports.CodeRetriever,
	stats ports.IndexStatsProvider,
	terminology *domain.TerminologyTable,
	httpMetrics *metrics.HTTPServerMetrics,
	opts Options,
) *Router {
	if opts.QueueWait <= 0 {
		opts.QueueWait = 100 * time.Millisecond
	}
	return &Router{
		retriever:   retriever,
		stats:       stats,
		terminology: terminology,
		metrics:     httpMetrics,
		opts:        opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/codes/retrieve", rt.retrieveCodes)
	mux.HandleFunc("/v1/codes/debug", rt.inspectPassages)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	handler := http.Handler(mux)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.QueueWait)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	type healthResponse struct {
		Status           string             `json:"status"`
		TerminologyCodes int                `json:"terminology_codes"`
		Index            *domain.IndexStats `json:"index,omitempty"`
		IndexError       string             `json:"index_error,omitempty"`
	}

	resp := healthResponse{
		Status:           "ok",
		TerminologyCodes: rt.terminology.Len(),
	}

	if rt.stats != nil {
		stats, err := rt.stats.IndexStats(r.Context())
		if err != nil {
			resp.Status = "degraded"
			resp.IndexError = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Index = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

type retrieveRequest struct {
	Query          string   `json:"query"`
	Specialty      string   `json:"specialty"`
	Region         string   `json:"region"`
	ExclusionTerms []string `json:"exclusion_terms"`
	TopK           int      `json:"top_k"`
}

func (rt *Router) retrieveCodes(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeRetrieveRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	report, err := rt.retriever.Retrieve(r.Context(), req)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.observeRetrieval(report, time.Since(start))
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) inspectPassages(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeRetrieveRequest(w, r)
	if !ok {
		return
	}

	passages, err := rt.retriever.InspectPassages(r.Context(), req)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if passages == nil {
		passages = []domain.Passage{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"passages": passages,
		"count":    len(passages),
	})
}

func (rt *Router) decodeRetrieveRequest(w http.ResponseWriter, r *http.Request) (domain.RetrievalRequest, bool) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return domain.RetrievalRequest{}, false
	}

	var body retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return domain.RetrievalRequest{}, false
	}
	if body.TopK <= 0 {
		body.TopK = rt.opts.DefaultTopK
	}

	return domain.RetrievalRequest{
		Query:          body.Query,
		Specialty:      body.Specialty,
		Region:         body.Region,
		ExclusionTerms: body.ExclusionTerms,
		TopK:           body.TopK,
		RequestID:      requestIDFromContext(r.Context()),
	}, true
}

func (rt *Router) observeRetrieval(report *domain.CodeReport, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRetrieval(
		serviceName,
		"/v1/codes/retrieve",
		len(report.ICD10),
		len(report.CPT),
		len(report.HCPCS),
		duration,
	)
	rt.metrics.RecordTerminologyHits(serviceName, rt.countTerminologyHits(report))
}

func (rt *Router) countTerminologyHits(report *domain.CodeReport) int {
	hits := 0
	for _, group := range [][]domain.RankedCode{report.ICD10, report.CPT, report.HCPCS} {
		for _, code := range group {
			if entry, ok := rt.terminology.Lookup(code.Code); ok && len(entry.PositiveTerms) > 0 {
				hits++
			}
		}
	}
	return hits
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
