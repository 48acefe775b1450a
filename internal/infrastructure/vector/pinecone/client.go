package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/doctorlittle/coderag/internal/core/domain"
	"github.com/doctorlittle/coderag/internal/infrastructure/resilience"
)

// Client queries a Pinecone index over its data-plane REST API. It
// implements ports.VectorSearcher and ports.IndexStatsProvider.
type Client struct {
	indexURL   string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

// New builds a client for one index host. executor may be nil.
func New(indexURL, apiKey string, executor *resilience.Executor) *Client {
	return &Client{
		indexURL:   strings.TrimRight(indexURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Query(
	ctx context.Context,
	vector []float32,
	topK int,
	filter domain.SearchFilter,
) ([]domain.Passage, error) {
	reqBody := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}
	if filter.Specialty != "" {
		reqBody["filter"] = map[string]any{
			"specialty": map[string]any{"$eq": filter.Specialty},
		}
	}

	var queryResp struct {
		Matches []struct {
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/query", reqBody, &queryResp, "query")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "pinecone.query", call, classifySearchError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("vector query", err)
	}

	out := make([]domain.Passage, 0, len(queryResp.Matches))
	for _, match := range queryResp.Matches {
		metadata := stringifyMetadata(match.Metadata)
		out = append(out, domain.Passage{
			Text:     metadata["text"],
			Score:    match.Score,
			Metadata: metadata,
		})
	}
	return out, nil
}

func (c *Client) IndexStats(ctx context.Context) (domain.IndexStats, error) {
	var statsResp struct {
		TotalVectorCount int `json:"totalVectorCount"`
		Dimension        int `json:"dimension"`
	}

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/describe_index_stats", map[string]any{}, &statsResp, "stats")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "pinecone.stats", call, classifySearchError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.IndexStats{}, wrapTemporaryIfNeeded("index stats", err)
	}

	return domain.IndexStats{
		TotalVectors: statsResp.TotalVectorCount,
		Dimension:    statsResp.Dimension,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.indexURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// stringifyMetadata flattens the provider's loosely-typed payload into the
// string mapping the pipeline consumes. Non-string values (Pinecone allows
// numbers, booleans, and string lists) are rendered with %v; list values
// become comma-joined strings so code-list splitting still applies.
func stringifyMetadata(payload map[string]any) map[string]string {
	out := make(map[string]string, len(payload))
	for key, value := range payload {
		switch v := value.(type) {
		case string:
			out[key] = v
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprintf("%v", item))
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
