// Package retrieval provides the search-side plumbing around retrievers:
// reranking, merged fan-out, and embeddings.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// SearchFunc is a bound search handler: query in, retrievals out.
type SearchFunc func(ctx context.Context, query string) ([]models.Retrieval, error)

// Reranker reorders a retrieval list by relevance to the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, rs []models.Retrieval) ([]models.Retrieval, error)
}

// RerankerConfig configures the external rerank endpoint. An empty
// endpoint turns the reranker into a passthrough.
type RerankerConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	// Threshold drops results whose rerank score falls below it.
	Threshold float64
	// TopK truncates the reranked list. Zero keeps everything.
	TopK    int
	Timeout time.Duration
}

// HTTPReranker scores retrievals against an external rerank endpoint.
type HTTPReranker struct {
	cfg    RerankerConfig
	client *http.Client
}

// NewHTTPReranker builds a reranker for the configured endpoint.
func NewHTTPReranker(cfg RerankerConfig) *HTTPReranker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPReranker{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank deduplicates by retrieval identity, scores the survivors against
// the rerank endpoint, drops those below the threshold, and truncates to
// TopK in descending score order. Without an endpoint the input passes
// through unchanged.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, rs []models.Retrieval) ([]models.Retrieval, error) {
	if r.cfg.Endpoint == "" || len(rs) == 0 {
		return rs, nil
	}

	deduped := dedupe(rs)
	docs := make([]string, len(deduped))
	for i := range deduped {
		docs[i] = deduped[i].Snippet
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.cfg.Model,
		Query:     query,
		Documents: docs,
		TopN:      len(docs),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("rerank endpoint returned %d: %s", resp.StatusCode, raw)
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	for _, result := range decoded.Results {
		if result.Index < 0 || result.Index >= len(deduped) {
			continue
		}
		deduped[result.Index].Scores.Rerank = result.RelevanceScore
	}

	kept := deduped[:0]
	for _, ret := range deduped {
		if ret.Scores.Rerank >= r.cfg.Threshold {
			kept = append(kept, ret)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Scores.Rerank > kept[j].Scores.Rerank
	})
	if r.cfg.TopK > 0 && len(kept) > r.cfg.TopK {
		kept = kept[:r.cfg.TopK]
	}
	return kept, nil
}

// WrapSearch returns a search handler that reranks the inner handler's
// results against the same query.
func WrapSearch(fn SearchFunc, rr Reranker) SearchFunc {
	return func(ctx context.Context, query string) ([]models.Retrieval, error) {
		rs, err := fn(ctx, query)
		if err != nil {
			return nil, err
		}
		return rr.Rerank(ctx, query, rs)
	}
}

func dedupe(rs []models.Retrieval) []models.Retrieval {
	seen := make(map[string]bool, len(rs))
	out := make([]models.Retrieval, 0, len(rs))
	for _, ret := range rs {
		key := ret.Identity()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ret)
	}
	return out
}
