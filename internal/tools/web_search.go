package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/import-ai/omnibox-wizard-sub000/internal/retrieval"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// WebSearchConfig points at the external web search endpoint.
type WebSearchConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// WebSearch queries the public web through a configured search endpoint.
type WebSearch struct {
	cfg    WebSearchConfig
	client *http.Client
}

// NewWebSearch builds the web_search tool.
func NewWebSearch(cfg WebSearchConfig) *WebSearch {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebSearch{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (s *WebSearch) Schema() models.Function {
	return models.Function{
		Name:        "web_search",
		Description: "Search the public web for pages relevant to a query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Natural-language search query.",
				},
			},
			"required": []any{"query"},
		},
	}
}

type webSearchRequest struct {
	Query string `json:"query"`
}

type webSearchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Snippet string  `json:"snippet"`
		Date    string  `json:"date,omitempty"`
		Score   float64 `json:"score,omitempty"`
	} `json:"results"`
}

func (s *WebSearch) Handler(ToolConfig) retrieval.SearchFunc {
	return func(ctx context.Context, query string) ([]models.Retrieval, error) {
		body, err := json.Marshal(webSearchRequest{Query: query})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if s.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("web search request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("web search endpoint returned %d: %s", resp.StatusCode, raw)
		}

		var decoded webSearchResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("decode web search response: %w", err)
		}

		rs := make([]models.Retrieval, 0, len(decoded.Results))
		for _, hit := range decoded.Results {
			rs = append(rs, models.Retrieval{
				Kind:        models.RetrievalWeb,
				Source:      "web_search",
				URL:         hit.URL,
				Title:       hit.Title,
				Snippet:     hit.Snippet,
				PublishedAt: hit.Date,
				Scores:      models.Scores{Recall: hit.Score},
			})
		}
		return rs, nil
	}
}
