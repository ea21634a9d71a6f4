package tools

import (
	"context"

	"github.com/import-ai/omnibox-wizard-sub000/internal/backend"
	"github.com/import-ai/omnibox-wizard-sub000/internal/retrieval"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// PrivateSearch searches the caller's private document chunks through the
// backend vector index, scoped to the selected namespace and visible
// resources.
type PrivateSearch struct {
	backend *backend.Client
	topK    int
}

// NewPrivateSearch builds the private_search tool.
func NewPrivateSearch(b *backend.Client, topK int) *PrivateSearch {
	if topK <= 0 {
		topK = 20
	}
	return &PrivateSearch{backend: b, topK: topK}
}

func (s *PrivateSearch) Schema() models.Function {
	return models.Function{
		Name:        "private_search",
		Description: "Search the user's private documents for passages relevant to a query.",
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

func (s *PrivateSearch) Handler(cfg ToolConfig) retrieval.SearchFunc {
	visible := cfg.VisibleResources
	if len(visible) == 0 {
		visible = cfg.ParentIDs
	}
	return func(ctx context.Context, query string) ([]models.Retrieval, error) {
		rs, err := s.backend.SearchChunks(ctx, backend.SearchRequest{
			NamespaceID:      cfg.NamespaceID,
			Query:            query,
			VisibleResources: visible,
			TopK:             s.topK,
		})
		if err != nil {
			return nil, err
		}
		for i := range rs {
			rs[i].Source = "private_search"
		}
		return rs, nil
	}
}
