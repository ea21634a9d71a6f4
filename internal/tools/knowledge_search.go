package tools

import (
	"context"

	"github.com/import-ai/omnibox-wizard-sub000/internal/backend"
	"github.com/import-ai/omnibox-wizard-sub000/internal/retrieval"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// KnowledgeSearch is private search over a shared, organisation-wide
// knowledge namespace. The namespace is fixed by configuration, not by the
// caller's tool selection.
type KnowledgeSearch struct {
	backend     *backend.Client
	namespaceID string
	topK        int
}

// NewKnowledgeSearch builds the knowledge_search tool over the configured
// shared namespace.
func NewKnowledgeSearch(b *backend.Client, namespaceID string, topK int) *KnowledgeSearch {
	if topK <= 0 {
		topK = 20
	}
	return &KnowledgeSearch{backend: b, namespaceID: namespaceID, topK: topK}
}

func (s *KnowledgeSearch) Schema() models.Function {
	return models.Function{
		Name:        "knowledge_search",
		Description: "Search the shared knowledge base for passages relevant to a query.",
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

func (s *KnowledgeSearch) Handler(ToolConfig) retrieval.SearchFunc {
	return func(ctx context.Context, query string) ([]models.Retrieval, error) {
		rs, err := s.backend.SearchChunks(ctx, backend.SearchRequest{
			NamespaceID: s.namespaceID,
			Query:       query,
			TopK:        s.topK,
		})
		if err != nil {
			return nil, err
		}
		for i := range rs {
			rs[i].Source = "knowledge_search"
		}
		return rs, nil
	}
}
