package backend

import (
	"context"
	"net/http"

	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// SearchRequest is a vector search over the chunks of one namespace.
type SearchRequest struct {
	NamespaceID string `json:"namespace_id"`
	Query       string `json:"query"`
	// VisibleResources restricts the search to chunks of these resources
	// and their descendants. Empty means the whole namespace.
	VisibleResources []string `json:"visible_resources,omitempty"`
	TopK             int      `json:"top_k,omitempty"`
}

type searchResponse struct {
	Records []models.Retrieval `json:"records"`
}

// SearchChunks runs a vector search and returns chunk retrievals with
// recall scores set.
func (c *Client) SearchChunks(ctx context.Context, req SearchRequest) ([]models.Retrieval, error) {
	var out searchResponse
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/search", req, &out); err != nil {
		return nil, err
	}
	for i := range out.Records {
		if out.Records[i].Kind == "" {
			out.Records[i].Kind = models.RetrievalChunk
		}
	}
	return out.Records, nil
}
