package backend

import (
	"context"
	"net/http"
)

// IndexChunk is one embedded chunk destined for the vector index.
type IndexChunk struct {
	ResourceID string    `json:"resource_id"`
	StartIndex int       `json:"start_index"`
	EndIndex   int       `json:"end_index"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"vector"`
}

type indexUpsertRequest struct {
	Chunks []IndexChunk `json:"chunks"`
}

// UpsertIndex writes embedded chunks into a namespace's vector index,
// replacing prior entries for the same resource/offsets.
func (c *Client) UpsertIndex(ctx context.Context, namespaceID string, chunks []IndexChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	_, err := c.do(ctx, http.MethodPost, "/api/v1/namespaces/"+namespaceID+"/index", indexUpsertRequest{Chunks: chunks}, nil)
	return err
}
