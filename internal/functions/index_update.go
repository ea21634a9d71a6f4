package functions

import (
	"context"
	"encoding/json"

	"github.com/import-ai/omnibox-wizard-sub000/internal/backend"
	"github.com/import-ai/omnibox-wizard-sub000/internal/retrieval"
	"github.com/import-ai/omnibox-wizard-sub000/internal/tasks"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// IndexWriter is the slice of the backend index_update needs.
type IndexWriter interface {
	UpsertIndex(ctx context.Context, namespaceID string, chunks []backend.IndexChunk) error
}

// IndexUpdate embeds chunk texts and upserts them into the backend vector
// index.
type IndexUpdate struct {
	embedder retrieval.Embedder
	index    IndexWriter
}

// NewIndexUpdate builds the index_update handler.
func NewIndexUpdate(embedder retrieval.Embedder, index IndexWriter) *IndexUpdate {
	return &IndexUpdate{embedder: embedder, index: index}
}

type indexUpdateInput struct {
	NamespaceID string `json:"namespace_id"`
	Chunks      []struct {
		ResourceID string `json:"resource_id"`
		StartIndex int    `json:"start_index"`
		EndIndex   int    `json:"end_index"`
		Text       string `json:"text"`
	} `json:"chunks"`
}

func (h *IndexUpdate) Run(ctx context.Context, task *models.Task) (map[string]any, error) {
	var in indexUpdateInput
	if err := json.Unmarshal(task.Input, &in); err != nil {
		return nil, tasks.NewValidationError("index_update input: %v", err)
	}
	if in.NamespaceID == "" {
		return nil, tasks.NewValidationError("index_update input: namespace_id is required")
	}
	if len(in.Chunks) == 0 {
		return map[string]any{"indexed": 0}, nil
	}

	texts := make([]string, len(in.Chunks))
	for i, c := range in.Chunks {
		texts[i] = c.Text
	}
	vectors, err := h.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	chunks := make([]backend.IndexChunk, len(in.Chunks))
	for i, c := range in.Chunks {
		chunks[i] = backend.IndexChunk{
			ResourceID: c.ResourceID,
			StartIndex: c.StartIndex,
			EndIndex:   c.EndIndex,
			Text:       c.Text,
			Vector:     vectors[i],
		}
	}
	if err := h.index.UpsertIndex(ctx, in.NamespaceID, chunks); err != nil {
		return nil, err
	}
	return map[string]any{"indexed": len(chunks)}, nil
}
