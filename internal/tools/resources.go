package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/import-ai/omnibox-wizard-sub000/internal/backend"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// GetResource fetches one resource record, content included.
type GetResource struct {
	backend *backend.Client
}

func NewGetResource(b *backend.Client) *GetResource {
	return &GetResource{backend: b}
}

func (t *GetResource) Schema() models.Function {
	return models.Function{
		Name:        "get_resource",
		Description: "Fetch one document or folder by its citation id, including its content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"resource_id": map[string]any{
					"type":        "string",
					"description": "Identifier of the resource to fetch.",
				},
			},
			"required": []any{"resource_id"},
		},
	}
}

func (t *GetResource) Handler(cfg ToolConfig) ResourceFunc {
	return func(ctx context.Context, args json.RawMessage) (*models.ResourceToolResult, error) {
		var in struct {
			ResourceID string `json:"resource_id"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("get_resource arguments: %w", err)
		}
		rs, err := t.backend.GetResources(ctx, cfg.NamespaceID, []string{in.ResourceID})
		if err != nil {
			return nil, err
		}
		return &models.ResourceToolResult{Data: rs}, nil
	}
}

// ListChildren lists a folder's descendants, metadata only.
type ListChildren struct {
	backend *backend.Client
	// maxDepth caps the depth the model may request.
	maxDepth int
}

func NewListChildren(b *backend.Client) *ListChildren {
	return &ListChildren{backend: b, maxDepth: 5}
}

func (t *ListChildren) Schema() models.Function {
	return models.Function{
		Name:        "list_children",
		Description: "List the documents and folders under a folder, without their content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"resource_id": map[string]any{
					"type":        "string",
					"description": "Identifier of the folder to list.",
				},
				"depth": map[string]any{
					"type":        "integer",
					"description": "How many levels to descend; defaults to 1.",
				},
			},
			"required": []any{"resource_id"},
		},
	}
}

func (t *ListChildren) Handler(ToolConfig) ResourceFunc {
	return func(ctx context.Context, args json.RawMessage) (*models.ResourceToolResult, error) {
		var in struct {
			ResourceID string `json:"resource_id"`
			Depth      int    `json:"depth"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("list_children arguments: %w", err)
		}
		depth := in.Depth
		if depth <= 0 {
			depth = 1
		}
		if depth > t.maxDepth {
			depth = t.maxDepth
		}
		rs, err := t.backend.ListChildren(ctx, in.ResourceID, depth)
		if err != nil {
			return nil, err
		}
		stripContent(rs)
		return &models.ResourceToolResult{Data: rs, MetadataOnly: true}, nil
	}
}

// FilterByTime selects resources created or updated inside a window,
// metadata only.
type FilterByTime struct {
	backend *backend.Client
	limit   int
}

func NewFilterByTime(b *backend.Client) *FilterByTime {
	return &FilterByTime{backend: b, limit: 50}
}

func (t *FilterByTime) Schema() models.Function {
	return models.Function{
		Name:        "filter_by_time",
		Description: "Find documents created or updated inside a time window, without their content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"field": map[string]any{
					"type": "string",
					"enum": []any{"created_at", "updated_at"},
				},
				"after": map[string]any{
					"type":        "string",
					"description": "RFC 3339 lower bound, inclusive.",
				},
				"before": map[string]any{
					"type":        "string",
					"description": "RFC 3339 upper bound, exclusive.",
				},
			},
		},
	}
}

func (t *FilterByTime) Handler(cfg ToolConfig) ResourceFunc {
	return func(ctx context.Context, args json.RawMessage) (*models.ResourceToolResult, error) {
		var in struct {
			Field  string `json:"field"`
			After  string `json:"after"`
			Before string `json:"before"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("filter_by_time arguments: %w", err)
		}
		rs, err := t.backend.FilterByTime(ctx, backend.TimeFilter{
			NamespaceID: cfg.NamespaceID,
			Field:       in.Field,
			After:       in.After,
			Before:      in.Before,
			Limit:       t.limit,
		})
		if err != nil {
			return nil, err
		}
		stripContent(rs)
		return &models.ResourceToolResult{Data: rs, MetadataOnly: true}, nil
	}
}

// FilterByTag selects resources carrying given tags, metadata only.
type FilterByTag struct {
	backend *backend.Client
	limit   int
}

func NewFilterByTag(b *backend.Client) *FilterByTag {
	return &FilterByTag{backend: b, limit: 50}
}

func (t *FilterByTag) Schema() models.Function {
	return models.Function{
		Name:        "filter_by_tag",
		Description: "Find documents carrying any of the given tags, without their content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tags": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required": []any{"tags"},
		},
	}
}

func (t *FilterByTag) Handler(cfg ToolConfig) ResourceFunc {
	return func(ctx context.Context, args json.RawMessage) (*models.ResourceToolResult, error) {
		var in struct {
			Tags []string `json:"tags"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("filter_by_tag arguments: %w", err)
		}
		rs, err := t.backend.FilterByTag(ctx, backend.TagFilter{
			NamespaceID: cfg.NamespaceID,
			Tags:        in.Tags,
			Limit:       t.limit,
		})
		if err != nil {
			return nil, err
		}
		stripContent(rs)
		return &models.ResourceToolResult{Data: rs, MetadataOnly: true}, nil
	}
}

func stripContent(rs []models.ResourceInfo) {
	for i := range rs {
		rs[i].Content = ""
	}
}
