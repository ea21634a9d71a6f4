// Package tools holds the concrete tools an agent turn can select: search
// tools producing retrievals and resource tools producing resource records.
package tools

import (
	"context"
	"encoding/json"

	"github.com/import-ai/omnibox-wizard-sub000/internal/retrieval"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// ToolConfig is the per-selection scope a caller binds a tool to: the
// namespace it searches, and optionally an explicit set of visible
// resources or parent folders restricting it further.
type ToolConfig struct {
	NamespaceID      string
	VisibleResources []string
	ParentIDs        []string
	TopK             int
}

// ResourceFunc is a bound resource handler: raw tool-call arguments in,
// resource records out.
type ResourceFunc func(ctx context.Context, args json.RawMessage) (*models.ResourceToolResult, error)

// Tool is the common surface of every registered tool.
type Tool interface {
	// Schema returns the OpenAI function declaration advertised to the model.
	Schema() models.Function
}

// SearchTool produces retrievals; the executor numbers and renders them as
// a <retrievals> block.
type SearchTool interface {
	Tool
	Handler(cfg ToolConfig) retrieval.SearchFunc
}

// ResourceTool produces resource records; the executor allocates citation
// ids and substitutes them for resource ids in the payload.
type ResourceTool interface {
	Tool
	Handler(cfg ToolConfig) ResourceFunc
}
