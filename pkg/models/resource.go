package models

import "time"

// ResourceInfo describes one document or folder in a namespace as the
// resource API reports it.
type ResourceInfo struct {
	ResourceID  string     `json:"resource_id"`
	NamespaceID string     `json:"namespace_id,omitempty"`
	ParentID    string     `json:"parent_id,omitempty"`
	Name        string     `json:"name,omitempty"`
	Type        string     `json:"type,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Content     string     `json:"content,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Citation converts a resource record into a user-visible citation under
// the given numeric id.
func (r *ResourceInfo) Citation(id int) Citation {
	c := Citation{
		ID:     id,
		Title:  r.Name,
		Link:   r.ResourceID,
		Source: "resource",
	}
	if r.UpdatedAt != nil {
		c.UpdatedAt = r.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return c
}

// ResourceToolResult is what a resource tool handler returns: one or many
// resource records, optionally metadata only (content stripped).
type ResourceToolResult struct {
	Data []ResourceInfo `json:"data"`
	// MetadataOnly marks results whose content was deliberately omitted.
	MetadataOnly bool `json:"metadata_only,omitempty"`
}

// Function is an OpenAI-compatible function declaration.
type Function struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Tool wraps a function declaration in the OpenAI tool-list shape.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// FunctionTool builds the tool-list entry for a function declaration.
func FunctionTool(fn Function) Tool {
	return Tool{Type: "function", Function: fn}
}
