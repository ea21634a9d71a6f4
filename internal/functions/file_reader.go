package functions

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/import-ai/omnibox-wizard-sub000/internal/ratelimit"
	"github.com/import-ai/omnibox-wizard-sub000/internal/tasks"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// DocumentStore is the slice of the object store file_reader needs.
type DocumentStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// FileReader extracts text from an uploaded document in the object store.
// Plain text and markdown are handled inline; other formats belong to
// external converter services. Reads are bounded by the per-category
// semaphore so a burst of heavyweight documents cannot starve the worker.
type FileReader struct {
	store   DocumentStore
	limiter *ratelimit.Limiter
}

// NewFileReader builds the file_reader handler.
func NewFileReader(store DocumentStore, limiter *ratelimit.Limiter) *FileReader {
	return &FileReader{store: store, limiter: limiter}
}

type fileReaderInput struct {
	// Key locates the raw document in the object store.
	Key   string `json:"key"`
	Title string `json:"title,omitempty"`
	// Format is the declared document format; empty falls back to the key
	// extension.
	Format string `json:"format,omitempty"`
}

func (h *FileReader) Run(ctx context.Context, task *models.Task) (map[string]any, error) {
	var in fileReaderInput
	if err := json.Unmarshal(task.Input, &in); err != nil {
		return nil, tasks.NewValidationError("file_reader input: %v", err)
	}
	if in.Key == "" {
		return nil, tasks.NewValidationError("file_reader input: key is required")
	}

	format := normalizeFormat(in.Format, in.Key)
	category := ratelimit.CategoryDocument
	if format == "markdown" || format == "text" {
		category = ratelimit.CategoryMarkdown
	}

	release, err := h.limiter.Acquire(ctx, category)
	if err != nil {
		return nil, err
	}
	defer release()

	switch format {
	case "markdown", "text":
	default:
		return nil, tasks.NewValidationError("file_reader: unsupported format %q", format)
	}

	data, err := h.store.Get(ctx, in.Key)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, tasks.NewValidationError("file_reader: %s is not valid UTF-8 text", in.Key)
	}

	title := in.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(in.Key), path.Ext(in.Key))
	}
	return map[string]any{
		"title":   title,
		"content": string(data),
		"format":  format,
	}, nil
}

func normalizeFormat(declared, key string) string {
	format := strings.ToLower(declared)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(path.Ext(key)), ".")
	}
	switch format {
	case "md", "markdown":
		return "markdown"
	case "txt", "text", "plain":
		return "text"
	}
	return format
}
