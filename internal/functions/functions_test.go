package functions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/import-ai/omnibox-wizard-sub000/internal/backend"
	"github.com/import-ai/omnibox-wizard-sub000/internal/ratelimit"
	"github.com/import-ai/omnibox-wizard-sub000/internal/tasks"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

func TestDispatchUnknownFunctionIsValidationError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), &models.Task{ID: "t1", Function: "nope"})

	var verr *tasks.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestDispatchRunsHandler(t *testing.T) {
	r := NewRegistry()
	r.Register("echo", HandlerFunc(func(ctx context.Context, task *models.Task) (map[string]any, error) {
		return map[string]any{"id": task.ID}, nil
	}))

	out, err := r.Dispatch(context.Background(), &models.Task{ID: "t1", Function: "echo"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out["id"] != "t1" {
		t.Fatalf("output = %+v", out)
	}
}

// storeStub returns canned bytes per key.
type storeStub map[string][]byte

func (s storeStub) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := s[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func newFileReader(store storeStub) *FileReader {
	return NewFileReader(store, ratelimit.NewLimiter(ratelimit.Config{DocumentReads: 2, MarkdownReads: 4}))
}

func TestFileReaderMarkdown(t *testing.T) {
	h := newFileReader(storeStub{"docs/notes.md": []byte("# Notes\n\nhello")})

	out, err := h.Run(context.Background(), &models.Task{
		Function: "file_reader",
		Input:    json.RawMessage(`{"key":"docs/notes.md"}`),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out["content"] != "# Notes\n\nhello" {
		t.Errorf("content = %q", out["content"])
	}
	if out["title"] != "notes" {
		t.Errorf("title = %q, want derived from key", out["title"])
	}
	if out["format"] != "markdown" {
		t.Errorf("format = %q", out["format"])
	}
}

func TestFileReaderUnsupportedFormat(t *testing.T) {
	h := newFileReader(storeStub{"scan.pdf": []byte("%PDF-1.7")})

	_, err := h.Run(context.Background(), &models.Task{
		Function: "file_reader",
		Input:    json.RawMessage(`{"key":"scan.pdf"}`),
	})
	var verr *tasks.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError for unsupported format", err)
	}
}

func TestFileReaderMissingKey(t *testing.T) {
	h := newFileReader(storeStub{})
	_, err := h.Run(context.Background(), &models.Task{
		Function: "file_reader",
		Input:    json.RawMessage(`{"title":"x"}`),
	})
	var verr *tasks.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

// embedStub returns constant small vectors.
type embedStub struct{ calls int }

func (e *embedStub) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

// indexStub records the upserted chunks.
type indexStub struct {
	namespace string
	chunks    []backend.IndexChunk
}

func (s *indexStub) UpsertIndex(ctx context.Context, namespaceID string, chunks []backend.IndexChunk) error {
	s.namespace = namespaceID
	s.chunks = chunks
	return nil
}

func TestIndexUpdateEmbedsAndUpserts(t *testing.T) {
	embedder := &embedStub{}
	index := &indexStub{}
	h := NewIndexUpdate(embedder, index)

	out, err := h.Run(context.Background(), &models.Task{
		Function: "index_update",
		Input: json.RawMessage(`{
			"namespace_id": "ns1",
			"chunks": [
				{"resource_id":"r1","start_index":0,"end_index":10,"text":"alpha"},
				{"resource_id":"r1","start_index":10,"end_index":20,"text":"beta"}
			]
		}`),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out["indexed"] != 2 {
		t.Errorf("output = %+v", out)
	}
	if index.namespace != "ns1" || len(index.chunks) != 2 {
		t.Fatalf("upserted = %s %+v", index.namespace, index.chunks)
	}
	if index.chunks[1].Text != "beta" || len(index.chunks[1].Vector) != 2 {
		t.Errorf("chunk = %+v", index.chunks[1])
	}
}

func TestIndexUpdateEmptyChunks(t *testing.T) {
	embedder := &embedStub{}
	h := NewIndexUpdate(embedder, &indexStub{})

	out, err := h.Run(context.Background(), &models.Task{
		Function: "index_update",
		Input:    json.RawMessage(`{"namespace_id":"ns1","chunks":[]}`),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out["indexed"] != 0 || embedder.calls != 0 {
		t.Errorf("output = %+v, embed calls = %d", out, embedder.calls)
	}
}
