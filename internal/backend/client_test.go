package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL})
}

func TestFetchTaskEmptyQueue(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/task" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	task, err := c.FetchTask(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if task != nil {
		t.Fatalf("task = %+v, want nil on 204", task)
	}
}

func TestFetchTaskReturnsTask(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.Task{ID: "t1", Function: "agent_run"})
	})

	task, err := c.FetchTask(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if task == nil || task.ID != "t1" || task.Function != "agent_run" {
		t.Fatalf("task = %+v", task)
	}
}

func TestPostCallback413(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	})

	err := c.PostCallback(context.Background(), []byte(`{"id":"t1"}`))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestPostCallbackOtherFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.PostCallback(context.Background(), []byte(`{}`))
	if err == nil || errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want a non-413 failure", err)
	}
}

func TestRequestUploadURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/tasks/t1/upload" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"url": "https://store/presigned"})
	})

	url, err := c.RequestUploadURL(context.Background(), "t1")
	if err != nil {
		t.Fatalf("upload url: %v", err)
	}
	if url != "https://store/presigned" {
		t.Fatalf("url = %q", url)
	}
}

func TestSearchChunksDefaultsKind(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode search request: %v", err)
		}
		if req.Query != "quarterly report" || req.NamespaceID != "ns1" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{
				{"resource_id": "r1", "snippet": "text", "scores": map[string]float64{"recall": 0.7}},
			},
		})
	})

	rs, err := c.SearchChunks(context.Background(), SearchRequest{NamespaceID: "ns1", Query: "quarterly report"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(rs) != 1 || rs[0].Kind != models.RetrievalChunk {
		t.Fatalf("records = %+v, want chunk kind defaulted", rs)
	}
}

func TestGetResourcesQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query()["id"]; len(got) != 2 {
			t.Errorf("id params = %v", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []models.ResourceInfo{{ResourceID: "r1"}, {ResourceID: "r2"}},
		})
	})

	rs, err := c.GetResources(context.Background(), "ns1", []string{"r1", "r2"})
	if err != nil {
		t.Fatalf("get resources: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("got %d resources", len(rs))
	}
}

func TestListChildrenDepthParam(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("depth") != "2" {
			t.Errorf("depth = %q", r.URL.Query().Get("depth"))
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []models.ResourceInfo{{ResourceID: "child"}}})
	})

	rs, err := c.ListChildren(context.Background(), "parent", 2)
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(rs) != 1 || rs[0].ResourceID != "child" {
		t.Fatalf("children = %+v", rs)
	}
}

func TestUpsertIndexSkipsEmpty(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	if err := c.UpsertIndex(context.Background(), "ns1", nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if called {
		t.Fatal("empty upsert should not hit the backend")
	}
}
