package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/import-ai/omnibox-wizard-sub000/internal/backend"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

func backendStub(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return backend.New(backend.Config{BaseURL: srv.URL})
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	ws := NewWebSearch(WebSearchConfig{Endpoint: "http://example"})
	if err := r.Register(ws); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(ws); err == nil {
		t.Fatal("expected duplicate-name error")
	}
	if _, ok := r.Get("web_search"); !ok {
		t.Fatal("registered tool not found")
	}
}

func TestPrivateSearchScopesRequest(t *testing.T) {
	var got backend.SearchRequest
	b := backendStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{{"resource_id": "r1", "snippet": "hit"}},
		})
	})

	handler := NewPrivateSearch(b, 10).Handler(ToolConfig{
		NamespaceID:      "ns1",
		VisibleResources: []string{"r1", "r2"},
	})
	rs, err := handler(context.Background(), "budget")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got.NamespaceID != "ns1" || len(got.VisibleResources) != 2 || got.Query != "budget" {
		t.Errorf("request = %+v", got)
	}
	if len(rs) != 1 || rs[0].Source != "private_search" {
		t.Fatalf("results = %+v, want source tagged", rs)
	}
}

func TestPrivateSearchFallsBackToParentIDs(t *testing.T) {
	var got backend.SearchRequest
	b := backendStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{"records": []any{}})
	})

	handler := NewPrivateSearch(b, 10).Handler(ToolConfig{
		NamespaceID: "ns1",
		ParentIDs:   []string{"folder1"},
	})
	if _, err := handler(context.Background(), "q"); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got.VisibleResources) != 1 || got.VisibleResources[0] != "folder1" {
		t.Errorf("visible resources = %v, want parent ids", got.VisibleResources)
	}
}

func TestWebSearchMapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Go blog", "url": "https://go.dev/blog", "snippet": "release notes", "date": "2026-01-02"},
			},
		})
	}))
	defer srv.Close()

	handler := NewWebSearch(WebSearchConfig{Endpoint: srv.URL}).Handler(ToolConfig{})
	rs, err := handler(context.Background(), "go release")
	if err != nil {
		t.Fatalf("web search: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("got %d results", len(rs))
	}
	hit := rs[0]
	if hit.Kind != models.RetrievalWeb || hit.URL != "https://go.dev/blog" || hit.Source != "web_search" {
		t.Errorf("hit = %+v", hit)
	}
	if hit.PublishedAt != "2026-01-02" {
		t.Errorf("published at = %q", hit.PublishedAt)
	}
}

func TestKnowledgeSearchUsesFixedNamespace(t *testing.T) {
	var got backend.SearchRequest
	b := backendStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{"records": []any{}})
	})

	handler := NewKnowledgeSearch(b, "shared-kb", 10).Handler(ToolConfig{NamespaceID: "caller-ns"})
	if _, err := handler(context.Background(), "q"); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got.NamespaceID != "shared-kb" {
		t.Errorf("namespace = %q, want the configured shared one", got.NamespaceID)
	}
}

func TestListChildrenClampsDepthAndStripsContent(t *testing.T) {
	b := backendStub(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("depth"); got != "5" {
			t.Errorf("depth = %q, want clamped to 5", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"resource_id": "child", "content": "secret body"}},
		})
	})

	handler := NewListChildren(b).Handler(ToolConfig{})
	res, err := handler(context.Background(), json.RawMessage(`{"resource_id":"folder","depth":99}`))
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if !res.MetadataOnly {
		t.Error("result should be metadata only")
	}
	if len(res.Data) != 1 || res.Data[0].Content != "" {
		t.Errorf("content not stripped: %+v", res.Data)
	}
}

func TestFilterByTagForwardsScope(t *testing.T) {
	var got backend.TagFilter
	b := backendStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	})

	handler := NewFilterByTag(b).Handler(ToolConfig{NamespaceID: "ns1"})
	if _, err := handler(context.Background(), json.RawMessage(`{"tags":["q3","finance"]}`)); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if got.NamespaceID != "ns1" || len(got.Tags) != 2 {
		t.Errorf("filter = %+v", got)
	}
}
