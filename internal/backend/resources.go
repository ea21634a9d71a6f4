package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

type resourceList struct {
	Data []models.ResourceInfo `json:"data"`
}

// GetResources fetches resource records by id within a namespace.
func (c *Client) GetResources(ctx context.Context, namespaceID string, ids []string) ([]models.ResourceInfo, error) {
	q := url.Values{}
	for _, id := range ids {
		q.Add("id", id)
	}
	var out resourceList
	path := queryPath("/api/v1/namespaces/"+namespaceID+"/resources", q)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ListChildren lists a resource's descendants down to the given depth.
func (c *Client) ListChildren(ctx context.Context, resourceID string, depth int) ([]models.ResourceInfo, error) {
	q := url.Values{}
	if depth > 0 {
		q.Set("depth", strconv.Itoa(depth))
	}
	var out resourceList
	path := queryPath("/api/v1/resources/"+resourceID+"/children", q)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// TimeFilter selects resources by creation/update window.
type TimeFilter struct {
	NamespaceID string `json:"namespace_id"`
	// Field is the timestamp filtered on: "created_at" or "updated_at".
	Field string `json:"field,omitempty"`
	After string `json:"after,omitempty"`
	Before string `json:"before,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// FilterByTime queries resources whose timestamp falls inside the window.
func (c *Client) FilterByTime(ctx context.Context, filter TimeFilter) ([]models.ResourceInfo, error) {
	var out resourceList
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/resources/filter/time", filter, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// TagFilter selects resources carrying any of the given tags.
type TagFilter struct {
	NamespaceID string   `json:"namespace_id"`
	Tags        []string `json:"tags"`
	Limit       int      `json:"limit,omitempty"`
}

// FilterByTag queries resources by tag.
func (c *Client) FilterByTag(ctx context.Context, filter TagFilter) ([]models.ResourceInfo, error) {
	var out resourceList
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/resources/filter/tag", filter, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
