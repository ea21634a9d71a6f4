package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// ErrPayloadTooLarge is returned when the inline callback endpoint rejects
// the payload with 413; the caller switches to the upload path.
var ErrPayloadTooLarge = errors.New("callback content too large")

// FetchTask pulls the next pending task off the queue. An empty queue
// (204) returns nil, nil.
func (c *Client) FetchTask(ctx context.Context) (*models.Task, error) {
	var task models.Task
	status, err := c.do(ctx, http.MethodGet, "/api/v1/task", nil, &task)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &task, nil
}

// GetTask fetches one task by id. The cancellation monitor polls this to
// observe canceled_at.
func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+id, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// PostCallback delivers an already-serialized task result inline. A 413
// response maps to ErrPayloadTooLarge.
func (c *Client) PostCallback(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/callback", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return ErrPayloadTooLarge
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return nil
}

type uploadURLResponse struct {
	URL string `json:"url"`
}

// RequestUploadURL asks the backend for a presigned URL to upload an
// oversized task result.
func (c *Client) RequestUploadURL(ctx context.Context, taskID string) (string, error) {
	var resp uploadURLResponse
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/tasks/"+taskID+"/upload", nil, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("backend returned empty upload url for task %s", taskID)
	}
	return resp.URL, nil
}

// NotifyUploaded tells the backend an oversized result landed in the store
// and can be collected.
func (c *Client) NotifyUploaded(ctx context.Context, taskID string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/tasks/"+taskID+"/callback", nil, nil)
	return err
}
