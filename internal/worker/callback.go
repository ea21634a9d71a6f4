package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/import-ai/omnibox-wizard-sub000/internal/backend"
	"github.com/import-ai/omnibox-wizard-sub000/internal/backoff"
	"github.com/import-ai/omnibox-wizard-sub000/internal/observability"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// CallbackBackend is the slice of the backend client callback delivery
// uses.
type CallbackBackend interface {
	PostCallback(ctx context.Context, payload []byte) error
	RequestUploadURL(ctx context.Context, taskID string) (string, error)
	NotifyUploaded(ctx context.Context, taskID string) error
}

// Deliverer gets task results back to the backend. Small results go
// inline; oversized ones go through a presigned upload. When the upload
// path fails too, a summary without the payload still goes inline so the
// backend always hears the task finished.
type Deliverer struct {
	backend     CallbackBackend
	http        *http.Client
	inlineLimit int64
	policy      backoff.Policy
	maxAttempts int

	log     *observability.Logger
	metrics *observability.Metrics
}

// NewDeliverer builds a callback deliverer. metrics may be nil.
func NewDeliverer(b CallbackBackend, inlineLimit int64, log *observability.Logger, metrics *observability.Metrics) *Deliverer {
	if inlineLimit <= 0 {
		inlineLimit = 5 << 20
	}
	if log == nil {
		log = observability.NewLogger(observability.LogConfig{})
	}
	return &Deliverer{
		backend:     b,
		http:        &http.Client{Timeout: 2 * time.Minute},
		inlineLimit: inlineLimit,
		policy:      backoff.DefaultPolicy(),
		maxAttempts: 3,
		log:         log,
		metrics:     metrics,
	}
}

// Deliver serializes the result and gets it to the backend through
// whichever path its size requires.
func (d *Deliverer) Deliver(ctx context.Context, result *models.TaskResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal callback: %w", err)
	}

	if int64(len(payload)) <= d.inlineLimit {
		err := d.postInline(ctx, payload)
		if err == nil {
			d.record("inline", len(payload))
			return nil
		}
		if !errors.Is(err, backend.ErrPayloadTooLarge) {
			return err
		}
		d.log.Warn(ctx, "inline callback rejected as too large, switching to upload",
			"task_id", result.ID, "bytes", len(payload))
	}

	if err := d.deliverViaUpload(ctx, result.ID, payload); err != nil {
		d.log.Error(ctx, "upload path failed, falling back to summary callback",
			"task_id", result.ID, "error", err)
		if d.metrics != nil {
			d.metrics.RecordError("callback", "upload_failed")
		}
		return d.deliverSummary(ctx, result)
	}
	d.record("upload", len(payload))
	return nil
}

// postInline posts the payload, retrying transport errors. A 413 or other
// HTTP rejection surfaces immediately; only connection-level failures are
// worth retrying.
func (d *Deliverer) postInline(ctx context.Context, payload []byte) error {
	return backoff.Retry(ctx, d.policy, d.maxAttempts, func(attempt int) error {
		err := d.backend.PostCallback(ctx, payload)
		if err == nil {
			return nil
		}
		var apiErr *backend.APIError
		if errors.Is(err, backend.ErrPayloadTooLarge) || errors.As(err, &apiErr) {
			// HTTP-level rejections do not improve with retries.
			return backoff.Stop(err)
		}
		d.log.Warn(ctx, "callback delivery failed, retrying", "attempt", attempt, "error", err)
		return err
	})
}

// deliverViaUpload runs the oversized path: presigned URL, PUT, notify.
func (d *Deliverer) deliverViaUpload(ctx context.Context, taskID string, payload []byte) error {
	url, err := d.backend.RequestUploadURL(ctx, taskID)
	if err != nil {
		return fmt.Errorf("request upload url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = int64(len(payload))

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload returned %d: %s", resp.StatusCode, raw)
	}

	if err := d.backend.NotifyUploaded(ctx, taskID); err != nil {
		return fmt.Errorf("notify uploaded: %w", err)
	}
	return nil
}

// deliverSummary posts a payload-free result so the task still reaches a
// terminal state on the backend.
func (d *Deliverer) deliverSummary(ctx context.Context, result *models.TaskResult) error {
	summary := models.TaskResult{
		ID:        result.ID,
		Status:    result.Status,
		Exception: result.Exception,
	}
	payload, err := json.Marshal(&summary)
	if err != nil {
		return fmt.Errorf("marshal summary callback: %w", err)
	}
	if err := d.postInline(ctx, payload); err != nil {
		return fmt.Errorf("summary callback: %w", err)
	}
	d.record("summary", len(payload))
	return nil
}

func (d *Deliverer) record(path string, size int) {
	if d.metrics != nil {
		d.metrics.RecordCallback(path, size)
	}
}
