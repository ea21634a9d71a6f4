package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/import-ai/omnibox-wizard-sub000/internal/agent"
	"github.com/import-ai/omnibox-wizard-sub000/internal/config"
	"github.com/import-ai/omnibox-wizard-sub000/internal/worker"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// chatStub replays a scripted event stream and records the request.
type chatStub struct {
	events []models.StreamEvent
	last   agent.Request
}

func (c *chatStub) Run(ctx context.Context, req agent.Request) <-chan models.StreamEvent {
	c.last = req
	out := make(chan models.StreamEvent, len(c.events))
	go func() {
		defer close(out)
		for _, e := range c.events {
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func newTestServer(chat ChatRunner, health HealthSource) *Server {
	return NewServer(config.ServerConfig{Host: "127.0.0.1", HTTPPort: 0}, chat, health, nil, nil)
}

func TestChatStreamsEventsAsSSE(t *testing.T) {
	chat := &chatStub{events: []models.StreamEvent{
		models.BOSEvent(models.RoleAssistant),
		models.DeltaEvent(&models.Message{Role: models.RoleAssistant, Content: "hello"}),
		models.EOSEvent(),
		models.DoneEvent(),
	}}
	srv := newTestServer(chat, nil)

	body := `{"query":"hi","conversation_id":"c1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if chat.last.Query != "hi" || chat.last.ConversationID != "c1" {
		t.Errorf("request = %+v", chat.last)
	}

	var got []models.StreamEvent
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			t.Fatalf("frame without data prefix: %q", line)
		}
		var event models.StreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			t.Fatalf("frame %q: %v", data, err)
		}
		got = append(got, event)
	}

	wantTypes := []models.ResponseType{models.ResponseBOS, models.ResponseDelta, models.ResponseEOS, models.ResponseDone}
	if len(got) != len(wantTypes) {
		t.Fatalf("events = %d, want %d", len(got), len(wantTypes))
	}
	for i, want := range wantTypes {
		if got[i].ResponseType != want {
			t.Errorf("event[%d] = %q, want %q", i, got[i].ResponseType, want)
		}
	}
	if got[1].Message == nil || got[1].Message.Content != "hello" {
		t.Errorf("delta = %+v", got[1].Message)
	}
}

func TestChatRejectsMissingQuery(t *testing.T) {
	srv := newTestServer(&chatStub{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestChatRejectsBadJSON(t *testing.T) {
	srv := newTestServer(&chatStub{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthOKWithFreshWorkers(t *testing.T) {
	tracker := worker.NewTracker(time.Minute)
	tracker.Beat("w-1", worker.StateIdle, "")
	srv := newTestServer(&chatStub{}, tracker)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Status  string              `json:"status"`
		Uptime  string              `json:"uptime"`
		Workers worker.HealthReport `json:"workers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("body: %v", err)
	}
	if payload.Status != "healthy" {
		t.Errorf("status = %q", payload.Status)
	}
	if payload.Workers.Total != 1 || payload.Workers.Healthy != 1 {
		t.Errorf("workers = %d/%d", payload.Workers.Healthy, payload.Workers.Total)
	}
}

func TestHealthDegradesTo503(t *testing.T) {
	// A nanosecond staleness window makes any beat immediately stale.
	tracker := worker.NewTracker(time.Nanosecond)
	tracker.Beat("w-1", worker.StateIdle, "")
	time.Sleep(time.Millisecond)
	srv := newTestServer(&chatStub{}, tracker)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("body: %v", err)
	}
	if payload.Status != "unhealthy" {
		t.Errorf("status = %q", payload.Status)
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	srv := newTestServer(&chatStub{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
