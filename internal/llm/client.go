// Package llm is a hand-rolled OpenAI-compatible streaming chat client.
// The vendor surface carries reasoning_content deltas and top-level
// extra_body extensions, which SDK request/response types do not, so the
// wire shapes live here.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/import-ai/omnibox-wizard-sub000/internal/observability"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// Config holds the chat endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// ThinkingModel, when set, serves turns with thinking enabled.
	ThinkingModel string
	Timeout       time.Duration
}

// Client streams chat completions from one OpenAI-compatible endpoint.
type Client struct {
	cfg       config
	http      *http.Client
	metrics   *observability.Metrics
	estimator *Estimator
}

type config struct {
	baseURL       string
	apiKey        string
	model         string
	thinkingModel string
}

// New creates a streaming chat client. metrics may be nil.
func New(cfg Config, metrics *observability.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		cfg: config{
			baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
			apiKey:        cfg.APIKey,
			model:         cfg.Model,
			thinkingModel: cfg.ThinkingModel,
		},
		http:      &http.Client{Timeout: timeout},
		metrics:   metrics,
		estimator: NewEstimator(),
	}
}

// Model resolves the model name for a turn: the dedicated thinking model
// when thinking is on and one is configured, else the default. The second
// return says whether the enable_thinking vendor extension must be sent
// instead.
func (c *Client) Model(thinking bool) (string, bool) {
	if thinking && c.cfg.thinkingModel != "" {
		return c.cfg.thinkingModel, false
	}
	return c.cfg.model, thinking
}

// ChatMessage is one transcript message in OpenAI wire form.
type ChatMessage struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []models.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
}

// ChatRequest is one streaming chat call.
type ChatRequest struct {
	Model    string
	Messages []ChatMessage
	Tools    []models.Tool
	// ExtraBody merges additional top-level fields into the request, the
	// vendor-extension escape hatch (enable_thinking and similar).
	ExtraBody map[string]any
	// Headers are extra request headers, typically trace propagation.
	Headers map[string]string
}

// Delta is one streamed fragment of assistant output.
type Delta struct {
	Content   string
	Reasoning string
}

// Usage is the token consumption of one call.
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Estimated        bool `json:"-"`
}

// StreamResult is what remains after the stream closes: the accumulated
// tool calls in declaration order and the usage.
type StreamResult struct {
	ToolCalls []models.ToolCall
	Usage     Usage
}

// Wire shapes.

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string          `json:"content"`
			ReasoningContent string          `json:"reasoning_content"`
			ToolCalls        []toolCallDelta `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

// StreamChat issues one streaming completion. onDelta runs for each
// content/reasoning fragment in stream order; returning an error aborts
// the stream. Tool-call deltas accumulate by index: id, type, and name are
// taken from the first fragment carrying them, arguments concatenate.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, onDelta func(Delta) error) (*StreamResult, error) {
	start := time.Now()
	result, completion, err := c.stream(ctx, req, onDelta)

	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		var prompt, done int
		if result != nil {
			prompt, done = result.Usage.PromptTokens, result.Usage.CompletionTokens
		}
		c.metrics.RecordLLMRequest(req.Model, status, time.Since(start).Seconds(), prompt, done)
	}
	if err != nil {
		return nil, err
	}

	if result.Usage.TotalTokens == 0 {
		result.Usage = c.estimator.Estimate(req.Messages, completion)
	}
	return result, nil
}

func (c *Client) stream(ctx context.Context, req ChatRequest, onDelta func(Delta) error) (*StreamResult, string, error) {
	body := map[string]any{
		"model":          req.Model,
		"messages":       req.Messages,
		"stream":         true,
		"stream_options": map[string]any{"include_usage": true},
	}
	if len(req.Tools) > 0 {
		body["tools"] = req.Tools
	}
	for k, v := range req.ExtraBody {
		body[k] = v
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.cfg.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.apiKey)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var (
		completion strings.Builder
		calls      = make(map[int]*models.ToolCall)
		usage      Usage
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 2*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return nil, "", fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Usage != nil {
			usage = Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		for _, tc := range delta.ToolCalls {
			call, ok := calls[tc.Index]
			if !ok {
				call = &models.ToolCall{}
				calls[tc.Index] = call
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Type != "" {
				call.Type = tc.Type
			}
			if tc.Function.Name != "" {
				call.Function.Name = tc.Function.Name
			}
			call.Function.Arguments += tc.Function.Arguments
		}

		if delta.Content != "" || delta.ReasoningContent != "" {
			completion.WriteString(delta.Content)
			if err := onDelta(Delta{Content: delta.Content, Reasoning: delta.ReasoningContent}); err != nil {
				return nil, "", err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, "", fmt.Errorf("read stream: %w", err)
	}

	indexes := make([]int, 0, len(calls))
	for i := range calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	toolCalls := make([]models.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		toolCalls = append(toolCalls, *calls[i])
	}

	return &StreamResult{ToolCalls: toolCalls, Usage: usage}, completion.String(), nil
}
