package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"

	"github.com/import-ai/omnibox-wizard-sub000/internal/llm"
	"github.com/import-ai/omnibox-wizard-sub000/internal/observability"
	"github.com/import-ai/omnibox-wizard-sub000/internal/retrieval"
	"github.com/import-ai/omnibox-wizard-sub000/internal/tools"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// Request is one agent turn: a query against an optional prior transcript,
// with the tools the caller selected and the turn flags.
type Request struct {
	ConversationID string                 `json:"conversation_id"`
	Transcript     []models.Message       `json:"transcript,omitempty"`
	Query          string                 `json:"query"`
	Tools          []models.ToolSelection `json:"tools,omitempty"`
	EnableThinking bool                   `json:"enable_thinking,omitempty"`
	// MergeSearch collapses every selected search tool into one synthetic
	// `search` tool fanning out in parallel.
	MergeSearch bool `json:"merge_search,omitempty"`
	// CustomToolCall switches tool calling from the structured tool_calls
	// field to <tool_call> spans in the content stream.
	CustomToolCall bool   `json:"custom_tool_call,omitempty"`
	Lang           string `json:"lang,omitempty"`
}

// maxRounds bounds how many LLM round-trips one turn may take.
const maxRounds = 16

// eventBuffer is the capacity of the events channel handed to the single
// consumer.
const eventBuffer = 64

// Loop drives one conversation turn: prompt assembly, LLM streaming, tool
// execution, and the BOS/Delta/EOS/Done event protocol.
type Loop struct {
	llm      *llm.Client
	tools    *tools.Registry
	reranker retrieval.Reranker

	log     *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	now func() time.Time
}

// NewLoop builds an agent loop over the registered tools. metrics and
// tracer may be nil.
func NewLoop(client *llm.Client, registry *tools.Registry, reranker retrieval.Reranker, log *observability.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *Loop {
	if log == nil {
		log = observability.NewLogger(observability.LogConfig{})
	}
	return &Loop{
		llm:      client,
		tools:    registry,
		reranker: reranker,
		log:      log,
		metrics:  metrics,
		tracer:   tracer,
		now:      time.Now,
	}
}

// Run executes one turn and streams events to the returned channel. The
// channel is bounded, feeds a single consumer, and closes after the Done
// sentinel. Errors surface as an Error event followed by Done.
func (l *Loop) Run(ctx context.Context, req Request) <-chan models.StreamEvent {
	events := make(chan models.StreamEvent, eventBuffer)
	go func() {
		defer close(events)
		ctx := observability.WithConversationID(ctx, req.ConversationID)

		emit := func(ev models.StreamEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		if err := l.run(ctx, req, emit); err != nil {
			l.log.Error(ctx, "agent turn failed", "error", err)
			if l.metrics != nil {
				l.metrics.RecordError("agent", "turn_failed")
			}
			emit(models.ErrorEvent(err.Error()))
		}
		emit(models.DoneEvent())
	}()
	return events
}

// turnState is the per-turn working set built during initialization.
type turnState struct {
	executor *Executor
	registry *CitationRegistry
	// forceTool is the search tool the first non-thinking round is forced
	// through, "" when no search tool is selected.
	forceTool string
	// privateSearch pre-populates related resources when the selection has
	// no explicit scope.
	privateSearch         retrieval.SearchFunc
	privateSearchUnscoped bool
}

func (l *Loop) run(ctx context.Context, req Request, emit func(models.StreamEvent)) error {
	state, err := l.initTurn(req)
	if err != nil {
		return err
	}

	transcript := make([]models.Message, len(req.Transcript))
	copy(transcript, req.Transcript)

	if len(transcript) == 0 {
		prompt, err := RenderSystemPrompt(req.Lang, state.executor.Tools(), req.CustomToolCall, l.now())
		if err != nil {
			return err
		}
		transcript = appendAndEmit(transcript, models.Message{Role: models.RoleSystem, Content: prompt}, emit)
	}

	if last := models.LastMessage(transcript); last == nil || last.Role != models.RoleUser {
		userMsg := models.Message{
			Role:    models.RoleUser,
			Content: req.Query,
			Attrs:   &models.MessageAttrs{Tools: req.Tools},
		}
		if state.privateSearch != nil && state.privateSearchUnscoped {
			if related, err := l.relatedResources(ctx, state, req.Query); err != nil {
				l.log.Warn(ctx, "related-resource lookup failed", "error", err)
			} else {
				userMsg.Attrs.RelatedResources = related
			}
		}
		transcript = appendAndEmit(transcript, userMsg, emit)
	}

	for round := 0; ; round++ {
		if round >= maxRounds {
			return fmt.Errorf("turn exceeded %d rounds", maxRounds)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		last := models.LastMessage(transcript)
		if last.Role == models.RoleAssistant {
			if len(last.ToolCalls) == 0 {
				return nil
			}
			toolMsgs, err := state.executor.Execute(ctx, last.ToolCalls, emit)
			if err != nil {
				return err
			}
			transcript = append(transcript, toolMsgs...)
			continue
		}

		var assistant *models.Message
		if l.shouldForceSearch(req, state, transcript) {
			assistant = forcedSearchMessage(state.forceTool, req.Query)
			emit(models.BOSEvent(models.RoleAssistant))
			emit(models.DeltaEvent(assistant))
			emit(models.EOSEvent())
		} else {
			assistant, err = l.invokeLLM(ctx, req, state, transcript, emit)
			if err != nil {
				return err
			}
		}
		transcript = append(transcript, *assistant)
	}
}

// initTurn builds the executor and citation registry for one turn.
func (l *Loop) initTurn(req Request) (*turnState, error) {
	registry := NewCitationRegistry()
	registry.Rehydrate(req.Transcript)

	state := &turnState{
		executor: NewExecutor(registry, l.metrics, l.tracer),
		registry: registry,
	}

	var (
		searchFns     []retrieval.SearchFunc
		searchSchemas []models.Function
	)
	for _, sel := range req.Tools {
		tool, ok := l.tools.Get(sel.Name)
		if !ok {
			return nil, fmt.Errorf("unknown tool %q selected", sel.Name)
		}
		cfg := tools.ToolConfig{
			NamespaceID:      sel.NamespaceID,
			VisibleResources: sel.VisibleResources,
		}
		switch t := tool.(type) {
		case tools.SearchTool:
			fn := t.Handler(cfg)
			if sel.Name == "private_search" {
				state.privateSearch = retrieval.WrapSearch(fn, l.reranker)
				state.privateSearchUnscoped = len(sel.VisibleResources) == 0
			}
			if req.MergeSearch {
				searchFns = append(searchFns, fn)
				searchSchemas = append(searchSchemas, t.Schema())
			} else {
				if err := state.executor.Bind(SearchBinding{
					Schema: t.Schema(),
					Search: retrieval.WrapSearch(fn, l.reranker),
				}); err != nil {
					return nil, err
				}
				if state.forceTool == "" || sel.Name == "private_search" {
					state.forceTool = sel.Name
				}
			}
		case tools.ResourceTool:
			if err := state.executor.Bind(ResourceBinding{
				Schema:   t.Schema(),
				Resource: t.Handler(cfg),
			}); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("tool %q has unsupported type %T", sel.Name, tool)
		}
	}

	if req.MergeSearch && len(searchFns) > 0 {
		if err := state.executor.Bind(SearchBinding{
			Schema: mergedSearchSchema(searchSchemas),
			Search: retrieval.Merge(l.reranker, searchFns...),
		}); err != nil {
			return nil, err
		}
		if state.privateSearch != nil {
			state.forceTool = "search"
		}
	}
	if state.forceTool != "" && state.forceTool != "search" && state.forceTool != "private_search" {
		// Only private search is forced; web/knowledge searches wait for
		// the model to ask.
		state.forceTool = ""
	}
	return state, nil
}

// mergedSearchSchema declares the synthetic search tool covering every
// selected search source.
func mergedSearchSchema(merged []models.Function) models.Function {
	names := make([]string, 0, len(merged))
	for _, fn := range merged {
		names = append(names, fn.Name)
	}
	return models.Function{
		Name:        "search",
		Description: "Search all available sources at once (" + strings.Join(names, ", ") + ").",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Natural-language search query.",
				},
			},
			"required": []any{"query"},
		},
	}
}

// shouldForceSearch reports whether this round skips the LLM and forces a
// private search: non-thinking mode, the turn's very first round, and a
// forceable search tool bound.
func (l *Loop) shouldForceSearch(req Request, state *turnState, transcript []models.Message) bool {
	if req.EnableThinking || state.forceTool == "" {
		return false
	}
	return len(transcript) == 2 &&
		transcript[0].Role == models.RoleSystem &&
		transcript[1].Role == models.RoleUser
}

// forcedSearchMessage synthesises the assistant message the forced round
// would have produced.
func forcedSearchMessage(toolName, query string) *models.Message {
	args, _ := json.Marshal(map[string]string{"query": query})
	return &models.Message{
		Role: models.RoleAssistant,
		ToolCalls: []models.ToolCall{{
			ID:   "call_" + uuid.NewString(),
			Type: "function",
			Function: models.FunctionCall{
				Name:      toolName,
				Arguments: string(args),
			},
		}},
	}
}

// relatedResources pre-executes private search to seed the user message
// with the resources the query most likely concerns.
func (l *Loop) relatedResources(ctx context.Context, state *turnState, query string) ([]models.ResourceInfo, error) {
	rs, err := state.privateSearch(ctx, query)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := make([]models.ResourceInfo, 0, len(rs))
	for i := range rs {
		r := &rs[i]
		if r.Kind != models.RetrievalChunk || seen[r.ResourceID] {
			continue
		}
		seen[r.ResourceID] = true
		out = append(out, models.ResourceInfo{
			ResourceID: r.ResourceID,
			ParentID:   r.Folder,
			Name:       r.Title,
		})
	}
	return out, nil
}

// invokeLLM streams one assistant message from the model, routing content
// through the stream parser in custom-tool-call mode.
func (l *Loop) invokeLLM(ctx context.Context, req Request, state *turnState, transcript []models.Message, emit func(models.StreamEvent)) (*models.Message, error) {
	model, vendorExt := l.llm.Model(req.EnableThinking)
	var extraBody map[string]any
	if vendorExt {
		extraBody = map[string]any{"enable_thinking": true}
	}

	headers := make(map[string]string)
	if l.tracer != nil {
		l.tracer.Inject(ctx, headers)
	}

	chatReq := llm.ChatRequest{
		Model:     model,
		Messages:  ToWire(transcript),
		ExtraBody: extraBody,
		Headers:   headers,
	}
	if !req.CustomToolCall {
		chatReq.Tools = state.executor.Tools()
	}

	emit(models.BOSEvent(models.RoleAssistant))

	var (
		content   strings.Builder
		reasoning strings.Builder
		toolBuf   strings.Builder
		parser    *StreamParser
	)
	if req.CustomToolCall {
		parser = NewStreamParser()
	}

	route := func(deltas []ParsedDelta) {
		for _, d := range deltas {
			switch d.Kind {
			case DeltaToolCall:
				toolBuf.WriteString(d.Text)
			case DeltaThink:
				reasoning.WriteString(d.Text)
				emit(models.DeltaEvent(&models.Message{Reasoning: d.Text}))
			default:
				content.WriteString(d.Text)
				emit(models.DeltaEvent(&models.Message{Content: d.Text}))
			}
		}
	}

	result, err := l.llm.StreamChat(ctx, chatReq, func(d llm.Delta) error {
		if d.Reasoning != "" {
			reasoning.WriteString(d.Reasoning)
			emit(models.DeltaEvent(&models.Message{Reasoning: d.Reasoning}))
		}
		if d.Content == "" {
			return nil
		}
		if parser != nil {
			route(parser.Feed(d.Content))
			return nil
		}
		content.WriteString(d.Content)
		emit(models.DeltaEvent(&models.Message{Content: d.Content}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if parser != nil {
		route(parser.Flush())
	}

	toolCalls := result.ToolCalls
	if parser != nil && toolBuf.Len() > 0 {
		toolCalls = append(toolCalls, l.parseToolCallBuffer(ctx, toolBuf.String())...)
	}

	assistant := &models.Message{
		Role:      models.RoleAssistant,
		Content:   content.String(),
		Reasoning: reasoning.String(),
		ToolCalls: toolCalls,
	}
	if len(toolCalls) > 0 {
		emit(models.DeltaEvent(&models.Message{ToolCalls: toolCalls}))
	}
	emit(models.EOSEvent())
	return assistant, nil
}

// parseToolCallBuffer parses the accumulated <tool_call> text as
// newline-delimited JSON objects. Malformed lines are repaired when
// possible and skipped otherwise; a bad line never fails the turn.
func (l *Loop) parseToolCallBuffer(ctx context.Context, buf string) []models.ToolCall {
	var calls []models.ToolCall
	for _, line := range strings.Split(buf, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var parsed struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			repaired, repErr := jsonrepair.JSONRepair(line)
			if repErr != nil || json.Unmarshal([]byte(repaired), &parsed) != nil {
				l.log.Warn(ctx, "skipping malformed tool-call line", "line", line)
				continue
			}
		}
		if parsed.Name == "" {
			l.log.Warn(ctx, "skipping tool-call line without a name", "line", line)
			continue
		}
		args := string(parsed.Arguments)
		if args == "" {
			args = "{}"
		}
		calls = append(calls, models.ToolCall{
			ID:   "call_" + uuid.NewString(),
			Type: "function",
			Function: models.FunctionCall{
				Name:      parsed.Name,
				Arguments: args,
			},
		})
	}
	return calls
}

// appendAndEmit appends one complete message to the transcript and emits
// its BOS/Delta/EOS triplet.
func appendAndEmit(transcript []models.Message, msg models.Message, emit func(models.StreamEvent)) []models.Message {
	emit(models.BOSEvent(msg.Role))
	emit(models.DeltaEvent(&msg))
	emit(models.EOSEvent())
	return append(transcript, msg)
}

// CollectTranscript drains an event stream into the messages it carried.
// Deltas of one message merge in order; an Error event returns as error.
func CollectTranscript(events <-chan models.StreamEvent) ([]models.Message, error) {
	var (
		out     []models.Message
		current *models.Message
		errMsg  string
	)
	for ev := range events {
		switch ev.ResponseType {
		case models.ResponseBOS:
			current = &models.Message{Role: ev.Role}
		case models.ResponseDelta:
			if current == nil || ev.Message == nil {
				continue
			}
			current.Content += ev.Message.Content
			current.Reasoning += ev.Message.Reasoning
			if len(ev.Message.ToolCalls) > 0 {
				current.ToolCalls = ev.Message.ToolCalls
			}
			if ev.Message.ToolCallID != "" {
				current.ToolCallID = ev.Message.ToolCallID
			}
			if ev.Message.Attrs != nil {
				current.Attrs = ev.Message.Attrs
			}
		case models.ResponseEOS:
			if current != nil {
				out = append(out, *current)
				current = nil
			}
		case models.ResponseError:
			errMsg = ev.Error
		}
	}
	if errMsg != "" {
		return out, fmt.Errorf("%s", errMsg)
	}
	return out, nil
}
