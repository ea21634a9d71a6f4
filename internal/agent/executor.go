package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/import-ai/omnibox-wizard-sub000/internal/observability"
	"github.com/import-ai/omnibox-wizard-sub000/internal/retrieval"
	"github.com/import-ai/omnibox-wizard-sub000/internal/tools"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// ToolBinding is one tool bound to a turn: a declaration plus a handler
// closed over its scope. The executor selects behavior by binding variant,
// never by tool name.
type ToolBinding interface {
	Declaration() models.Function
}

// SearchBinding produces retrievals rendered as a <retrievals> block.
type SearchBinding struct {
	Schema models.Function
	Search retrieval.SearchFunc
}

func (b SearchBinding) Declaration() models.Function { return b.Schema }

// ResourceBinding produces resource records with citation ids substituted
// for resource ids.
type ResourceBinding struct {
	Schema   models.Function
	Resource tools.ResourceFunc
}

func (b ResourceBinding) Declaration() models.Function { return b.Schema }

// Executor runs the tool calls of one assistant message and produces the
// answering tool messages. One executor serves one turn's bindings;
// the citation registry it holds is owned by the agent loop.
type Executor struct {
	bindings map[string]ToolBinding
	order    []string
	registry *CitationRegistry
	schemas  map[string]*jsonschema.Schema

	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewExecutor builds an executor over the given bindings. metrics and
// tracer may be nil.
func NewExecutor(registry *CitationRegistry, metrics *observability.Metrics, tracer *observability.Tracer) *Executor {
	return &Executor{
		bindings: make(map[string]ToolBinding),
		registry: registry,
		schemas:  make(map[string]*jsonschema.Schema),
		metrics:  metrics,
		tracer:   tracer,
	}
}

// Bind registers one tool binding for the turn.
func (e *Executor) Bind(b ToolBinding) error {
	name := b.Declaration().Name
	if name == "" {
		return fmt.Errorf("tool binding has empty name")
	}
	if _, exists := e.bindings[name]; exists {
		return fmt.Errorf("tool %q bound twice", name)
	}
	e.bindings[name] = b
	e.order = append(e.order, name)
	return nil
}

// Has reports whether a tool of that name is bound.
func (e *Executor) Has(name string) bool {
	_, ok := e.bindings[name]
	return ok
}

// Tools returns the OpenAI tool declarations in binding order.
func (e *Executor) Tools() []models.Tool {
	out := make([]models.Tool, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, models.FunctionTool(e.bindings[name].Declaration()))
	}
	return out
}

// Execute runs the calls of one assistant message in declaration order.
// Each call yields exactly one tool message, emitted as BOS/Delta/EOS and
// returned in order. Any failure is fatal for the turn.
func (e *Executor) Execute(ctx context.Context, calls []models.ToolCall, emit func(models.StreamEvent)) ([]models.Message, error) {
	out := make([]models.Message, 0, len(calls))
	for _, call := range calls {
		msg, err := e.executeOne(ctx, call, emit)
		if err != nil {
			return nil, err
		}
		out = append(out, *msg)
	}
	return out, nil
}

func (e *Executor) executeOne(ctx context.Context, call models.ToolCall, emit func(models.StreamEvent)) (*models.Message, error) {
	name := call.Function.Name
	start := time.Now()
	status := "success"
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordToolExecution(name, status, time.Since(start).Seconds())
		}
	}()
	emit(models.BOSEvent(models.RoleTool))

	binding, ok := e.bindings[name]
	if !ok {
		status = "error"
		return nil, fmt.Errorf("unknown function %q", name)
	}

	args, err := parseArguments(call.Function.Arguments)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	if err := e.validateArguments(name, binding.Declaration(), args); err != nil {
		status = "error"
		return nil, err
	}

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.TraceToolExecution(ctx, name)
		defer span.End()
	}

	var (
		msg     *models.Message
		execErr error
	)
	switch b := binding.(type) {
	case SearchBinding:
		msg, execErr = e.runSearch(ctx, name, b, args)
	case ResourceBinding:
		msg, execErr = e.runResource(ctx, name, b, args)
	default:
		execErr = fmt.Errorf("tool %s has unsupported binding type %T", name, binding)
	}
	if execErr != nil {
		status = "error"
		return nil, execErr
	}

	msg.ToolCallID = call.ID
	emit(models.DeltaEvent(msg))
	emit(models.EOSEvent())
	return msg, nil
}

// parseArguments decodes the raw argument string, repairing malformed JSON
// first. A payload that cannot be repaired fails the turn.
func parseArguments(raw string) (json.RawMessage, error) {
	if raw == "" {
		raw = "{}"
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw), nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("parse arguments: %w", err)
	}
	if !json.Valid([]byte(repaired)) {
		return nil, fmt.Errorf("parse arguments: repaired payload still invalid")
	}
	return json.RawMessage(repaired), nil
}

// validateArguments checks parsed arguments against the tool's declared
// parameter schema. Compiled schemas are cached per tool.
func (e *Executor) validateArguments(name string, decl models.Function, args json.RawMessage) error {
	if decl.Parameters == nil {
		return nil
	}
	schema, ok := e.schemas[name]
	if !ok {
		raw, err := json.Marshal(decl.Parameters)
		if err != nil {
			return fmt.Errorf("tool %s: marshal parameter schema: %w", name, err)
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(name+".json", bytes.NewReader(raw)); err != nil {
			return fmt.Errorf("tool %s: load parameter schema: %w", name, err)
		}
		schema, err = compiler.Compile(name + ".json")
		if err != nil {
			return fmt.Errorf("tool %s: compile parameter schema: %w", name, err)
		}
		e.schemas[name] = schema
	}

	var value any
	if err := json.Unmarshal(args, &value); err != nil {
		return fmt.Errorf("tool %s: decode arguments: %w", name, err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("tool %s: invalid arguments: %w", name, err)
	}
	return nil
}

type searchArgs struct {
	Query string `json:"query"`
}

// runSearch executes a search binding and renders the numbered retrievals.
func (e *Executor) runSearch(ctx context.Context, name string, b SearchBinding, args json.RawMessage) (*models.Message, error) {
	var in searchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("tool %s: decode query: %w", name, err)
	}

	rs, err := b.Search(ctx, in.Query)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	models.SortRetrievals(rs)
	ids := make([]int, len(rs))
	citations := make([]models.Citation, len(rs))
	for i := range rs {
		ids[i] = e.registry.Register(rs[i].Link())
		citations[i] = rs[i].Citation(ids[i])
	}

	msg := &models.Message{
		Role:    models.RoleTool,
		Content: models.RenderRetrievals(rs, ids),
	}
	if len(citations) > 0 {
		msg.Attrs = &models.MessageAttrs{Citations: citations}
	}
	return msg, nil
}

// runResource executes a resource binding and substitutes citation ids for
// resource ids in the payload.
func (e *Executor) runResource(ctx context.Context, name string, b ResourceBinding, args json.RawMessage) (*models.Message, error) {
	result, err := b.Resource(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	records := make([]map[string]any, 0, len(result.Data))
	citations := make([]models.Citation, 0, len(result.Data))
	for i := range result.Data {
		res := &result.Data[i]
		citeID := e.registry.Register(res.ResourceID)
		citations = append(citations, res.Citation(citeID))

		raw, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("tool %s: marshal resource: %w", name, err)
		}
		record := make(map[string]any)
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("tool %s: decode resource: %w", name, err)
		}
		delete(record, "resource_id")
		record["cite_id"] = citeID
		records = append(records, record)
	}

	payload, err := json.Marshal(map[string]any{
		"data":          records,
		"metadata_only": result.MetadataOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("tool %s: marshal result: %w", name, err)
	}

	msg := &models.Message{
		Role:    models.RoleTool,
		Content: string(payload),
	}
	if len(citations) > 0 {
		msg.Attrs = &models.MessageAttrs{Citations: citations}
	}
	return msg, nil
}
