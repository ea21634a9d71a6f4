package functions

import (
	"context"
	"encoding/json"

	"github.com/import-ai/omnibox-wizard-sub000/internal/agent"
	"github.com/import-ai/omnibox-wizard-sub000/internal/tasks"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// AgentRun executes an agent turn as a background task, collecting the
// streamed messages into the task output. The SSE chat surface drives the
// same loop directly; this handler serves queued turns.
type AgentRun struct {
	loop *agent.Loop
}

// NewAgentRun builds the agent_run handler.
func NewAgentRun(loop *agent.Loop) *AgentRun {
	return &AgentRun{loop: loop}
}

func (h *AgentRun) Run(ctx context.Context, task *models.Task) (map[string]any, error) {
	var req agent.Request
	if err := json.Unmarshal(task.Input, &req); err != nil {
		return nil, tasks.NewValidationError("agent_run input: %v", err)
	}
	if req.Query == "" {
		return nil, tasks.NewValidationError("agent_run input: query is required")
	}

	msgs, err := agent.CollectTranscript(h.loop.Run(ctx, req))
	if err != nil {
		return nil, err
	}
	return map[string]any{"messages": msgs}, nil
}
