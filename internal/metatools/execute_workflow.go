package metatools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dynmcp/dynmcp/internal/chain"
	"github.com/dynmcp/dynmcp/internal/mcp"
)

// workflowStep mirrors chain.Step for JSON decoding.
type workflowStep struct {
	ID   string         `json:"id"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// executeWorkflowParams is the input for execute_workflow.
type executeWorkflowParams struct {
	Steps   []workflowStep `json:"steps"`
	Persona string         `json:"persona,omitempty"`
}

// ExecuteWorkflow implements execute_workflow (spec.md §4.8, §4.10): runs a
// chain of steps through the Chain Engine, substituting "${id.path}"
// references against earlier steps' results.
type ExecuteWorkflow struct{ d *Deps }

func NewExecuteWorkflow(d *Deps) *ExecuteWorkflow { return &ExecuteWorkflow{d: d} }

func (t *ExecuteWorkflow) Name() string { return "execute_workflow" }

func (t *ExecuteWorkflow) Description() string {
	return "Run an ordered list of tool-call steps, each optionally referencing earlier steps' results via ${id} or ${id.path}. Runs sequentially; rejects the whole workflow before any step executes if a step references itself or a later step."
}

func (t *ExecuteWorkflow) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "tool": {"type": "string"},
          "args": {"type": "object"}
        },
        "required": ["id", "tool"]
      }
    },
    "persona": {"type": "string"}
  },
  "required": ["steps"]
}`)
}

func (t *ExecuteWorkflow) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p executeWorkflowParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if len(p.Steps) == 0 {
		return mcp.ErrorResult("steps must be non-empty"), nil
	}
	persona := p.Persona
	if persona == "" {
		persona = defaultPersona
	}

	steps := make([]chain.Step, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = chain.Step{ID: s.ID, Tool: s.Tool, Args: s.Args}
	}

	engine := chain.New(func(ctx context.Context, toolName string, args map[string]any) (any, error) {
		return t.d.Dispatcher.CallTool(ctx, toolName, persona, args)
	})

	report, err := engine.Run(ctx, steps)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("workflow rejected: %v", err)), nil
	}

	return mcp.JSONResult(report)
}
