package metatools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dynmcp/dynmcp/internal/artifact"
	"github.com/dynmcp/dynmcp/internal/mcp"
	"github.com/dynmcp/dynmcp/internal/registry"
)

// createDashboardParams is the input for create_dashboard.
type createDashboardParams struct {
	ToolName    string `json:"tool_name"`
	Description string `json:"description,omitempty"`
	HTML        string `json:"html"`
	Persona     string `json:"persona,omitempty"`
	Group       string `json:"group,omitempty"`
}

// CreateDashboard implements create_dashboard (spec.md §4.8, §6). The
// stored artifact is kind=ui: dispatching the resulting tool never executes
// the body as code (internal/dispatcher routes kind=ui to
// dispatchDashboard, which writes the file and returns a runner URL).
type CreateDashboard struct{ d *Deps }

func NewCreateDashboard(d *Deps) *CreateDashboard { return &CreateDashboard{d: d} }

func (t *CreateDashboard) Name() string { return "create_dashboard" }

func (t *CreateDashboard) Description() string {
	return "Register a dashboard artifact (a static HTML body). Dispatching the resulting tool never executes the body; it is written to the dashboard storage directory and a runner URL is returned."
}

func (t *CreateDashboard) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "tool_name": {"type": "string"},
    "description": {"type": "string"},
    "html": {"type": "string"},
    "persona": {"type": "string"},
    "group": {"type": "string"}
  },
  "required": ["tool_name", "html"]
}`)
}

func (t *CreateDashboard) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p createDashboardParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ToolName == "" || p.HTML == "" {
		return mcp.ErrorResult("tool_name and html are required"), nil
	}
	persona := p.Persona
	if persona == "" {
		persona = defaultPersona
	}

	digest, err := t.d.Artifacts.Put(ctx, p.HTML, artifact.KindUI)
	if err != nil {
		return nil, fmt.Errorf("storing dashboard artifact: %w", err)
	}

	rec := registry.ToolRecord{
		Name: p.ToolName, Persona: persona, Description: p.Description,
		ArtifactDigest: digest, IsAutoCreated: true, Group: p.Group,
	}
	if err := t.d.Registry.UpsertTool(ctx, rec); err != nil {
		return nil, fmt.Errorf("registering dashboard tool: %w", err)
	}

	return mcp.JSONResult(map[string]any{
		"tool_name": p.ToolName,
		"digest":    digest,
		"message":   fmt.Sprintf("registered dashboard %q", p.ToolName),
	})
}
